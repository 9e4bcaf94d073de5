package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-oscfx/dsp/router"
	"github.com/cwbudde/algo-oscfx/plugin"
)

func newStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List filter stage names and effect variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintf(w, "Filter stages (at most %d active):\n", router.MaxActiveStages)
			for _, name := range router.StageNames() {
				fmt.Fprintf(w, "  %s\n", name)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "EFFECT\tDEFAULT PORT")
			for _, kind := range plugin.Kinds() {
				port, _ := plugin.DefaultPort(kind)
				fmt.Fprintf(w, "%s\t%d\n", kind, port)
			}

			return w.Flush()
		},
	}
}
