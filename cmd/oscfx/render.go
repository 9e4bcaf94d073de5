package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-oscfx/internal/host"
)

func newRenderCommand(a *app) *cobra.Command {
	var scriptPath, statePath string

	cmd := &cobra.Command{
		Use:   "render <in.wav> <out.wav>",
		Short: "Process a WAV file offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			eff, err := a.newEffect()
			if err != nil {
				return err
			}
			if err := loadStateFile(eff, statePath); err != nil {
				return err
			}

			opts := []host.RenderOption{
				host.WithRenderBlockSize(a.settings.Audio.BlockSize),
				host.WithRenderLogger(a.log),
			}
			if scriptPath != "" {
				script, err := host.LoadScript(scriptPath)
				if err != nil {
					return err
				}
				opts = append(opts, host.WithScript(script))
			}

			if err := host.Render(eff, args[0], args[1], opts...); err != nil {
				return err
			}
			a.log.Info("rendered", "effect", eff.Name(), "in", args[0], "out", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML control script")
	cmd.Flags().StringVar(&statePath, "state", "", "parameter state file to start from")

	return cmd
}
