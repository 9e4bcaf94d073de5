package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-oscfx/internal/oscio"
)

func newSendCommand(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "send <address> [args...]",
		Short: "Send one OSC message",
		Long: `Send one OSC message. Integers are sent as int32, decimals as float32 and
anything else as a string. Prefix an argument with i:, f: or s: to force
its type, e.g. "f:1" or "s:42".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := args[0]
			if !strings.HasPrefix(address, "/") {
				return fmt.Errorf("address %q must start with /", address)
			}

			oscArgs, err := oscio.ParseArgs(args[1:])
			if err != nil {
				return err
			}

			target := to
			if target == "" {
				target = net.JoinHostPort("127.0.0.1", strconv.Itoa(a.settings.OSCPort()))
			}

			client, err := oscio.Dial(target)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Send(address, oscArgs...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s %v to %s\n", address, oscArgs, client.RemoteAddr())
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target host:port (default 127.0.0.1 and the effect's port)")

	return cmd
}
