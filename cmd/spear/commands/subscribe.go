package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hkrutzer/spear"
	"github.com/hkrutzer/spear/reqdesc"
)

// NewSubscribeCommand creates the subscribe command: push notifications
// are printed to stdout until the process receives SIGINT/SIGTERM.
func NewSubscribeCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "subscribe <stream>",
		Short: "Subscribe to a stream and print events as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			opts := spear.SubscribeOptions{ReadOptions: reqdesc.DefaultReadOptions()}
			opts.From = parseCursor(from)

			handle, err := client.Subscribe(cmd.Context(), args[0], func(n spear.Notification) error {
				if n.Event != nil {
					color.Cyan("revision %d  type %s  data %s", n.Event.Revision, n.Event.EventType, n.Event.Data)
				}
				return nil
			}, opts)
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer client.Cancel(handle)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-handle.Done():
				color.Yellow("subscription ended")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "end", "start, end, or a revision number")

	return cmd
}
