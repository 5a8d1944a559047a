package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hkrutzer/spear"
	"github.com/hkrutzer/spear/rpcerr"
)

// NewAppendCommand creates the append command: one event, one expectation.
func NewAppendCommand() *cobra.Command {
	var eventType string
	var data string
	var expect string

	cmd := &cobra.Command{
		Use:   "append <stream>",
		Short: "Append one event to a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			opts := spear.AppendOptions{Expect: parseExpectation(expect)}
			_, err = client.Append(cmd.Context(), args[0], []spear.AppendEvent{
				{EventType: eventType, Data: []byte(data)},
			}, opts)

			var violation *rpcerr.ExpectationViolation
			if errors.As(err, &violation) {
				color.Red("expectation violation: expected %s, current %s", violation.Expected, violation.Current)
				return err
			}
			if err != nil {
				color.Red("append failed: %v", err)
				return err
			}
			color.Green("appended 1 event to %q", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().StringVar(&data, "data", "", "event data")
	cmd.Flags().StringVar(&expect, "expect", "any", "any, exists, empty, or a revision number")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
