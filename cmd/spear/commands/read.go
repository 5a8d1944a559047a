package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hkrutzer/spear/reqdesc"
)

// NewReadCommand creates the read command: a bounded read_chunk over one
// stream, rendered as a table.
func NewReadCommand() *cobra.Command {
	var maxCount uint64
	var backwards bool
	var from string

	cmd := &cobra.Command{
		Use:   "read <stream>",
		Short: "Read a bounded chunk of events from a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			opts := reqdesc.DefaultReadOptions()
			opts.MaxCount = maxCount
			if backwards {
				opts.Direction = reqdesc.Backwards
			}
			opts.From = parseCursor(from)

			result := client.ReadChunk(cmd.Context(), args[0], opts)
			if result.Err != nil {
				return result.Err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Revision", "Type", "Data"})
			for _, ev := range result.Events {
				table.Append([]string{strconv.FormatUint(ev.Revision, 10), ev.EventType, string(ev.Data)})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Uint64Var(&maxCount, "max-count", 20, "max_count for the read_chunk RPC")
	cmd.Flags().BoolVar(&backwards, "backwards", false, "read backwards instead of forwards")
	cmd.Flags().StringVar(&from, "from", "start", "start, end, or a revision number")

	return cmd
}

func parseCursor(from string) reqdesc.Cursor {
	switch from {
	case "start":
		return reqdesc.StartCursor()
	case "end":
		return reqdesc.EndCursor()
	default:
		rev, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			return reqdesc.StartCursor()
		}
		return reqdesc.RevisionCursor(rev)
	}
}
