package commands

import (
	"os"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Field", "Value"})
			table.Append([]string{"Version", version})
			table.Append([]string{"Commit", commit})
			table.Append([]string{"Built", buildDate})
			table.Append([]string{"Go version", runtime.Version()})
			table.Append([]string{"OS/Arch", runtime.GOOS + "/" + runtime.GOARCH})
			table.Render()
		},
	}

	return cmd
}
