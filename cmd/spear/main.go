// Package main provides the spear CLI tool for driving an EventStore
// connection from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hkrutzer/spear/cmd/spear/commands"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spear",
		Short: "EventStore streaming client",
		Long: `spear drives a single long-lived HTTP/2 connection to an EventStore
20+ server and exposes its read, append, and subscribe operations
from the command line.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().String("addr", "localhost:2113", "EventStore host:port")
	rootCmd.PersistentFlags().Bool("tls", false, "dial with TLS")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the authorization header")

	rootCmd.AddCommand(
		commands.NewReadCommand(),
		commands.NewAppendCommand(),
		commands.NewSubscribeCommand(),
		commands.NewVersionCommand(version, commit, buildDate),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
