package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scanagent.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanagent",
		Short: "Live scan session agent for label classification",
		Long: `scanagent runs a live scan session against a classification server.

It captures frames from a local camera (or an X11 screen share), uploads
them to the server's classification endpoint, and drives the scan state
machine: state badges, deduplicated notifications, the intake
confirmation workflow, and best-effort session teardown.

Sessions are journaled locally; use "scanagent history" to review them.`,
		Version: getVersion(),
		// Errors are printed once by Execute; cobra's own echo and the
		// usage dump on runtime failures only add noise.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		NewScanCmd(),
		NewHistoryCmd(),
		NewInitCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
