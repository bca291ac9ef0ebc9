package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tavall/scanagent/internal/config"
	"github.com/tavall/scanagent/internal/journal"
	"github.com/tavall/scanagent/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-token]",
		Short: "Browse recorded scan sessions",
		Long: `History lists past scan sessions recorded in the local journal, or
renders a full report for a single session.

Examples:
  # List recorded sessions
  scanagent history

  # Show a session report
  scanagent history 8f14e45f-ceea-4e7d-b1a2-0c3f8a2d9b01

  # Export a session as JSON or Markdown
  scanagent history 8f14e45f-ceea-4e7d-b1a2-0c3f8a2d9b01 --json -o report.json
  scanagent history 8f14e45f-ceea-4e7d-b1a2-0c3f8a2d9b01 --markdown -o report.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("json", false, "Render the session report as JSON")
	cmd.Flags().Bool("markdown", false, "Render the session report as Markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Bool("all", false, "Include SEARCHING rows in the timeline")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	jnl, err := journal.Open(config.XDGDataDir(), journal.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		return fmt.Errorf("no journal found (run a scan first): %w", err)
	}
	defer jnl.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		return listSessions(ctx, cmd, jnl)
	}
	return showSession(ctx, cmd, jnl, args[0])
}

// listSessions prints one line per recorded session, newest first.
func listSessions(ctx context.Context, cmd *cobra.Command, jnl *journal.Journal) error {
	sessions, err := jnl.ListSessions(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No recorded sessions.")
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-36s  %-8s  %-14s  %-19s  %s\n",
		"TOKEN", "TYPE", "MODE", "STARTED", "STATUS")
	for _, s := range sessions {
		status := "open"
		if s.ClosedAt != nil {
			status = "closed " + s.ClosedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(&sb, "%-36s  %-8s  %-14s  %-19s  %s\n",
			s.Token, s.ScanType, s.ModeKey,
			s.StartedAt.Format("2006-01-02 15:04:05"), status)
	}
	fmt.Fprint(out, sb.String())
	return nil
}

// showSession renders a full report for one session token.
func showSession(ctx context.Context, cmd *cobra.Command, jnl *journal.Journal, token string) error {
	var session *journal.SessionRecord
	sessions, err := jnl.ListSessions(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].Token == token {
			session = &sessions[i]
			break
		}
	}
	if session == nil {
		return fmt.Errorf("session not found: %s", token)
	}

	results, err := jnl.SessionResults(ctx, token)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var writer report.Writer
	switch {
	case asJSON:
		writer = report.NewJSONWriter(out, report.WithPrettyPrint())
	case asMarkdown:
		writer = report.NewMarkdownWriter(out)
	default:
		writer = report.NewSimpleWriter(out, report.WithShowAll(showAll))
	}

	rep := report.NewSessionReport(*session, results)
	if _, err := writer.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
