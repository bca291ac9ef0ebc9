package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tavall/scanagent/internal/model"
)

// SimpleWriter outputs session reports as human-readable text for the
// terminal.
type SimpleWriter struct {
	baseWriter

	// showAll includes SEARCHING results in the timeline. Off by
	// default: they dominate any session and carry no information.
	showAll bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowAll includes non-notable results in the timeline.
func WithShowAll(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showAll = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the session report as plain text.
func (w *SimpleWriter) Write(report *SessionReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTally(&sb, report)
	w.writeTimeline(&sb, report)

	n, err := io.WriteString(w.output, sb.String())
	if err != nil {
		return n, fmt.Errorf("failed to write report: %w", err)
	}
	return n, nil
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *SessionReport) {
	fmt.Fprintf(sb, "Session:   %s\n", report.Session.Token)
	fmt.Fprintf(sb, "Scan type: %s", report.Session.ScanType)
	if report.Session.Mode != "" {
		fmt.Fprintf(sb, " (%s)", report.Session.Mode)
	}
	sb.WriteString("\n")
	if report.Session.RouteID != "" {
		fmt.Fprintf(sb, "Route:     %s\n", report.Session.RouteID)
	}
	fmt.Fprintf(sb, "Started:   %s\n", report.Session.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Session.ClosedAt != nil {
		fmt.Fprintf(sb, "Closed:    %s\n", report.Session.ClosedAt.Format("2006-01-02 15:04:05 MST"))
	} else {
		sb.WriteString("Closed:    still open\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTally(sb *strings.Builder, report *SessionReport) {
	tally := report.StateTally()
	fmt.Fprintf(sb, "Results: %d total, %d recognized\n", len(report.Results), report.Hits())
	for _, state := range report.TallyStates() {
		fmt.Fprintf(sb, "  %-10s %d\n", state, tally[state])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTimeline(sb *strings.Builder, report *SessionReport) {
	var wrote bool
	for _, res := range report.Results {
		if !w.showAll && res.State == string(model.StateSearching) {
			continue
		}
		fmt.Fprintf(sb, "  %s  %-9s %s", res.ReceivedAt.Format("15:04:05"), res.State, resultLabel(res))
		if res.IntakeStatus != "" {
			fmt.Fprintf(sb, "  [%s]", res.IntakeStatus)
		}
		sb.WriteString("\n")
		wrote = true
	}
	if !wrote {
		sb.WriteString("  (no notable results)\n")
	}
}
