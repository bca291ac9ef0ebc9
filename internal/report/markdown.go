package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/tavall/scanagent/internal/journal"
)

// MarkdownWriter outputs session reports in Markdown format, designed
// for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the session report in Markdown format.
func (w *MarkdownWriter) Write(report *SessionReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTally(md, report)
	w.writeTimeline(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the session summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *SessionReport) {
	md.H1("Scan Session Report")
	md.PlainText("")

	status := "🟢 Open"
	if report.Session.ClosedAt != nil {
		status = "✅ Closed (" + report.Duration().Round(time.Second).String() + ")"
	}

	rows := [][]string{
		{"Session", "`" + report.Session.Token + "`"},
		{"Scan Type", report.Session.ScanType},
		{"Mode", report.Session.Mode},
		{"Started", report.Session.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", status},
	}
	if report.Session.RouteID != "" {
		rows = append(rows, []string{"Route", report.Session.RouteID})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTally writes the state tally table and distribution chart.
func (w *MarkdownWriter) writeTally(md *markdown.Markdown, report *SessionReport) {
	md.H2("Result Summary")
	md.PlainText("")

	tally := report.StateTally()
	rows := make([][]string, 0, len(tally)+1)
	for _, state := range report.TallyStates() {
		rows = append(rows, []string{state, strconv.Itoa(tally[state])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(report.Results)) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Results) > 0 {
		w.writePieChart(md, report)
	}

	if report.Hits() > 0 {
		md.Note(fmt.Sprintf("%d label(s) recognized during this session.", report.Hits()))
	} else {
		md.Tip("No labels were recognized during this session.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the state distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *SessionReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Result State Distribution"),
		piechart.WithShowData(true),
	)

	tally := report.StateTally()
	for _, state := range report.TallyStates() {
		chart.LabelAndIntValue(state, uint64(tally[state]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTimeline writes the result timeline table.
func (w *MarkdownWriter) writeTimeline(md *markdown.Markdown, report *SessionReport) {
	md.H2("Timeline")
	md.PlainText("")

	if len(report.Results) == 0 {
		md.PlainText("No results were recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{
			res.ReceivedAt.Format("15:04:05"),
			res.State,
			resultLabel(res),
			res.IntakeStatus,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Time", "State", "Label", "Intake Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// resultLabel renders the identifying text for a timeline row.
func resultLabel(res journal.ResultRecord) string {
	switch {
	case res.Name != "" && res.Address != "":
		return res.Name + ", " + res.Address
	case res.TrackingNumber != "":
		return "Tracking " + res.TrackingNumber
	case res.UUID != "":
		return res.UUID
	default:
		return "-"
	}
}
