package report

import (
	"io"
	"sort"
	"time"

	"github.com/tavall/scanagent/internal/journal"
	"github.com/tavall/scanagent/internal/model"
)

// SessionReport is the renderable view of one scan session: the
// session row plus its result timeline.
type SessionReport struct {
	Session journal.SessionRecord
	Results []journal.ResultRecord
}

// NewSessionReport builds a SessionReport.
func NewSessionReport(session journal.SessionRecord, results []journal.ResultRecord) *SessionReport {
	return &SessionReport{
		Session: session,
		Results: results,
	}
}

// StateTally counts results by display state.
func (r *SessionReport) StateTally() map[string]int {
	tally := make(map[string]int)
	for _, res := range r.Results {
		tally[res.State]++
	}
	return tally
}

// TallyStates returns the tallied state names in a stable order.
func (r *SessionReport) TallyStates() []string {
	tally := r.StateTally()
	states := make([]string, 0, len(tally))
	for state := range tally {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Hits counts results whose state was FOUND or SCANNED.
func (r *SessionReport) Hits() int {
	var hits int
	for _, res := range r.Results {
		if res.State == string(model.StateFound) || res.State == string(model.StateScanned) {
			hits++
		}
	}
	return hits
}

// Duration returns the session's length, zero when still open.
func (r *SessionReport) Duration() time.Duration {
	if r.Session.ClosedAt == nil {
		return 0
	}
	return r.Session.ClosedAt.Sub(r.Session.StartedAt)
}

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output
// formats and destinations. This enables writing to files, stdout, or
// network connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *SessionReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously. Useful for
// outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different from
// io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers. Returns the total
// bytes written; stops on the first error encountered.
func (m *MultiWriter) Write(report *SessionReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
