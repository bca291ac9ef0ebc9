package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONWriter outputs session reports in JSON format. Designed for
// programmatic consumption by wrapping tools.
type JSONWriter struct {
	baseWriter

	// indent settings for pretty printing
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets custom indentation for pretty printing.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint enables standard two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = ""
		w.indent = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonReport is the serialized shape of a session report.
type jsonReport struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Session     jsonSession    `json:"session"`
	StateTally  map[string]int `json:"stateTally"`
	Hits        int            `json:"hits"`
	Results     []jsonResult   `json:"results"`
}

type jsonSession struct {
	Token     string     `json:"token"`
	ScanType  string     `json:"scanType"`
	ModeKey   string     `json:"modeKey,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	RouteID   string     `json:"routeId,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

type jsonResult struct {
	State          string    `json:"state"`
	SubState       string    `json:"subState,omitempty"`
	UUID           string    `json:"uuid,omitempty"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Name           string    `json:"name,omitempty"`
	Address        string    `json:"address,omitempty"`
	City           string    `json:"city,omitempty"`
	IntakeStatus   string    `json:"intakeStatus,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// Write outputs the session report as a single JSON document.
func (w *JSONWriter) Write(report *SessionReport) (int, error) {
	doc := jsonReport{
		GeneratedAt: time.Now().UTC(),
		Session: jsonSession{
			Token:     report.Session.Token,
			ScanType:  report.Session.ScanType,
			ModeKey:   report.Session.ModeKey,
			Mode:      report.Session.Mode,
			RouteID:   report.Session.RouteID,
			StartedAt: report.Session.StartedAt,
			ClosedAt:  report.Session.ClosedAt,
		},
		StateTally: report.StateTally(),
		Hits:       report.Hits(),
	}
	for _, res := range report.Results {
		doc.Results = append(doc.Results, jsonResult{
			State:          res.State,
			SubState:       res.SubState,
			UUID:           res.UUID,
			TrackingNumber: res.TrackingNumber,
			Name:           res.Name,
			Address:        res.Address,
			City:           res.City,
			IntakeStatus:   res.IntakeStatus,
			Notes:          res.Notes,
			ReceivedAt:     res.ReceivedAt,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if w.indent != "" || w.prefix != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode report: %w", err)
	}

	n, err := w.output.Write(buf.Bytes())
	if err != nil {
		return n, fmt.Errorf("failed to write report: %w", err)
	}
	return n, nil
}
