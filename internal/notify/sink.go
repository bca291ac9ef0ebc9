package notify

import (
	"fmt"
	"io"
	"sync"
)

// WriterSink renders entries as prefixed lines on a writer, one entry
// per Publish. It is line-oriented: entries cannot be repainted once
// written, so Fade and Remove are no-ops.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Publish writes the entry's lines with a tone marker on the first line.
func (s *WriterSink) Publish(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker := toneMarker(entry.Tone)
	for i, line := range entry.Lines {
		if i == 0 {
			fmt.Fprintf(s.w, "%s %s\n", marker, line)
			continue
		}
		fmt.Fprintf(s.w, "  %s\n", line)
	}
}

// Fade implements Sink. No-op for a line stream.
func (s *WriterSink) Fade(int64) {}

// Remove implements Sink. No-op for a line stream.
func (s *WriterSink) Remove(int64) {}

func toneMarker(tone Tone) string {
	switch tone {
	case ToneError:
		return "[!]"
	case ToneVerifying:
		return "[~]"
	default:
		return "[*]"
	}
}
