package capture

import (
	"bytes"
	"testing"
	"time"
)

func TestGrabber(t *testing.T) {
	t.Parallel()

	t.Run("empty grabber captures nil", func(t *testing.T) {
		t.Parallel()

		g := NewGrabber()
		if got := g.CaptureFrame(); got != nil {
			t.Errorf("expected nil before any frame, got %d bytes", len(got))
		}
	})

	t.Run("latest frame wins", func(t *testing.T) {
		t.Parallel()

		g := NewGrabber()
		g.Store(Frame{Data: []byte("first"), Width: 640, Height: 480, At: time.Now()})
		g.Store(Frame{Data: []byte("second"), Width: 640, Height: 480, At: time.Now()})

		if got := g.CaptureFrame(); !bytes.Equal(got, []byte("second")) {
			t.Errorf("expected latest frame, got %q", got)
		}
	})

	t.Run("zero-dimension frames are ignored", func(t *testing.T) {
		t.Parallel()

		g := NewGrabber()
		g.Store(Frame{Data: []byte("warming-up"), Width: 0, Height: 0})
		if got := g.CaptureFrame(); got != nil {
			t.Errorf("expected nil for zero-dimension frame, got %q", got)
		}

		g.Store(Frame{Data: nil, Width: 640, Height: 480})
		if got := g.CaptureFrame(); got != nil {
			t.Errorf("expected nil for empty frame, got %q", got)
		}
	})

	t.Run("capture returns an independent copy", func(t *testing.T) {
		t.Parallel()

		g := NewGrabber()
		g.Store(Frame{Data: []byte("frame-a"), Width: 640, Height: 480})

		captured := g.CaptureFrame()
		g.Store(Frame{Data: []byte("frame-b"), Width: 640, Height: 480})

		if !bytes.Equal(captured, []byte("frame-a")) {
			t.Errorf("captured frame mutated by later store: %q", captured)
		}
	})

	t.Run("reset discards the held frame", func(t *testing.T) {
		t.Parallel()

		g := NewGrabber()
		g.Store(Frame{Data: []byte("stale"), Width: 640, Height: 480})
		g.Reset()
		if got := g.CaptureFrame(); got != nil {
			t.Errorf("expected nil after reset, got %q", got)
		}
	})
}
