package capture

import "sync"

// Grabber holds the most recent frame delivered by the active source.
// The scan loop pulls frames on its own cadence, which is far slower
// than the source's frame rate, so only the latest frame matters.
//
// Design decision: Store reuses a single internal buffer instead of
// retaining each frame's slice. The source allocates per frame; keeping
// our own buffer caps the grabber's footprint at one frame regardless
// of how fast the source produces.
type Grabber struct {
	mu     sync.Mutex
	buf    []byte
	width  int
	height int
}

// NewGrabber creates an empty grabber.
func NewGrabber() *Grabber {
	return &Grabber{}
}

// Store records a frame as the latest. Frames with no data or zero
// dimensions are ignored; they occur while a source is still warming up.
func (g *Grabber) Store(frame Frame) {
	if len(frame.Data) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf = append(g.buf[:0], frame.Data...)
	g.width = frame.Width
	g.height = frame.Height
}

// CaptureFrame returns a copy of the latest frame's encoded bytes, or
// nil when no usable frame has arrived yet. Callers treat nil as "skip
// this cycle and try again shortly".
func (g *Grabber) CaptureFrame() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.buf) == 0 || g.width <= 0 || g.height <= 0 {
		return nil
	}
	out := make([]byte, len(g.buf))
	copy(out, g.buf)
	return out
}

// Reset discards the held frame. Called when the active source stops so
// a stale frame from a dead source is never uploaded.
func (g *Grabber) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf = g.buf[:0]
	g.width = 0
	g.height = 0
}
