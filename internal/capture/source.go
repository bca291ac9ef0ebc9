package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Kind identifies which media surface a source reads.
type Kind string

const (
	// KindCamera reads a V4L2 video device.
	KindCamera Kind = "camera"

	// KindScreen grabs an X11 display.
	KindScreen Kind = "screen"
)

// Frame is one encoded frame produced by a source.
type Frame struct {
	// Data is the encoded image (JPEG from the ffmpeg sources).
	Data []byte

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// At is when the frame was read from the source.
	At time.Time
}

// Source produces frames until stopped or until the underlying media
// ends. The returned channel is closed when the source ends for any
// reason. Stop is idempotent and safe to call concurrently.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop()
	Kind() Kind
}

// Geometry describes the capture resolution and frame rate requested
// from the source.
type Geometry struct {
	Width  int
	Height int
	Rate   int
}

// maxFrameSize bounds a single MJPEG frame. A 1280x720 JPEG at low
// compression stays well under this; anything larger means the stream
// is corrupt.
const maxFrameSize = 8 << 20 // 8MB

// ffmpegBinary is the subprocess both sources shell out to. Overridden
// in tests.
var ffmpegBinary = "ffmpeg"

// SubprocessSource runs ffmpeg and splits its stdout MJPEG stream into
// frames. It is single-use: create a new one for every start.
type SubprocessSource struct {
	kind     Kind
	args     []string
	geometry Geometry
	logger   *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool

	stopOnce sync.Once
}

// NewCameraSource creates a source reading the given V4L2 device.
func NewCameraSource(device string, geo Geometry, logger *slog.Logger) *SubprocessSource {
	return &SubprocessSource{
		kind:     KindCamera,
		geometry: geo,
		logger:   logger,
		args: []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "v4l2",
			"-framerate", fmt.Sprint(geo.Rate),
			"-video_size", fmt.Sprintf("%dx%d", geo.Width, geo.Height),
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		},
	}
}

// NewScreenSource creates a source grabbing the X11 display named by
// $DISPLAY (":0.0" when unset), with the cursor drawn.
func NewScreenSource(geo Geometry, logger *slog.Logger) *SubprocessSource {
	display := os.Getenv("DISPLAY")
	if display == "" {
		display = ":0.0"
	}
	return &SubprocessSource{
		kind:     KindScreen,
		geometry: geo,
		logger:   logger,
		args: []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "x11grab",
			"-draw_mouse", "1",
			"-framerate", fmt.Sprint(geo.Rate),
			"-video_size", fmt.Sprintf("%dx%d", geo.Width, geo.Height),
			"-i", display,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		},
	}
}

// Kind returns the media surface this source reads.
func (s *SubprocessSource) Kind() Kind {
	return s.kind
}

// Start launches the subprocess and begins pumping frames. The channel
// carries at most one buffered frame; when the consumer lags, older
// frames are dropped so the latest frame always wins.
func (s *SubprocessSource) Start(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrSourceAlreadyStarted
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &AcquisitionError{Kind: s.kind, Err: err}
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, &AcquisitionError{Kind: s.kind, Err: err}
	}
	s.cmd = cmd
	s.started = true

	if s.logger != nil {
		s.logger.Debug("media source started",
			"kind", string(s.kind),
			"pid", cmd.Process.Pid,
		)
	}

	frames := make(chan Frame, 1)
	go s.pump(stdout, frames)
	return frames, nil
}

// Stop kills the subprocess. The pump goroutine observes the resulting
// stdout EOF and closes the frame channel.
func (s *SubprocessSource) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cmd := s.cmd
		s.mu.Unlock()
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	})
}

func (s *SubprocessSource) pump(r io.Reader, frames chan Frame) {
	defer close(frames)
	defer func() {
		// Reap the subprocess. The exit status is uninteresting: a kill
		// from Stop and a clean exit both just end the stream.
		_ = s.cmd.Wait()
	}()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	sc.Split(splitJPEG)

	for sc.Scan() {
		data := make([]byte, len(sc.Bytes()))
		copy(data, sc.Bytes())

		frame := Frame{
			Data:   data,
			Width:  s.geometry.Width,
			Height: s.geometry.Height,
			At:     time.Now(),
		}

		select {
		case frames <- frame:
		default:
			// Consumer lagging: discard the buffered frame and retry.
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- frame:
			default:
			}
		}
	}

	if err := sc.Err(); err != nil && s.logger != nil {
		s.logger.Debug("media stream ended with error",
			"kind", string(s.kind),
			"error", err,
		)
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc cutting an MJPEG byte stream into
// individual JPEG images, delimited by the SOI and EOI markers.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, bufio.ErrFinalToken
		}
		// Keep the last byte: it may be the first half of a marker.
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			// Truncated trailing frame; drop it.
			return len(data), nil, bufio.ErrFinalToken
		}
		return start, nil, nil
	}

	frameEnd := start + len(jpegSOI) + end + len(jpegEOI)
	return frameEnd, data[start:frameEnd], nil
}
