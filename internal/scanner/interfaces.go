package scanner

import (
	"context"
	"errors"

	"github.com/tavall/scanagent/internal/capture"
	"github.com/tavall/scanagent/internal/client"
	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
)

// ErrNoActiveSource is returned by a frame source whose media stream is
// not running. The controller surfaces it as a capture failure.
var ErrNoActiveSource = errors.New("scanner: no active media source")

// FrameSource yields the latest encoded frame. A nil frame with nil
// error means no decoded frame is available yet and the cycle should be
// retried shortly; an error means capture itself failed.
type FrameSource interface {
	CaptureFrame() ([]byte, error)
}

// Uploader is the client surface the controller depends on.
// *client.Client satisfies this.
type Uploader interface {
	UploadFrame(ctx context.Context, frame []byte, meta client.UploadMeta) (*model.ScanResult, error)
	CloseSession(ctx context.Context, sessionID string) error
}

// Pusher publishes notification entries. *notify.Feed satisfies this.
type Pusher interface {
	Push(lines []string, tone notify.Tone, dedupeKey string)
}

// Workflow opens intake confirmations. *intake.Workflow satisfies this.
type Workflow interface {
	Open(payload *model.ScanResult) error
}

// DuplicateKeeper remembers the last-seen exact-duplicate payload.
// *intake.DuplicateAction satisfies this.
type DuplicateKeeper interface {
	Remember(payload *model.ScanResult)
}

// ParentNotifier posts structured messages to the embedding context.
// Used only when the session runs embedded.
type ParentNotifier interface {
	// DriverScanFound reports a QR_SCAN hit by identifier.
	DriverScanFound(uuid string)

	// RouteScanResult reports a ROUTE hit with its full payload.
	RouteScanResult(routeID string, payload *model.ScanResult)
}

// Navigator redirects the top-level surface to the follow-up view for a
// scanned identifier. Navigation ends the session.
type Navigator interface {
	Navigate(uuid string)
}

// StatusSink receives display-state changes for rendering.
type StatusSink interface {
	SetState(state model.CameraState, sub model.ResponseState)
}

// Recorder persists results as they arrive. *journal.Journal satisfies
// this.
type Recorder interface {
	RecordResult(ctx context.Context, token string, result *model.ScanResult) error
}

// ManagedSource adapts a capture manager and grabber to FrameSource.
// It reports a capture failure while no media source is running, which
// distinguishes "stream died" from "stream warming up".
type ManagedSource struct {
	manager *capture.Manager
	grabber *capture.Grabber
}

// NewManagedSource creates a ManagedSource.
func NewManagedSource(manager *capture.Manager, grabber *capture.Grabber) *ManagedSource {
	return &ManagedSource{manager: manager, grabber: grabber}
}

// CaptureFrame implements FrameSource.
func (s *ManagedSource) CaptureFrame() ([]byte, error) {
	if s.manager.Active() == "" {
		return nil, ErrNoActiveSource
	}
	return s.grabber.CaptureFrame(), nil
}
