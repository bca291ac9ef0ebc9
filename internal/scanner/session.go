package scanner

import (
	"time"

	"github.com/google/uuid"

	"github.com/tavall/scanagent/internal/model"
)

// Session is the identity and scan-local state of one controller run.
// The token is generated once at creation and never changes; everything
// else is mutated only by the controller's loop goroutine.
type Session struct {
	// Token is the process-generated session identifier sent with every
	// upload and with the close notice.
	Token string

	// ScanType selects which session actions fire on FOUND results.
	ScanType model.ScanType

	// ModeKey is the camera-mode registry key the session resolved.
	ModeKey string

	// Mode is the scan-mode string echoed on every upload.
	Mode string

	// RouteID is set for ROUTE scans.
	RouteID string

	// StartedAt is when the session was created.
	StartedAt time.Time

	cooldownUntil time.Time
	lastState     model.CameraState
	lastSub       model.ResponseState
}

// NewSession creates a session with a fresh random token.
func NewSession(scanType model.ScanType, modeKey, mode, routeID string) *Session {
	return &Session{
		Token:     uuid.NewString(),
		ScanType:  scanType,
		ModeKey:   modeKey,
		Mode:      mode,
		RouteID:   routeID,
		StartedAt: time.Now(),
		lastState: model.StateSearching,
		lastSub:   model.ResponseIdle,
	}
}

// LastState returns the most recent display state.
func (s *Session) LastState() model.CameraState {
	return s.lastState
}

// LastSubState returns the most recent classification sub-state.
func (s *Session) LastSubState() model.ResponseState {
	return s.lastSub
}

// InCooldown reports whether the cooldown window armed by a FOUND
// action is still active at the given time.
func (s *Session) InCooldown(now time.Time) bool {
	return now.Before(s.cooldownUntil)
}

// armCooldown opens a cooldown window. While it is active the loop
// skips uploads entirely, so repeated hits on the label that triggered
// it stay suppressed.
func (s *Session) armCooldown(now time.Time, window time.Duration) {
	s.cooldownUntil = now.Add(window)
}
