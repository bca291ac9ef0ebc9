// Package intake runs the confirmation workflow for a scanned label.
//
// When a scan produces a result that needs operator confirmation, the
// scan loop opens a workflow: polling pauses, the pending payload is
// held, and the operator either confirms it against the server or
// declines it. Either way the workflow closes and polling resumes
// exactly once. Results carrying an existing label are shown close-only
// because there is nothing to submit.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
)

// State is the workflow's position in its lifecycle.
type State string

const (
	// StateClosed means no confirmation is pending.
	StateClosed State = "closed"

	// StateOpen means a payload awaits the operator's decision.
	StateOpen State = "open"

	// StateConfirming means a confirmation request is in flight.
	StateConfirming State = "confirming"
)

// Gate pauses and resumes the scan loop while a workflow is open.
type Gate interface {
	Pause()
	Resume()
}

// Confirmer submits a confirmation payload to the server.
// *client.Client satisfies this.
type Confirmer interface {
	ConfirmIntake(ctx context.Context, payload *model.ScanResult) error
}

// Pusher publishes notification entries. *notify.Feed satisfies this.
type Pusher interface {
	Push(lines []string, tone notify.Tone, dedupeKey string)
}

// Workflow is the Closed -> Open -> Confirming -> Closed sub-state
// machine for one pending confirmation at a time.
type Workflow struct {
	confirmer Confirmer
	gate      Gate
	feed      Pusher
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	pending   *model.ScanResult
	closeOnly bool
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) WorkflowOption {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// NewWorkflow creates a closed Workflow.
func NewWorkflow(confirmer Confirmer, gate Gate, feed Pusher, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		confirmer: confirmer,
		gate:      gate,
		feed:      feed,
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// State returns the workflow's current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Pending returns a copy of the held payload, or nil when closed.
func (w *Workflow) Pending() *model.ScanResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return nil
	}
	cp := *w.pending
	return &cp
}

// CloseOnly reports whether the open payload offers no confirm action.
// True for results that matched an existing label.
func (w *Workflow) CloseOnly() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeOnly
}

// Summary returns the display summary for the held payload.
func (w *Workflow) Summary() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return ""
	}
	return w.pending.Summary()
}

// Open holds the payload for confirmation and pauses the scan loop.
// Returns ErrAlreadyOpen when a confirmation is already pending.
func (w *Workflow) Open(payload *model.ScanResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateClosed {
		return ErrAlreadyOpen
	}

	cp := *payload
	w.pending = &cp
	w.closeOnly = payload.ExistingLabel
	w.state = StateOpen

	w.gate.Pause()
	w.logger.Debug("intake workflow opened",
		"summary", cp.Summary(),
		"close_only", w.closeOnly,
	)
	return nil
}

// Decline discards the held payload and resumes the scan loop. No-op
// unless the workflow is open; a confirmation in flight cannot be
// declined.
func (w *Workflow) Decline() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateOpen {
		return
	}
	w.logger.Debug("intake declined", "summary", w.pending.Summary())
	w.closeLocked()
}

// Confirm submits the held payload. Whether the submission succeeds or
// fails, the workflow closes and the scan loop resumes exactly once.
// Success publishes a neutral notification; failure publishes an error
// notification and is also returned to the caller.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateOpen {
		w.mu.Unlock()
		return ErrNotOpen
	}
	if w.closeOnly {
		w.mu.Unlock()
		return ErrCloseOnly
	}
	w.state = StateConfirming
	payload := w.pending
	w.mu.Unlock()

	err := w.confirmer.ConfirmIntake(ctx, payload)

	w.mu.Lock()
	w.closeLocked()
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("intake confirmation failed", "error", err)
		w.feed.Push(
			[]string{"Confirmation failed", payload.Summary()},
			notify.ToneError,
			"",
		)
		return fmt.Errorf("failed to confirm intake: %w", err)
	}

	w.feed.Push(
		[]string{"Intake confirmed", payload.Summary()},
		notify.ToneNeutral,
		"",
	)
	return nil
}

// closeLocked resets to Closed and resumes the scan loop. Caller holds
// w.mu. The state check in every caller guarantees Resume fires once
// per Open.
func (w *Workflow) closeLocked() {
	w.pending = nil
	w.closeOnly = false
	w.state = StateClosed
	w.gate.Resume()
}
