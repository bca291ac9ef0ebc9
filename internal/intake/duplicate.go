package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
)

// DuplicateAction is the one-click shortcut for a label the server
// reported as already scanned at this address. It remembers the most
// recent duplicate payload and submits it directly to the confirmation
// endpoint, bypassing the open/confirm workflow.
type DuplicateAction struct {
	confirmer Confirmer
	feed      Pusher
	logger    *slog.Logger

	mu       sync.Mutex
	payload  *model.ScanResult
	inFlight bool
}

// NewDuplicateAction creates an empty DuplicateAction.
func NewDuplicateAction(confirmer Confirmer, feed Pusher, logger *slog.Logger) *DuplicateAction {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateAction{
		confirmer: confirmer,
		feed:      feed,
		logger:    logger,
	}
}

// Remember stores the payload as the last-seen duplicate.
func (a *DuplicateAction) Remember(payload *model.ScanResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *payload
	a.payload = &cp
}

// Available reports whether the action can be invoked right now. False
// before any duplicate has been seen and while a submission runs.
func (a *DuplicateAction) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.payload != nil && !a.inFlight
}

// Submit sends the remembered payload to the confirmation endpoint. The
// action disables itself while the request runs and restores afterward
// regardless of the outcome.
func (a *DuplicateAction) Submit(ctx context.Context) error {
	a.mu.Lock()
	if a.payload == nil {
		a.mu.Unlock()
		return ErrNoDuplicate
	}
	if a.inFlight {
		a.mu.Unlock()
		return ErrSubmitInFlight
	}
	a.inFlight = true
	payload := a.payload
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	err := a.confirmer.ConfirmIntake(ctx, payload)
	if err != nil {
		a.logger.Warn("duplicate submission failed", "error", err)
		a.feed.Push(
			[]string{"Duplicate submission failed", payload.Summary()},
			notify.ToneError,
			"",
		)
		return fmt.Errorf("failed to submit duplicate: %w", err)
	}

	a.feed.Push(
		[]string{"Duplicate recorded", payload.Summary()},
		notify.ToneNeutral,
		"",
	)
	return nil
}
