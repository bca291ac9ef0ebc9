package intake

import "errors"

var (
	// ErrAlreadyOpen is returned when Open is called while a
	// confirmation is already pending.
	ErrAlreadyOpen = errors.New("intake: confirmation already open")

	// ErrNotOpen is returned when Confirm is called with no pending
	// confirmation.
	ErrNotOpen = errors.New("intake: no confirmation open")

	// ErrCloseOnly is returned when Confirm is called on a payload that
	// matched an existing label and offers no confirm action.
	ErrCloseOnly = errors.New("intake: payload is close-only")

	// ErrNoDuplicate is returned when the duplicate action is invoked
	// before any duplicate payload has been seen.
	ErrNoDuplicate = errors.New("intake: no duplicate payload recorded")

	// ErrSubmitInFlight is returned when the duplicate action is
	// invoked while a previous submission is still running.
	ErrSubmitInFlight = errors.New("intake: duplicate submission already in flight")
)
