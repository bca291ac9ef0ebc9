package capture

import (
	"errors"
	"fmt"
)

// ErrSourceAlreadyStarted is returned when Start is called twice on the
// same source. Sources are single-use; the Manager creates a fresh one
// for every switch.
var ErrSourceAlreadyStarted = errors.New("capture: source already started")

// AcquisitionError reports a failure to open a media source. It is
// fatal to the source: the caller surfaces it instead of retrying,
// because a missing device or display will not appear on its own.
type AcquisitionError struct {
	// Kind identifies which source failed to open.
	Kind Kind

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire %s source: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
