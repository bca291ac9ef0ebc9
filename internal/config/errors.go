package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoServer is returned when no classification server URL is given.
	ErrNoServer = errors.New("no server specified: provide a server base URL with --server")

	// ErrInvalidServerURL is returned when the server URL cannot be
	// parsed or lacks a scheme or host.
	ErrInvalidServerURL = errors.New("invalid server URL: must include scheme and host")

	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidInterval is returned when a polling interval is zero or
	// negative. A zero interval would spin the loop without yielding.
	ErrInvalidInterval = errors.New("invalid polling interval: must be positive")

	// ErrBackoffTooShort is returned when the upload failure backoff is
	// shorter than a success-path interval. Failures must always be
	// retried more slowly than successes.
	ErrBackoffTooShort = errors.New("invalid upload backoff: must be at least the steady and busy intervals")

	// ErrInvalidIdleThreshold is returned when the consecutive-miss
	// threshold is below one.
	ErrInvalidIdleThreshold = errors.New("invalid idle threshold: must be at least 1")

	// ErrInvalidNotifyWindow is returned when the notification TTL is
	// not positive or the dedupe window is negative.
	ErrInvalidNotifyWindow = errors.New("invalid notification timing: TTL must be positive, dedupe window non-negative")

	// ErrInvalidGeometry is returned when the capture width, height or
	// frame rate is not positive.
	ErrInvalidGeometry = errors.New("invalid capture geometry: width, height and frame rate must be positive")
)
