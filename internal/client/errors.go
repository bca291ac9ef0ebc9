package client

import (
	"errors"
	"fmt"
)

// Handshake and endpoint errors.
//
// Design decision: We define specific error types rather than wrapping
// all errors generically. The controller treats handshake failures as
// fatal and upload failures as transient, so the two must be
// distinguishable with errors.Is / errors.As.
var (
	// ErrHandshakeFailed is returned when the config handshake request
	// fails or returns a non-success status. This is fatal: without the
	// endpoint document the agent cannot talk to the server at all.
	ErrHandshakeFailed = errors.New("config handshake failed")

	// ErrMissingEndpoint is returned when the handshake document lacks
	// the frame upload endpoint. A server that cannot accept frames has
	// nothing to offer a scan session.
	ErrMissingEndpoint = errors.New("handshake document missing streamFrame endpoint")

	// ErrNoConfirmEndpoint is returned when an intake confirmation is
	// attempted against a server that advertised no confirmation
	// endpoint in its handshake.
	ErrNoConfirmEndpoint = errors.New("server advertised no intake confirmation endpoint")

	// ErrInvalidProxyAddress is returned when the SOCKS proxy address
	// format is invalid. Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// UploadError is returned when a frame upload fails, either at the
// transport level or with a non-success HTTP status. The controller
// treats it as transient and reschedules with the long backoff.
type UploadError struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame upload failed: %v", e.Err)
	}
	return fmt.Sprintf("frame upload failed: unexpected status %d", e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// ConfirmError is returned when an intake confirmation submission fails.
// The workflow surfaces it inline but still closes and resumes polling.
type ConfirmError struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfirmError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intake confirmation failed: %v", e.Err)
	}
	return fmt.Sprintf("intake confirmation failed: unexpected status %d", e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *ConfirmError) Unwrap() error {
	return e.Err
}
