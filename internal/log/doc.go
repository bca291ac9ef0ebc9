// Package log provides secure logging functionality with automatic
// sanitization of sensitive information, built on top of the standard
// slog package.
//
// Scan sessions authenticate against the classification server with
// cookies and anti-forgery tokens, and every upload carries a session
// identifier. The SecureHandler masks these values in log attributes so
// verbose logs can be shared safely:
//   - HTTP credentials (Authorization, Cookie, Set-Cookie, X-Csrf-Token)
//   - CSRF tokens and session identifiers
//   - Bearer/Basic/JWT shaped values detected by pattern matching
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Info("upload sent",
//	    "cookie", "JSESSIONID=abc123", // sanitized
//	    "endpoint", "/internal/api/v1/stream/frame",
//	)
//	slog.SetDefault(logger)
package log
