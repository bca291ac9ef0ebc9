package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces any attribute value judged sensitive.
const Redacted = "***REDACTED***"

// credentialWords are substrings that mark an attribute key as
// credential-bearing. The bare word "key" is deliberately absent: it
// matches harmless keys like "mode_key" and "dedupe_key".
var credentialWords = []string{
	"password",
	"secret",
	"token",
	"auth",
	"credential",
	"cookie",
	"csrf",
	"session",
	"api-key",
	"apikey",
}

// credentialValues match sensitive strings by shape, independent of the
// attribute key: JWTs, Authorization header values, and cookie pairs
// carrying a session or anti-forgery value.
var credentialValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`(?i)(jsessionid|session_id|csrf)=[^;\s]+`),
}

// SecureHandler is an slog.Handler middleware that redacts credential
// attributes before the wrapped handler formats them.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next in a redacting handler. A nil next falls
// back to slog.Default().Handler().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle rebuilds the record with redacted attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

// WithAttrs redacts the attributes before handing them down, so
// logger-scoped credentials never reach the wrapped handler at all.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(clean)}
}

// WithGroup delegates to the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// redactAttr replaces credential values, recursing into groups.
func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = redactAttr(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	key := strings.ToLower(a.Key)
	for _, w := range credentialWords {
		if strings.Contains(key, w) {
			return slog.String(a.Key, Redacted)
		}
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		for _, re := range credentialValues {
			if re.MatchString(s) {
				return slog.String(a.Key, Redacted)
			}
		}
	}

	return a
}

// NewSecureLogger builds the logger the CLI installs as the default:
// a text handler on w behind a SecureHandler. Verbose selects Debug,
// otherwise only warnings and errors are emitted so notifications and
// state badges stay readable on the same stream.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewSecureHandler(text))
}
