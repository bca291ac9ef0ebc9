package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandlerMasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "cookie header", key: "cookie", value: "JSESSIONID=abc123"},
		{name: "csrf token", key: "csrf_token", value: "tok-123"},
		{name: "session id", key: "scan_session_id", value: "9c1f"},
		{name: "authorization", key: "Authorization", value: "Bearer abc"},
		{name: "keyword substring", key: "upload_auth_header", value: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
			logger.Info("test", tt.key, tt.value)

			out := buf.String()
			if strings.Contains(out, tt.value) {
				t.Errorf("expected %q to be masked, output: %s", tt.value, out)
			}
			if !strings.Contains(out, Redacted) {
				t.Errorf("expected mask marker in output: %s", out)
			}
		})
	}
}

func TestSecureHandlerMasksSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{name: "bearer token", value: "Bearer eyJtoken"},
		{name: "jwt", value: "eyJhbGciOi.eyJzdWIiOi.sig"},
		{name: "session cookie pair", value: "JSESSIONID=deadbeef; Path=/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
			logger.Info("test", "detail", tt.value)

			if !strings.Contains(buf.String(), Redacted) {
				t.Errorf("expected value %q to be masked, output: %s", tt.value, buf.String())
			}
		})
	}
}

func TestSecureHandlerLeavesOrdinaryAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
	logger.Info("test", "dedupe_key", "a1b2c3", "camera_state", "FOUND")

	out := buf.String()
	if !strings.Contains(out, "a1b2c3") || !strings.Contains(out, "FOUND") {
		t.Errorf("expected ordinary attributes untouched, output: %s", out)
	}
}

func TestSecureHandlerSanitizesGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
	logger.Info("test", slog.Group("request", slog.String("cookie", "secret-cookie"), slog.String("path", "/frame")))

	out := buf.String()
	if strings.Contains(out, "secret-cookie") {
		t.Errorf("expected grouped cookie to be masked, output: %s", out)
	}
	if !strings.Contains(out, "/frame") {
		t.Errorf("expected grouped path untouched, output: %s", out)
	}
}

func TestNewSecureLoggerLevels(t *testing.T) {
	t.Parallel()

	t.Run("non-verbose suppresses info", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, false)
		logger.Info("should not appear")
		if buf.Len() != 0 {
			t.Errorf("expected no output, got: %s", buf.String())
		}
	})

	t.Run("verbose emits debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, true)
		logger.Debug("debug line")
		if buf.Len() == 0 {
			t.Error("expected debug output in verbose mode")
		}
	})
}

func TestSecureHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSecureHandler(slog.NewTextHandler(&buf, nil)))
	logger = logger.With("csrf_token", "tok-999", "route_id", "route-7")
	logger.Info("test")

	out := buf.String()
	if strings.Contains(out, "tok-999") {
		t.Errorf("expected logger-scoped token to be masked, output: %s", out)
	}
	if !strings.Contains(out, "route-7") {
		t.Errorf("expected route id untouched, output: %s", out)
	}
}
