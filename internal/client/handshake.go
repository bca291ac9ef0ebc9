package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tavall/scanagent/internal/model"
)

// HandshakePath is the only hardcoded endpoint path. Everything else is
// hydrated from the handshake document the server returns here.
const HandshakePath = "/internal/api/v1/config/handshake"

// maxHandshakeBody bounds the handshake response size. The document is a
// small JSON object; anything larger indicates a misrouted URL.
const maxHandshakeBody = 1 << 20 // 1MB

// Endpoints describes the server-provided endpoint paths.
type Endpoints struct {
	// StreamFrame receives frame uploads. Required.
	StreamFrame string `json:"streamFrame"`

	// CloseSession receives the best-effort teardown notice. Optional.
	CloseSession string `json:"closeSession,omitempty"`

	// ConfirmIntake receives intake confirmations. Optional; required
	// in practice for intake-mode sessions.
	ConfirmIntake string `json:"confirmIntake,omitempty"`
}

// CameraMode is one entry of the handshake's camera-mode registry.
// The key selects the entry; the entry tells the agent which scan type
// the session runs and which mode string to send with each upload.
type CameraMode struct {
	// Type is the scan type (INTAKE, QR_SCAN, ROUTE).
	Type string `json:"type"`

	// Mode is the scan-mode string echoed back on every frame upload.
	Mode string `json:"mode"`

	// IntakeFlow marks modes whose results go through intake gating.
	IntakeFlow bool `json:"intakeFlow,omitempty"`
}

// ScanType returns the parsed scan type for this mode.
func (m CameraMode) ScanType() model.ScanType {
	return model.ParseScanType(m.Type)
}

// Handshake is the config document returned by the handshake endpoint.
type Handshake struct {
	Endpoints   Endpoints             `json:"endpoints"`
	CameraModes map[string]CameraMode `json:"cameraModes,omitempty"`
	DefaultMode string                `json:"defaultMode,omitempty"`
}

// Mode resolves a camera mode by key, falling back to the default key
// and then to a plain intake mode when the registry is absent. The
// second return value is the resolved key.
func (h *Handshake) Mode(key string) (CameraMode, string) {
	if len(h.CameraModes) == 0 {
		return CameraMode{Type: string(model.ScanIntake)}, ""
	}
	if key != "" {
		if m, ok := h.CameraModes[key]; ok {
			return m, key
		}
	}
	if m, ok := h.CameraModes[h.DefaultMode]; ok {
		return m, h.DefaultMode
	}
	// Registry present but the default key is dangling; take any entry
	// deterministically is not possible over a map, so fall back to a
	// plain intake mode.
	return CameraMode{Type: string(model.ScanIntake)}, ""
}

// Handshake performs the config handshake against the server.
// A failure here is fatal to the controller: it returns an error wrapping
// ErrHandshakeFailed, or ErrMissingEndpoint when the document lacks the
// frame upload endpoint.
func (c *Client) Handshake(ctx context.Context) (*Handshake, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(HandshakePath), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrHandshakeFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHandshakeBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	var hs Handshake
	if err := json.Unmarshal(body, &hs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if hs.Endpoints.StreamFrame == "" {
		return nil, ErrMissingEndpoint
	}

	c.endpoints = hs.Endpoints
	return &hs, nil
}
