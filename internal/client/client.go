package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/tavall/scanagent/internal/model"
)

// maxResultBody bounds the classification response size.
const maxResultBody = 1 << 20 // 1MB

// closeTimeout caps the best-effort session close request. Teardown must
// never hold up process exit for longer than this.
const closeTimeout = 2 * time.Second

// Client talks to the classification server.
// A single Client serves one scan session; it carries the resolved
// endpoint document after Handshake succeeds.
//
// Design decision: We keep one shared *http.Client rather than creating
// clients per call because the upload cadence benefits from connection
// reuse, and per-server credentials are injected at the transport level
// so every request is covered uniformly.
type Client struct {
	// baseURL is the server base; endpoint paths resolve against it.
	baseURL *url.URL

	// httpClient performs all requests. Built once in New.
	httpClient *http.Client

	// endpoints is populated by Handshake.
	endpoints Endpoints

	// csrfToken is sent as a form field on posts and as a header on
	// uploads, when configured.
	csrfToken string

	// timeout is the per-request timeout.
	timeout time.Duration

	// socksProxy is an optional SOCKS5 proxy address.
	socksProxy string

	// cookie and headers are injected into every request.
	cookie  string
	headers map[string]string

	// logger for request-level debug output.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCSRFToken sets the anti-forgery token attached to form posts and
// frame uploads.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		c.csrfToken = token
	}
}

// WithCookie sets a raw cookie string (e.g. "JSESSIONID=abc") sent with
// every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithHeaders sets custom headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithSocksProxy routes all requests through a SOCKS5 proxy at the given
// "host:port" address.
func WithSocksProxy(address string) Option {
	return func(c *Client) {
		c.socksProxy = address
	}
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the given server base URL.
//
// Design decision: We validate the proxy address and build the transport
// here rather than lazily because a malformed proxy should fail at
// startup, not on the first upload mid-session.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if c.socksProxy != "" {
		if !isValidProxyAddress(c.socksProxy) {
			return nil, ErrInvalidProxyAddress
		}
		// nil auth: a local SOCKS5 forwarder typically requires none.
		dialer, err := proxy.SOCKS5("tcp", c.socksProxy, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	c.httpClient = &http.Client{
		Transport: &headerInjectingTransport{
			base:    transport,
			cookie:  c.cookie,
			headers: c.headers,
		},
		Timeout: c.timeout,
	}

	return c, nil
}

// Endpoints returns the endpoint document resolved by Handshake.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// resolve joins an endpoint path with the server base URL. Endpoint
// values from the handshake may be absolute URLs or rooted paths.
func (c *Client) resolve(endpoint string) string {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return c.baseURL.String() + endpoint
	}
	return c.baseURL.ResolveReference(ref).String()
}

// UploadMeta is the session metadata attached to each frame upload.
type UploadMeta struct {
	// ScanMode is the mode string from the camera-mode registry.
	ScanMode string

	// RouteID is the route identifier for ROUTE scans.
	RouteID string

	// SessionID is the scan session token.
	SessionID string
}

// UploadFrame sends one captured frame to the classification endpoint.
// It returns the decoded result, or a *UploadError on transport failure
// or a non-success status. The caller treats upload errors as transient.
func (c *Client) UploadFrame(ctx context.Context, frame []byte, meta UploadMeta) (*model.ScanResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("image", "frame.png")
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	if _, err := part.Write(frame); err != nil {
		return nil, &UploadError{Err: err}
	}

	// Optional metadata fields; the server defaults what is absent.
	if meta.ScanMode != "" {
		if err := mw.WriteField("scanMode", meta.ScanMode); err != nil {
			return nil, &UploadError{Err: err}
		}
	}
	if meta.RouteID != "" {
		if err := mw.WriteField("routeId", meta.RouteID); err != nil {
			return nil, &UploadError{Err: err}
		}
	}
	if meta.SessionID != "" {
		if err := mw.WriteField("scanSessionId", meta.SessionID); err != nil {
			return nil, &UploadError{Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.endpoints.StreamFrame), &body)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.csrfToken != "" {
		req.Header.Set("X-Csrf-Token", c.csrfToken)
	}

	c.logger.Debug("uploading frame",
		"bytes", len(frame),
		"scan_mode", meta.ScanMode,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBody))
	if err != nil {
		return nil, &UploadError{Err: err}
	}

	var result model.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &UploadError{Err: fmt.Errorf("malformed classification response: %w", err)}
	}
	result.Normalize()

	return &result, nil
}

// ConfirmIntake submits a pending intake payload to the confirmation
// endpoint as a form-encoded POST. Returns *ConfirmError on failure.
func (c *Client) ConfirmIntake(ctx context.Context, payload *model.ScanResult) error {
	if c.endpoints.ConfirmIntake == "" {
		return ErrNoConfirmEndpoint
	}

	form := url.Values{}
	setIfPresent := func(key, value string) {
		if value != "" {
			form.Set(key, value)
		}
	}
	setIfPresent("uuid", payload.UUID)
	setIfPresent("trackingNumber", payload.TrackingNumber)
	setIfPresent("name", payload.Name)
	setIfPresent("address", payload.Address)
	setIfPresent("city", payload.City)
	setIfPresent("state", payload.State)
	setIfPresent("zip", payload.ZipCode)
	setIfPresent("country", payload.Country)
	setIfPresent("phone", payload.PhoneNumber)
	setIfPresent("deadline", payload.Deadline)
	setIfPresent("_csrf", c.csrfToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.resolve(c.endpoints.ConfirmIntake), strings.NewReader(form.Encode()))
	if err != nil {
		return &ConfirmError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConfirmError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Response body is not used

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConfirmError{StatusCode: resp.StatusCode}
	}

	return nil
}

// CloseSession notifies the server that the scan session ended.
// Best effort: a short timeout caps the request and all failures are
// reported as a return value the caller is expected to ignore beyond
// logging. Teardown must never block on this call.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	if c.endpoints.CloseSession == "" || sessionID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("scanSessionId", sessionID)
	if c.csrfToken != "" {
		form.Set("_csrf", c.csrfToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.resolve(c.endpoints.CloseSession), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Response body is not used

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("session close returned status %d", resp.StatusCode)
	}
	return nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// We use a simple check rather than a full URL parser because the format
// is very specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	return host != "" && port != ""
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
