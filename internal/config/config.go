package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The cadence values are chosen to match the classification service's
// behavior: the analyzer takes roughly a second per frame, and hammering
// it faster than that only burns bandwidth on frames it will discard.
const (
	// DefaultSteadyInterval is the base delay between upload cycles while
	// the session is actively searching.
	DefaultSteadyInterval = 1 * time.Second

	// DefaultBusyInterval is used when the server reports an analysis in
	// flight (responding sub-state or a processing/verifying intake
	// status). Polling faster than this returns the same interim answer.
	DefaultBusyInterval = 2500 * time.Millisecond

	// DefaultIdleInterval kicks in after several consecutive misses.
	// A session pointed at an empty desk does not need a frame a second.
	DefaultIdleInterval = 4 * time.Second

	// DefaultIdleThreshold is the number of consecutive miss results
	// (searching or error) before the loop drops to the idle interval.
	DefaultIdleThreshold = 5

	// DefaultFrameWaitDelay is the retry delay while the video source has
	// not produced a decoded frame yet. These retries are not counted as
	// polling cycles.
	DefaultFrameWaitDelay = 500 * time.Millisecond

	// DefaultCaptureRetryDelay is the quick retry after a failed frame
	// capture. Capture failures are local and cheap to retry.
	DefaultCaptureRetryDelay = 300 * time.Millisecond

	// DefaultUploadBackoff is the retry delay after a failed upload.
	// It is deliberately longer than every success-path interval so a
	// broken server is polled gently.
	DefaultUploadBackoff = 5 * time.Second

	// DefaultMinUploadGap is the minimum spacing between consecutive
	// uploads even if the loop is rescheduled faster. This guards
	// against retry storms when several short delays stack up.
	DefaultMinUploadGap = 650 * time.Millisecond

	// DefaultCooldownWindow suppresses repeated session actions for the
	// same identifier after a hit.
	DefaultCooldownWindow = 4 * time.Second

	// DefaultNotifyTTL is how long a notification stays fully visible
	// before it begins to fade.
	DefaultNotifyTTL = 2500 * time.Millisecond

	// DefaultNotifyDedupeWindow suppresses a notification whose dedupe
	// key matches the previous one within this window. Rapid polls of an
	// unchanged scene would otherwise flood the feed.
	DefaultNotifyDedupeWindow = 1200 * time.Millisecond

	// DefaultTimeout is the per-request HTTP timeout for frame uploads.
	DefaultTimeout = 30 * time.Second

	// DefaultDevicePath is the video device used for camera capture.
	DefaultDevicePath = "/dev/video0"

	// Default capture geometry. 1280x720 keeps upload payloads small
	// while leaving label text readable for the classifier.
	DefaultFrameWidth  = 1280
	DefaultFrameHeight = 720

	// DefaultFrameRate is the source frame rate requested from the
	// device. The polling loop samples far below this; the rate only
	// affects how fresh the latest frame is.
	DefaultFrameRate = 15

	// AppName is the application name used for XDG directory paths.
	AppName = "scanagent"
)

// Config holds all configuration options for a scan session.
// This struct is populated from CLI flags and the optional config file,
// then passed through the application via dependency injection rather
// than global state.
type Config struct {
	// ServerURL is the base URL of the classification server. The config
	// handshake and every endpoint derive from it. Required.
	ServerURL string

	// ModeKey selects a camera mode from the handshake registry.
	// Empty means the server's default mode.
	ModeKey string

	// RouteID is the route identifier for ROUTE scans. Ignored otherwise.
	RouteID string

	// DevicePath is the video device for camera capture.
	DevicePath string

	// UseScreen starts the session with screen capture instead of the
	// camera device.
	UseScreen bool

	// Embedded marks the session as running inside a parent context.
	// Hits then post structured messages instead of navigating.
	Embedded bool

	// SocksProxy is an optional SOCKS5 proxy in "host:port" form for all
	// HTTP traffic. Empty means a direct connection.
	SocksProxy string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Polling cadence. See the Default* constants for what each covers.
	SteadyInterval    time.Duration
	BusyInterval      time.Duration
	IdleInterval      time.Duration
	FrameWaitDelay    time.Duration
	CaptureRetryDelay time.Duration
	UploadBackoff     time.Duration
	MinUploadGap      time.Duration
	CooldownWindow    time.Duration

	// IdleThreshold is the consecutive-miss count before idling.
	IdleThreshold int

	// Notification display tuning.
	NotifyTTL          time.Duration
	NotifyDedupeWindow time.Duration

	// Capture geometry and rate.
	FrameWidth  int
	FrameHeight int
	FrameRate   int

	// Verbose enables debug-level log output.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .scanagent in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// ServerConfigs holds per-server overrides loaded from the config
	// file (CSRF token, cookie, extra headers).
	ServerConfigs *File

	// JournalDir is the directory for the SQLite scan journal.
	// Defaults to the XDG data directory.
	JournalDir string

	// SaveJournal records session results to the journal when true.
	SaveJournal bool
}

// NewConfig creates a new Config with default values.
// Users override specific values after creation via flags or file.
//
// Design decision: We use a constructor function instead of relying on
// zero values because nearly every default is non-zero, and the
// constructor doubles as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		DevicePath:         DefaultDevicePath,
		Timeout:            DefaultTimeout,
		SteadyInterval:     DefaultSteadyInterval,
		BusyInterval:       DefaultBusyInterval,
		IdleInterval:       DefaultIdleInterval,
		FrameWaitDelay:     DefaultFrameWaitDelay,
		CaptureRetryDelay:  DefaultCaptureRetryDelay,
		UploadBackoff:      DefaultUploadBackoff,
		MinUploadGap:       DefaultMinUploadGap,
		CooldownWindow:     DefaultCooldownWindow,
		IdleThreshold:      DefaultIdleThreshold,
		NotifyTTL:          DefaultNotifyTTL,
		NotifyDedupeWindow: DefaultNotifyDedupeWindow,
		FrameWidth:         DefaultFrameWidth,
		FrameHeight:        DefaultFrameHeight,
		FrameRate:          DefaultFrameRate,
	}
}

// XDGDataDir returns the XDG data directory for scanagent.
// On Linux: ~/.local/share/scanagent
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scanagent.
// On Linux: ~/.config/scanagent
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific sentinel error describing what is invalid.
// Called once after CLI parsing, before the session starts, so problems
// fail fast with a clear message instead of mid-loop.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServer
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidServerURL
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Every cadence value must be positive; a zero interval would spin
	// the loop hot.
	for _, d := range []time.Duration{
		c.SteadyInterval, c.BusyInterval, c.IdleInterval,
		c.FrameWaitDelay, c.CaptureRetryDelay, c.UploadBackoff,
	} {
		if d <= 0 {
			return ErrInvalidInterval
		}
	}

	// The failure backoff must dominate every success-path interval,
	// otherwise a broken server gets polled faster than a healthy one.
	if c.UploadBackoff < c.SteadyInterval || c.UploadBackoff < c.BusyInterval {
		return ErrBackoffTooShort
	}

	if c.MinUploadGap < 0 || c.CooldownWindow < 0 {
		return ErrInvalidInterval
	}

	if c.IdleThreshold < 1 {
		return ErrInvalidIdleThreshold
	}

	if c.NotifyTTL <= 0 || c.NotifyDedupeWindow < 0 {
		return ErrInvalidNotifyWindow
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 || c.FrameRate <= 0 {
		return ErrInvalidGeometry
	}

	return nil
}

// ServerOverrides returns the per-server overrides for the configured
// server, merged with file defaults. Returns a zero value when no config
// file was loaded.
func (c *Config) ServerOverrides() ServerConfig {
	if c.ServerConfigs == nil {
		return ServerConfig{}
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return c.ServerConfigs.Defaults
	}
	return c.ServerConfigs.GetServerConfig(u.Host)
}
