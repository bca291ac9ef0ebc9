package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tavall/scanagent/internal/client"
	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
)

// Timing is the controller's cadence table. Every delay in the poll
// cycle comes from here so tests can compress the whole schedule.
type Timing struct {
	// FrameWait is the retry delay while no decoded frame exists yet.
	FrameWait time.Duration

	// Steady is the base interval between cycles.
	Steady time.Duration

	// Busy is the longer interval used while the server reports an
	// in-progress sub-state.
	Busy time.Duration

	// Idle is the damped interval after several consecutive misses.
	Idle time.Duration

	// CaptureRetry is the quick retry after a capture failure.
	CaptureRetry time.Duration

	// Backoff is the long retry after an upload failure. Longer than
	// any success-path interval.
	Backoff time.Duration

	// MinGap is the minimum spacing between consecutive uploads.
	MinGap time.Duration

	// Cooldown is the action-suppression window armed on FOUND.
	Cooldown time.Duration

	// IdleThreshold is how many consecutive SEARCHING or ERROR results
	// switch the loop to the idle interval.
	IdleThreshold int
}

// DefaultTiming returns the production cadence table.
func DefaultTiming() Timing {
	return Timing{
		FrameWait:     500 * time.Millisecond,
		Steady:        1 * time.Second,
		Busy:          2500 * time.Millisecond,
		Idle:          4 * time.Second,
		CaptureRetry:  300 * time.Millisecond,
		Backoff:       5 * time.Second,
		MinGap:        650 * time.Millisecond,
		Cooldown:      4 * time.Second,
		IdleThreshold: 5,
	}
}

// Controller runs the scan session loop. Create with New, drive with
// Run, and tear down with Dispose. All mutable state is owned by the
// loop goroutine; the only cross-goroutine signal is the gate.
type Controller struct {
	session    *Session
	source     FrameSource
	uploader   Uploader
	feed       Pusher
	gate       *Gate
	workflow   Workflow
	duplicates DuplicateKeeper
	parent     ParentNotifier
	navigator  Navigator
	status     StatusSink
	recorder   Recorder
	logger     *slog.Logger
	timing     Timing
	embedded   bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	lastUpload  time.Time
	misses      int
	disposeOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithGate shares a pre-built gate, typically the one the intake
// workflow pauses. Defaults to a private gate.
func WithGate(gate *Gate) Option {
	return func(c *Controller) {
		c.gate = gate
	}
}

// WithWorkflow wires the intake confirmation workflow.
func WithWorkflow(w Workflow) Option {
	return func(c *Controller) {
		c.workflow = w
	}
}

// WithDuplicateKeeper wires the one-click duplicate action.
func WithDuplicateKeeper(d DuplicateKeeper) Option {
	return func(c *Controller) {
		c.duplicates = d
	}
}

// WithParentNotifier wires the embedding-context message channel.
func WithParentNotifier(p ParentNotifier) Option {
	return func(c *Controller) {
		c.parent = p
	}
}

// WithNavigator wires the top-level redirect target.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		c.navigator = n
	}
}

// WithStatusSink wires the display-state badge.
func WithStatusSink(s StatusSink) Option {
	return func(c *Controller) {
		c.status = s
	}
}

// WithRecorder wires the local scan journal.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithTiming overrides the cadence table.
func WithTiming(t Timing) Option {
	return func(c *Controller) {
		c.timing = t
	}
}

// WithEmbedded marks the session as running inside an embedding
// context, which routes FOUND actions to the ParentNotifier instead of
// the Navigator.
func WithEmbedded(embedded bool) Option {
	return func(c *Controller) {
		c.embedded = embedded
	}
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSleep injects the inter-cycle delay mechanism. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// New creates a Controller for the given session.
func New(session *Session, source FrameSource, uploader Uploader, feed Pusher, opts ...Option) *Controller {
	c := &Controller{
		session:  session,
		source:   source,
		uploader: uploader,
		feed:     feed,
		timing:   DefaultTiming(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = NewGate()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sleep == nil {
		c.sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return c
}

// Gate returns the controller's pause gate.
func (c *Controller) Gate() *Gate {
	return c.gate
}

// Session returns the controller's session.
func (c *Controller) Session() *Session {
	return c.session
}

// Run drives poll cycles until the context is canceled or a navigation
// action ends the session. Dispose runs on the way out either way.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Dispose()

	c.logger.Info("scan session started",
		"session", c.session.Token,
		"scan_type", string(c.session.ScanType),
		"mode", c.session.Mode,
	)

	for {
		delay, done := c.cycle(ctx)
		if done {
			return nil
		}
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Dispose sends the best-effort session close notice. Idempotent and
// bounded; teardown never blocks on the server.
func (c *Controller) Dispose() {
	c.disposeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := c.uploader.CloseSession(ctx, c.session.Token); err != nil {
			c.logger.Debug("session close notice failed", "error", err)
		}
		c.logger.Info("scan session ended", "session", c.session.Token)
	})
}

// cycle runs one iteration of the polling algorithm and returns the
// delay before the next one. done is true when a navigation action
// ended the session.
func (c *Controller) cycle(ctx context.Context) (delay time.Duration, done bool) {
	now := c.now()

	// Paused or cooling down: no upload, re-check at the base interval.
	if c.gate.Paused() || c.session.InCooldown(now) {
		return c.timing.Steady, false
	}

	// Minimum spacing between uploads, even when a short delay fired
	// early.
	if gap := now.Sub(c.lastUpload); !c.lastUpload.IsZero() && gap < c.timing.MinGap {
		return c.timing.MinGap - gap, false
	}

	frame, err := c.source.CaptureFrame()
	if err != nil {
		c.feed.Push([]string{"Frame capture failed"}, notify.ToneError, "capture-failed")
		c.logger.Warn("frame capture failed", "error", err)
		return c.timing.CaptureRetry, false
	}
	if frame == nil {
		// Source still warming up. Not counted as a cycle.
		return c.timing.FrameWait, false
	}

	c.lastUpload = now
	result, err := c.uploader.UploadFrame(ctx, frame, client.UploadMeta{
		ScanMode:  c.session.Mode,
		RouteID:   c.session.RouteID,
		SessionID: c.session.Token,
	})
	if err != nil {
		c.setState(model.StateError, model.ResponseError)
		c.misses++
		c.feed.Push([]string{"Scan upload failed"}, notify.ToneError, "upload-failed")
		c.logger.Warn("frame upload failed", "error", err)
		return c.timing.Backoff, false
	}

	c.setState(result.CameraState, result.ResponseState)

	switch {
	case result.CameraState.Terminalish():
		c.misses = 0
	case result.CameraState == model.StateSearching || result.CameraState == model.StateError:
		c.misses++
	}

	done = c.applyActions(now, result)
	c.applyGating(result)
	c.publish(result)

	if c.recorder != nil {
		if err := c.recorder.RecordResult(ctx, c.session.Token, result); err != nil {
			c.logger.Warn("failed to record result", "error", err)
		}
	}
	if done {
		return 0, true
	}
	return c.nextDelay(result), false
}

func (c *Controller) setState(state model.CameraState, sub model.ResponseState) {
	c.session.lastState = state
	c.session.lastSub = sub
	if c.status != nil {
		c.status.SetState(state, sub)
	}
}

// applyActions fires the session actions for a FOUND result. Returns
// true when a top-level navigation ended the session.
func (c *Controller) applyActions(now time.Time, result *model.ScanResult) bool {
	if result.CameraState != model.StateFound {
		return false
	}

	switch {
	case c.session.ScanType == model.ScanQR && result.UUID != "":
		c.session.armCooldown(now, c.timing.Cooldown)
		if c.embedded && c.parent != nil {
			c.parent.DriverScanFound(result.UUID)
			return false
		}
		if c.navigator != nil {
			c.navigator.Navigate(result.UUID)
			return true
		}
		return false

	case c.session.ScanType == model.ScanRoute:
		c.session.armCooldown(now, c.timing.Cooldown)
		if c.embedded && c.parent != nil {
			c.parent.RouteScanResult(c.session.RouteID, result)
		}
		return false

	default:
		c.session.armCooldown(now, c.timing.Cooldown)
		return false
	}
}

// applyGating routes INTAKE results into the duplicate action or the
// confirmation workflow. At most one workflow is open at a time; the
// workflow itself enforces that.
func (c *Controller) applyGating(result *model.ScanResult) {
	if c.session.ScanType != model.ScanIntake {
		return
	}

	if result.ExactDuplicate() && c.duplicates != nil {
		c.duplicates.Remember(result)
		return
	}

	if result.NeedsConfirmation() && c.workflow != nil {
		if err := c.workflow.Open(result); err != nil {
			c.logger.Debug("confirmation not opened", "error", err)
		}
	}
}

// publish emits a notification for notable results. Searching results
// never notify; the feed handles duplicate suppression by key.
func (c *Controller) publish(result *model.ScanResult) {
	if !result.Notable() {
		return
	}

	tone := resultTone(result)
	lines := []string{result.Summary()}
	if result.Notes != "" {
		lines = append(lines, result.Notes)
	}
	c.feed.Push(lines, tone, result.DedupeKey(string(tone)))
}

func (c *Controller) nextDelay(result *model.ScanResult) time.Duration {
	// An ERROR result means the server accepted the frame but analysis
	// failed; retry on the long backoff, same as a failed upload.
	if result.CameraState == model.StateError {
		return c.timing.Backoff
	}
	if result.Busy() {
		return c.timing.Busy
	}
	if c.misses >= c.timing.IdleThreshold {
		return c.timing.Idle
	}
	return c.timing.Steady
}

func resultTone(result *model.ScanResult) notify.Tone {
	switch {
	case result.CameraState == model.StateError:
		return notify.ToneError
	case result.IntakeStatus == model.IntakeAddressVerifying,
		result.IntakeStatus == model.IntakeProcessing:
		return notify.ToneVerifying
	default:
		return notify.ToneNeutral
	}
}
