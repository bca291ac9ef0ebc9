package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tavall/scanagent/internal/client"
	"github.com/tavall/scanagent/internal/intake"
	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
)

type uploadStep struct {
	result *model.ScanResult
	err    error
}

type fakeUploader struct {
	mu          sync.Mutex
	queue       []uploadStep
	calls       int
	metas       []client.UploadMeta
	inFlight    int
	maxInFlight int
	delay       time.Duration
	closes      int
}

func (u *fakeUploader) UploadFrame(_ context.Context, _ []byte, meta client.UploadMeta) (*model.ScanResult, error) {
	u.mu.Lock()
	u.inFlight++
	if u.inFlight > u.maxInFlight {
		u.maxInFlight = u.inFlight
	}
	idx := u.calls
	u.calls++
	u.metas = append(u.metas, meta)
	delay := u.delay
	u.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	u.mu.Lock()
	u.inFlight--
	var step uploadStep
	if idx < len(u.queue) {
		step = u.queue[idx]
	} else {
		step = uploadStep{result: &model.ScanResult{CameraState: model.StateSearching}}
	}
	u.mu.Unlock()
	return step.result, step.err
}

func (u *fakeUploader) CloseSession(context.Context, string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closes++
	return nil
}

func (u *fakeUploader) stats() (calls, maxInFlight, closes int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.maxInFlight, u.closes
}

type fakeSource struct {
	frame []byte
	err   error
}

func (s *fakeSource) CaptureFrame() ([]byte, error) {
	return s.frame, s.err
}

type push struct {
	lines []string
	tone  notify.Tone
	key   string
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) Push(lines []string, tone notify.Tone, dedupeKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{lines, tone, dedupeKey})
}

func (p *fakePusher) all() []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]push(nil), p.pushes...)
}

type fakeStatus struct {
	mu     sync.Mutex
	states []model.CameraState
}

func (s *fakeStatus) SetState(state model.CameraState, _ model.ResponseState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *fakeStatus) last() model.CameraState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return ""
	}
	return s.states[len(s.states)-1]
}

type fakeParent struct {
	mu      sync.Mutex
	drivers []string
	routes  []string
}

func (p *fakeParent) DriverScanFound(uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drivers = append(p.drivers, uuid)
}

func (p *fakeParent) RouteScanResult(routeID string, _ *model.ScanResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, routeID)
}

type fakeNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *fakeNavigator) Navigate(uuid string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, uuid)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// step runs one cycle and advances the clock past the returned delay so
// the next cycle clears the minimum-gap check.
func step(t *testing.T, c *Controller, clock *manualClock) time.Duration {
	t.Helper()
	delay, done := c.cycle(context.Background())
	if done {
		t.Fatal("unexpected session end")
	}
	clock.Advance(delay)
	if delay < c.timing.MinGap {
		clock.Advance(c.timing.MinGap - delay)
	}
	return delay
}

func newTestController(scanType model.ScanType, uploader *fakeUploader, opts ...Option) (*Controller, *fakePusher, *manualClock) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	pusher := &fakePusher{}
	session := NewSession(scanType, "standardIntake", "standard-intake", "")
	base := []Option{WithClock(clock.Now)}
	c := New(session, &fakeSource{frame: []byte("frame")}, uploader, pusher, append(base, opts...)...)
	return c, pusher, clock
}

func TestCycleFrameNotReady(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	c, pusher, _ := newTestController(model.ScanIntake, uploader)
	c.source = &fakeSource{frame: nil}

	delay, done := c.cycle(context.Background())
	if done {
		t.Fatal("unexpected end")
	}
	if delay != c.timing.FrameWait {
		t.Errorf("delay = %v, want frame wait %v", delay, c.timing.FrameWait)
	}
	if calls, _, _ := uploader.stats(); calls != 0 {
		t.Error("no upload should happen without a frame")
	}
	if len(pusher.all()) != 0 {
		t.Error("waiting for a frame must not notify")
	}
}

func TestCycleCaptureFailure(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	c, pusher, _ := newTestController(model.ScanIntake, uploader)
	c.source = &fakeSource{err: ErrNoActiveSource}

	delay, _ := c.cycle(context.Background())
	if delay != c.timing.CaptureRetry {
		t.Errorf("delay = %v, want capture retry %v", delay, c.timing.CaptureRetry)
	}
	pushes := pusher.all()
	if len(pushes) != 1 || pushes[0].tone != notify.ToneError {
		t.Errorf("expected one error notification, got %v", pushes)
	}
	if calls, _, _ := uploader.stats(); calls != 0 {
		t.Error("capture failure must not upload")
	}
}

func TestCyclePausedOrCoolingSkipsUpload(t *testing.T) {
	t.Parallel()

	t.Run("paused gate", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{}
		c, _, _ := newTestController(model.ScanIntake, uploader)
		c.gate.Pause()

		delay, _ := c.cycle(context.Background())
		if delay != c.timing.Steady {
			t.Errorf("delay = %v, want base interval %v", delay, c.timing.Steady)
		}
		if calls, _, _ := uploader.stats(); calls != 0 {
			t.Error("paused loop must not upload")
		}
	})

	t.Run("active cooldown", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{}
		c, _, clock := newTestController(model.ScanIntake, uploader)
		c.session.armCooldown(clock.Now(), c.timing.Cooldown)

		delay, _ := c.cycle(context.Background())
		if delay != c.timing.Steady {
			t.Errorf("delay = %v, want base interval %v", delay, c.timing.Steady)
		}
		if calls, _, _ := uploader.stats(); calls != 0 {
			t.Error("cooldown must suppress uploads")
		}

		// The window lapses and uploads flow again.
		clock.Advance(c.timing.Cooldown + time.Millisecond)
		_, _ = c.cycle(context.Background())
		if calls, _, _ := uploader.stats(); calls != 1 {
			t.Error("upload should resume after the cooldown window")
		}
	})
}

func TestCycleMinimumGap(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	c, _, clock := newTestController(model.ScanIntake, uploader)

	if _, done := c.cycle(context.Background()); done {
		t.Fatal("unexpected end")
	}
	// Fire again well before the minimum gap.
	clock.Advance(100 * time.Millisecond)
	delay, _ := c.cycle(context.Background())

	if calls, _, _ := uploader.stats(); calls != 1 {
		t.Fatalf("second cycle inside the gap must not upload, calls = %d", calls)
	}
	if want := c.timing.MinGap - 100*time.Millisecond; delay != want {
		t.Errorf("delay = %v, want remaining gap %v", delay, want)
	}
}

func TestSearchingNeverNotifies(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{queue: []uploadStep{
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
	}}
	status := &fakeStatus{}
	c, pusher, clock := newTestController(model.ScanIntake, uploader, WithStatusSink(status))

	step(t, c, clock)
	step(t, c, clock)

	if len(pusher.all()) != 0 {
		t.Errorf("searching results must not notify: %v", pusher.all())
	}
	if status.last() != model.StateSearching {
		t.Errorf("badge = %v, want SEARCHING", status.last())
	}
}

func TestUploadFailureBacksOff(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{queue: []uploadStep{
		{err: &client.UploadError{StatusCode: 502}},
		{err: &client.UploadError{StatusCode: 502}},
	}}
	status := &fakeStatus{}
	c, pusher, clock := newTestController(model.ScanIntake, uploader, WithStatusSink(status))

	first := step(t, c, clock)
	second := step(t, c, clock)

	if first != c.timing.Backoff || second != c.timing.Backoff {
		t.Errorf("delays = %v, %v; want backoff %v for both retries", first, second, c.timing.Backoff)
	}
	if status.last() != model.StateError {
		t.Errorf("badge = %v, want ERROR", status.last())
	}

	pushes := pusher.all()
	if len(pushes) != 2 {
		t.Fatalf("got %d pushes, want 2 (feed dedupes by key)", len(pushes))
	}
	if pushes[0].key != pushes[1].key {
		t.Error("repeated failures must share a dedupe key")
	}
	if pushes[0].tone != notify.ToneError {
		t.Errorf("tone = %v, want error", pushes[0].tone)
	}
}

func TestErrorResultBacksOff(t *testing.T) {
	t.Parallel()

	// The server accepted both frames but reported analysis failure.
	uploader := &fakeUploader{queue: []uploadStep{
		{result: &model.ScanResult{CameraState: model.StateError, Notes: "analysis failed"}},
		{result: &model.ScanResult{CameraState: model.StateError, Notes: "analysis failed"}},
	}}
	status := &fakeStatus{}
	c, pusher, clock := newTestController(model.ScanIntake, uploader, WithStatusSink(status))

	first := step(t, c, clock)
	second := step(t, c, clock)

	if first != c.timing.Backoff || second != c.timing.Backoff {
		t.Errorf("delays = %v, %v; want backoff %v for both retries", first, second, c.timing.Backoff)
	}
	if status.last() != model.StateError {
		t.Errorf("badge = %v, want ERROR", status.last())
	}

	pushes := pusher.all()
	if len(pushes) != 2 {
		t.Fatalf("got %d pushes, want 2 (feed dedupes by key)", len(pushes))
	}
	if pushes[0].key != pushes[1].key {
		t.Error("repeated error results must share a dedupe key")
	}
	if pushes[0].tone != notify.ToneError {
		t.Errorf("tone = %v, want error", pushes[0].tone)
	}
}

func TestBusyIntervalWhileResponding(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{queue: []uploadStep{
		{result: &model.ScanResult{
			CameraState:   model.StateAnalyzing,
			ResponseState: model.ResponseResponding,
		}},
	}}
	c, _, clock := newTestController(model.ScanIntake, uploader)

	if delay := step(t, c, clock); delay != c.timing.Busy {
		t.Errorf("delay = %v, want busy interval %v", delay, c.timing.Busy)
	}
}

func TestIdleDamping(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{} // unlimited SEARCHING results
	c, _, clock := newTestController(model.ScanIntake, uploader)

	var last time.Duration
	for i := 0; i < c.timing.IdleThreshold; i++ {
		last = step(t, c, clock)
	}
	if last != c.timing.Idle {
		t.Errorf("delay after %d misses = %v, want idle %v", c.timing.IdleThreshold, last, c.timing.Idle)
	}

	// A hit resets the damping.
	uploader.mu.Lock()
	uploader.queue = make([]uploadStep, uploader.calls+1)
	uploader.queue[uploader.calls] = uploadStep{result: &model.ScanResult{
		CameraState: model.StateScanned,
		Name:        "Ada",
		Address:     "12 Analytical Way",
	}}
	uploader.mu.Unlock()

	if delay := step(t, c, clock); delay != c.timing.Steady {
		t.Errorf("delay after a hit = %v, want steady %v", delay, c.timing.Steady)
	}
}

func TestIdleDampingSurvivesAnalyzing(t *testing.T) {
	t.Parallel()

	// An ANALYZING result is neither a hit nor a miss: it must not
	// reset the damping counter the way FOUND or SCANNED do.
	queue := []uploadStep{
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateAnalyzing}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
	}
	uploader := &fakeUploader{queue: queue}
	c, _, clock := newTestController(model.ScanIntake, uploader)

	var last time.Duration
	for range queue {
		last = step(t, c, clock)
	}
	if last != c.timing.Idle {
		t.Errorf("delay after five misses across an analyzing frame = %v, want idle %v", last, c.timing.Idle)
	}
}

func TestIntakeScenario(t *testing.T) {
	t.Parallel()

	// Two searching frames, then a FOUND with a pending intake.
	found := &model.ScanResult{
		CameraState:   model.StateFound,
		UUID:          "abc",
		Name:          "Ada Lovelace",
		Address:       "12 Analytical Way",
		City:          "London",
		PendingIntake: true,
	}
	uploader := &fakeUploader{queue: []uploadStep{
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: &model.ScanResult{CameraState: model.StateSearching}},
		{result: found},
	}}

	type confirmed struct {
		uuid string
	}
	var confirms []confirmed
	confirmer := confirmFunc(func(_ context.Context, payload *model.ScanResult) error {
		confirms = append(confirms, confirmed{payload.UUID})
		return nil
	})

	gate := NewGate()
	pusher := &fakePusher{}
	workflow := intake.NewWorkflow(confirmer, gate, pusher)

	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	session := NewSession(model.ScanIntake, "standardIntake", "standard-intake", "")
	c := New(session, &fakeSource{frame: []byte("frame")}, uploader, pusher,
		WithClock(clock.Now),
		WithGate(gate),
		WithWorkflow(workflow),
	)

	step(t, c, clock)
	step(t, c, clock)
	if len(pusher.all()) != 0 {
		t.Fatalf("no notification expected while searching: %v", pusher.all())
	}

	delay, done := c.cycle(context.Background())
	if done {
		t.Fatal("unexpected end")
	}
	_ = delay

	if workflow.State() != intake.StateOpen {
		t.Fatalf("workflow state = %v, want open", workflow.State())
	}
	if !gate.Paused() {
		t.Fatal("polling must pause while the workflow is open")
	}
	if workflow.Summary() == "" {
		t.Error("workflow should render a payload summary")
	}

	// A paused cycle uploads nothing.
	before, _, _ := uploader.stats()
	clock.Advance(c.timing.Steady)
	if _, done := c.cycle(context.Background()); done {
		t.Fatal("unexpected end")
	}
	if after, _, _ := uploader.stats(); after != before {
		t.Error("paused cycle must not upload")
	}

	// Operator confirms: uuid=abc is submitted, a notification appears,
	// polling resumes.
	if err := workflow.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if len(confirms) != 1 || confirms[0].uuid != "abc" {
		t.Errorf("confirms = %v, want one with uuid abc", confirms)
	}
	if gate.Paused() {
		t.Error("polling must resume after confirmation")
	}

	tones := pusher.all()
	foundNeutral := false
	for _, p := range tones {
		if p.tone == notify.ToneNeutral && p.lines[0] == "Intake confirmed" {
			foundNeutral = true
		}
	}
	if !foundNeutral {
		t.Errorf("expected an intake-confirmed notification, got %v", tones)
	}
}

// confirmFunc adapts a function to the intake.Confirmer interface.
type confirmFunc func(ctx context.Context, payload *model.ScanResult) error

func (f confirmFunc) ConfirmIntake(ctx context.Context, payload *model.ScanResult) error {
	return f(ctx, payload)
}

func TestQRScanActions(t *testing.T) {
	t.Parallel()

	found := &model.ScanResult{CameraState: model.StateFound, UUID: "drv-1"}

	t.Run("embedded posts driverScanFound instead of navigating", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{queue: []uploadStep{{result: found}}}
		parent := &fakeParent{}
		nav := &fakeNavigator{}

		clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
		session := NewSession(model.ScanQR, "driverState", "driver-state", "")
		c := New(session, &fakeSource{frame: []byte("frame")}, uploader, &fakePusher{},
			WithClock(clock.Now),
			WithEmbedded(true),
			WithParentNotifier(parent),
			WithNavigator(nav),
		)

		_, done := c.cycle(context.Background())
		if done {
			t.Fatal("embedded message must not end the session")
		}
		if len(parent.drivers) != 1 || parent.drivers[0] != "drv-1" {
			t.Errorf("driverScanFound = %v", parent.drivers)
		}
		if len(nav.targets) != 0 {
			t.Errorf("embedded session must not navigate: %v", nav.targets)
		}
		if !c.session.InCooldown(clock.Now()) {
			t.Error("cooldown should be armed after a QR hit")
		}
	})

	t.Run("top level navigates and ends the session", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{queue: []uploadStep{{result: found}}}
		nav := &fakeNavigator{}

		clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
		session := NewSession(model.ScanQR, "driverState", "driver-state", "")
		c := New(session, &fakeSource{frame: []byte("frame")}, uploader, &fakePusher{},
			WithClock(clock.Now),
			WithNavigator(nav),
		)

		_, done := c.cycle(context.Background())
		if !done {
			t.Fatal("top-level navigation must end the session")
		}
		if len(nav.targets) != 1 || nav.targets[0] != "drv-1" {
			t.Errorf("navigation targets = %v", nav.targets)
		}
	})
}

func TestRouteScanAction(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{queue: []uploadStep{
		{result: &model.ScanResult{CameraState: model.StateFound, UUID: "stop-9"}},
	}}
	parent := &fakeParent{}

	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	session := NewSession(model.ScanRoute, "routeScanner", "route-scanner", "route-7")
	c := New(session, &fakeSource{frame: []byte("frame")}, uploader, &fakePusher{},
		WithClock(clock.Now),
		WithEmbedded(true),
		WithParentNotifier(parent),
	)

	_, done := c.cycle(context.Background())
	if done {
		t.Fatal("route result must not end the session")
	}
	if len(parent.routes) != 1 || parent.routes[0] != "route-7" {
		t.Errorf("routeScanResult = %v", parent.routes)
	}
	if !c.session.InCooldown(clock.Now()) {
		t.Error("cooldown should be armed after a route hit")
	}
}

func TestExactDuplicateRemembered(t *testing.T) {
	t.Parallel()

	duplicate := &model.ScanResult{
		CameraState:  model.StateScanned,
		Address:      "12 Analytical Way",
		City:         "London",
		IntakeStatus: model.IntakeAlreadyScanned,
	}
	uploader := &fakeUploader{queue: []uploadStep{{result: duplicate}}}

	var remembered []*model.ScanResult
	keeper := rememberFunc(func(payload *model.ScanResult) {
		remembered = append(remembered, payload)
	})

	c, _, _ := newTestController(model.ScanIntake, uploader, WithDuplicateKeeper(keeper))

	_, _ = c.cycle(context.Background())
	if len(remembered) != 1 {
		t.Fatalf("duplicate not remembered: %v", remembered)
	}
}

type rememberFunc func(payload *model.ScanResult)

func (f rememberFunc) Remember(payload *model.ScanResult) { f(payload) }

func TestRunSingleFlight(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{delay: 2 * time.Millisecond}
	session := NewSession(model.ScanIntake, "standardIntake", "standard-intake", "")
	c := New(session, &fakeSource{frame: []byte("frame")}, uploader, &fakePusher{},
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	// Let a handful of cycles run, then stop. The injected sleep makes
	// cycles back to back; the minimum-gap check throttles uploads but
	// several still fire.
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	_, maxInFlight, closes := uploader.stats()
	if maxInFlight > 1 {
		t.Errorf("max uploads in flight = %d, want at most 1", maxInFlight)
	}
	if closes != 1 {
		t.Errorf("session closes = %d, want exactly 1", closes)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	c, _, _ := newTestController(model.ScanIntake, uploader)

	c.Dispose()
	c.Dispose()

	if _, _, closes := uploader.stats(); closes != 1 {
		t.Errorf("session closes = %d, want 1", closes)
	}
}
