package capture

import (
	"context"
	"log/slog"
	"sync"
)

// SourceFactory creates a fresh source. The Manager calls it on every
// switch because sources are single-use.
type SourceFactory func() Source

// Manager owns the active media source. It guarantees at most one
// source runs at a time: starting a new one always stops the previous
// one first. When a screen source ends on its own (the share was
// stopped from the desktop side) the manager falls back to the camera.
type Manager struct {
	grabber   *Grabber
	newCamera SourceFactory
	newScreen SourceFactory
	onSwitch  func(Kind)
	logger    *slog.Logger

	mu        sync.Mutex
	active    Source
	drainDone chan struct{}
	gen       int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOnSwitch registers a callback invoked after each successful
// source switch with the new source's kind.
func WithOnSwitch(fn func(Kind)) ManagerOption {
	return func(m *Manager) {
		m.onSwitch = fn
	}
}

// WithManagerLogger sets a custom logger. Defaults to slog.Default().
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager feeding the given grabber.
func NewManager(grabber *Grabber, camera, screen SourceFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		grabber:   grabber,
		newCamera: camera,
		newScreen: screen,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// StartCamera switches to the camera source.
func (m *Manager) StartCamera(ctx context.Context) error {
	return m.start(ctx, KindCamera)
}

// StartScreenShare switches to the screen source.
func (m *Manager) StartScreenShare(ctx context.Context) error {
	return m.start(ctx, KindScreen)
}

// Active returns the kind of the running source, or "" when none runs.
func (m *Manager) Active() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.Kind()
}

// Stop stops the active source, if any, and waits for its frame drain
// to finish. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	done := m.drainDone
	m.drainDone = nil
	m.stopLocked()
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (m *Manager) start(ctx context.Context, kind Kind) error {
	m.mu.Lock()
	done := m.drainDone
	m.drainDone = nil
	m.stopLocked()
	m.mu.Unlock()

	// Wait out the previous drain before the new source is installed.
	// The dying drain may still deliver a frame buffered in its channel
	// after the reset in stopLocked; the second reset below discards it
	// so a stale frame from a dead source is never uploaded.
	if done != nil {
		<-done
		m.grabber.Reset()
	}

	m.mu.Lock()
	var src Source
	switch kind {
	case KindScreen:
		src = m.newScreen()
	default:
		src = m.newCamera()
	}

	frames, err := src.Start(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	m.active = src
	m.gen++
	gen := m.gen
	done = make(chan struct{})
	m.drainDone = done
	m.mu.Unlock()

	m.logger.Info("media source switched", "kind", string(kind))
	if m.onSwitch != nil {
		m.onSwitch(kind)
	}

	go m.drain(ctx, gen, src, frames, done)
	return nil
}

// stopLocked stops the active source and invalidates any in-flight
// drain's fallback by bumping the generation. Caller holds m.mu.
func (m *Manager) stopLocked() {
	if m.active != nil {
		m.active.Stop()
		m.active = nil
	}
	m.gen++
	m.grabber.Reset()
}

// drain feeds source frames into the grabber until the channel closes.
// A close that was not caused by a deliberate stop means the media
// ended externally; for a screen source that triggers the camera
// fallback.
func (m *Manager) drain(ctx context.Context, gen int, src Source, frames <-chan Frame, done chan struct{}) {
	defer close(done)

	for frame := range frames {
		m.grabber.Store(frame)
	}

	m.mu.Lock()
	external := m.gen == gen && m.active == src
	if external {
		m.active = nil
		m.drainDone = nil
		m.grabber.Reset()
	}
	m.mu.Unlock()

	if !external || ctx.Err() != nil {
		return
	}

	m.logger.Info("media source ended externally", "kind", string(src.Kind()))
	if src.Kind() == KindScreen {
		if err := m.StartCamera(ctx); err != nil {
			m.logger.Error("camera fallback failed", "error", err)
		}
	}
}
