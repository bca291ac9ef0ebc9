// Package notify maintains the short-lived notification feed shown to
// the operator during a scan session. Entries are pushed by the scan
// loop, deduplicated against the most recent push, and expire on their
// own timers: a fade signal when the TTL lapses and removal shortly
// after.
package notify

import (
	"sync"
	"time"
)

// Tone classifies an entry for rendering.
type Tone string

const (
	// ToneNeutral is an informational entry.
	ToneNeutral Tone = "neutral"

	// ToneError is a failure entry.
	ToneError Tone = "error"

	// ToneVerifying marks an in-progress verification entry.
	ToneVerifying Tone = "verifying"
)

// DefaultTTL is how long an entry stays fully visible before fading.
const DefaultTTL = 2500 * time.Millisecond

// DefaultDedupeWindow suppresses a push whose key matches the most
// recent push within this interval. The scan loop can classify the same
// label on consecutive cycles; the operator should see it once.
const DefaultDedupeWindow = 1200 * time.Millisecond

// fadeGrace is the delay between an entry's fade and its removal.
const fadeGrace = 300 * time.Millisecond

// Entry is one notification in the feed.
type Entry struct {
	// ID is unique within the feed's lifetime.
	ID int64

	// Lines is the rendered text, one line per element.
	Lines []string

	// Tone classifies the entry.
	Tone Tone

	// CreatedAt is when the entry was pushed.
	CreatedAt time.Time
}

// Sink receives feed lifecycle events. Implementations render entries;
// a line-oriented sink may ignore Fade and Remove.
type Sink interface {
	Publish(entry Entry)
	Fade(id int64)
	Remove(id int64)
}

// Feed deduplicates and schedules notification entries.
type Feed struct {
	sink         Sink
	ttl          time.Duration
	dedupeWindow time.Duration
	now          func() time.Time
	schedule     func(d time.Duration, fn func())

	mu       sync.Mutex
	nextID   int64
	lastKey  string
	lastPush time.Time
}

// Option configures a Feed.
type Option func(*Feed)

// WithTTL overrides the visible lifetime of entries.
func WithTTL(ttl time.Duration) Option {
	return func(f *Feed) {
		f.ttl = ttl
	}
}

// WithDedupeWindow overrides the duplicate-suppression interval.
func WithDedupeWindow(window time.Duration) Option {
	return func(f *Feed) {
		f.dedupeWindow = window
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		f.now = now
	}
}

// WithScheduler injects the timer mechanism. Used by tests; the default
// is time.AfterFunc.
func WithScheduler(schedule func(d time.Duration, fn func())) Option {
	return func(f *Feed) {
		f.schedule = schedule
	}
}

// NewFeed creates a Feed publishing to the given sink.
func NewFeed(sink Sink, opts ...Option) *Feed {
	f := &Feed{
		sink:         sink,
		ttl:          DefaultTTL,
		dedupeWindow: DefaultDedupeWindow,
		now:          time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push publishes a new entry unless it is empty or a duplicate of the
// most recent push.
//
// Duplicate suppression compares dedupeKey against the key of the most
// recent push only, within the dedupe window. An older key pushed again
// after an intervening different key is not suppressed; the operator's
// attention has moved on and the repeat is informative again.
func (f *Feed) Push(lines []string, tone Tone, dedupeKey string) {
	if len(lines) == 0 {
		return
	}

	f.mu.Lock()
	now := f.now()
	if dedupeKey != "" && dedupeKey == f.lastKey && now.Sub(f.lastPush) < f.dedupeWindow {
		f.mu.Unlock()
		return
	}
	f.lastKey = dedupeKey
	f.lastPush = now
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	f.sink.Publish(Entry{
		ID:        id,
		Lines:     lines,
		Tone:      tone,
		CreatedAt: now,
	})

	// Each entry carries its own timers. Entries pushed in quick
	// succession fade independently, not as a batch.
	f.schedule(f.ttl, func() {
		f.sink.Fade(id)
		f.schedule(fadeGrace, func() {
			f.sink.Remove(id)
		})
	})
}
