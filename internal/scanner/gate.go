package scanner

import "sync/atomic"

// Gate is the cooperative pause flag checked at the top of every poll
// cycle. The intake workflow pauses it while a confirmation is open.
// Pause and Resume are idempotent; pausing is advisory, never
// preemptive: a cycle already past the check completes normally.
type Gate struct {
	paused atomic.Bool
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate.
func (g *Gate) Pause() {
	g.paused.Store(true)
}

// Resume opens the gate.
func (g *Gate) Resume() {
	g.paused.Store(false)
}

// Paused reports whether the gate is closed.
func (g *Gate) Paused() bool {
	return g.paused.Load()
}
