// Package timer measures elapsed time for the simulation loop.
package timer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer measures time elapsed since the last Start.
// A Timer that was never started reports zero.
type Timer struct {
	clock clock.Clock

	mu      sync.Mutex
	started bool
	start   time.Time
}

// New creates a stopped timer reading from c. A nil clock uses wall time.
func New(c clock.Clock) *Timer {
	if c == nil {
		c = clock.New()
	}
	return &Timer{clock: c}
}

// Start (re)starts the timer from now.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	t.start = t.clock.Now()
}

// Reset stops the timer. Elapsed reports zero until the next Start.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.start = time.Time{}
}

// Started reports whether Start has been called since the last Reset.
func (t *Timer) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Elapsed returns the time since Start.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	return t.clock.Since(t.start)
}

// Ticks returns the milliseconds elapsed since Start.
func (t *Timer) Ticks() float64 {
	return float64(t.Elapsed()) / float64(time.Millisecond)
}
