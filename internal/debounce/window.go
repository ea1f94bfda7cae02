// Package debounce turns a noisy per-frame closed-hand signal into sparse alert events.
package debounce

import (
	"errors"
	"time"
)

// Default debounce settings.
const (
	DefaultThreshold = 2
	DefaultWindow    = time.Second
)

// Config holds the debounce policy.
type Config struct {
	// Threshold is the number of closed samples required to raise an alert (>= 1).
	Threshold int
	// Window is the longest allowed gap between two closed samples.
	Window time.Duration
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Window:    DefaultWindow,
	}
}

// Validate reports whether the policy is usable.
func (c Config) Validate() error {
	if c.Threshold < 1 {
		return errors.New("debounce threshold must be at least 1")
	}
	if c.Window <= 0 {
		return errors.New("debounce window must be positive")
	}
	return nil
}

// Sample is one classification result for one processing tick.
type Sample struct {
	Timestamp time.Time
	Closed    bool // true if any tracked hand satisfied the closed-pose predicate
}

// AlertEvent is emitted while the accumulated count is at or above the threshold.
type AlertEvent struct {
	TriggeredAt time.Time
	Count       int
}

// Window accumulates closed samples inside a trailing time window.
//
// Every closed sample refreshes the window start, so the count survives any
// number of closures as long as no single gap exceeds the window duration.
// Window is not safe for concurrent use.
type Window struct {
	cfg   Config
	count int
	start time.Time
	epoch uint64
}

// NewWindow creates an empty window. Invalid settings fall back to the defaults.
func NewWindow(cfg Config) *Window {
	def := DefaultConfig()
	if cfg.Threshold < 1 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Window{cfg: cfg}
}

// Observe folds one sample into the window and returns an event when the
// count is at or above the threshold after the update.
func (w *Window) Observe(s Sample) *AlertEvent {
	now := s.Timestamp

	// Backwards clock jumps count as no elapsed time.
	elapsed := now.Sub(w.start)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > w.cfg.Window {
		w.clear(now)
	}

	if s.Closed {
		w.count++
		w.start = now
	}

	if w.count >= w.cfg.Threshold {
		return &AlertEvent{TriggeredAt: now, Count: w.count}
	}
	return nil
}

// Reset forces the window back to its initial state.
func (w *Window) Reset() {
	w.clear(time.Time{})
}

func (w *Window) clear(start time.Time) {
	if w.count > 0 {
		w.epoch++
	}
	w.count = 0
	w.start = start
}

// Count returns the number of closed samples since the last reset.
func (w *Window) Count() int {
	return w.count
}

// Start returns the timestamp of the current accumulation window.
func (w *Window) Start() time.Time {
	return w.start
}

// Epoch increases every time a non-zero count is cleared, by expiry or by Reset.
func (w *Window) Epoch() uint64 {
	return w.epoch
}

// Config returns the policy the window was created with.
func (w *Window) Config() Config {
	return w.cfg
}
