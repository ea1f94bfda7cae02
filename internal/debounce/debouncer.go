package debounce

import "time"

// Snapshot is a read-only view of the debouncer for display.
type Snapshot struct {
	Count       int           `json:"count"`
	Fired       bool          `json:"fired"`
	Threshold   int           `json:"threshold"`
	Window      time.Duration `json:"window"`
	WindowStart time.Time     `json:"window_start"`
	Episodes    int           `json:"episodes"`
}

// Debouncer combines the accumulation window with the re-arm gate.
// It must be owned by a single goroutine.
type Debouncer struct {
	window   *Window
	gate     *Gate
	episodes int
}

// New creates a debouncer in its initial state.
func New(cfg Config) *Debouncer {
	return &Debouncer{
		window: NewWindow(cfg),
		gate:   NewGate(),
	}
}

// Observe folds one sample in and returns an event only when the count
// crosses the threshold while the gate is armed.
func (d *Debouncer) Observe(s Sample) *AlertEvent {
	ev := d.window.Observe(s)
	if !d.gate.Admit(ev, d.window.Epoch()) {
		return nil
	}
	d.episodes++
	return ev
}

// Reset clears the window and re-arms the gate.
func (d *Debouncer) Reset() {
	d.window.Reset()
	d.gate.Reset(d.window.Epoch())
}

// State returns the dispatch gate state.
func (d *Debouncer) State() State {
	return d.gate.State()
}

// Snapshot returns the current display state.
func (d *Debouncer) Snapshot() Snapshot {
	cfg := d.window.Config()
	return Snapshot{
		Count:       d.window.Count(),
		Fired:       d.gate.State() == Fired,
		Threshold:   cfg.Threshold,
		Window:      cfg.Window,
		WindowStart: d.window.Start(),
		Episodes:    d.episodes,
	}
}
