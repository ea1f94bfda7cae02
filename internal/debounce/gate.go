package debounce

// State is the dispatch gate state.
type State int

const (
	// Armed waits for the next threshold crossing.
	Armed State = iota
	// Fired has already dispatched for the current episode.
	Fired
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return "unknown"
	}
}

// Gate allows one dispatch per episode. It re-arms once the window count
// returns to zero, which it detects through the window epoch.
type Gate struct {
	state State
	epoch uint64
}

// NewGate returns an armed gate.
func NewGate() *Gate {
	return &Gate{state: Armed}
}

// Admit reports whether ev should be dispatched. epoch is the window epoch
// after the sample that produced ev was observed.
func (g *Gate) Admit(ev *AlertEvent, epoch uint64) bool {
	if epoch != g.epoch {
		g.epoch = epoch
		g.state = Armed
	}
	if ev == nil || g.state == Fired {
		return false
	}
	g.state = Fired
	return true
}

// State returns the current gate state.
func (g *Gate) State() State {
	return g.state
}

// Reset re-arms the gate.
func (g *Gate) Reset(epoch uint64) {
	g.state = Armed
	g.epoch = epoch
}
