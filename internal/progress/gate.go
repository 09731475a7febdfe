package progress

// GateState is the bootstrap gate's position for one subscription
type GateState int

const (
	// AwaitingFirst means no notification has been seen since subscribing
	AwaitingFirst GateState = iota
	// Steady means a baseline marker has been recorded
	Steady
)

func (s GateState) String() string {
	if s == Steady {
		return "steady"
	}
	return "awaiting_first"
}

// Decision is how a notification should be folded into local state
type Decision int

const (
	// Bootstrap replaces local state and reports progress_loaded
	Bootstrap Decision = iota
	// Merge unions token sets and takes scalars from the notification. The
	// local marker is kept when the notification is behind it.
	Merge
	// Advance replaces local state and reports progression_advanced
	Advance
)

// Gate tracks the progression marker baseline of a subscription. It is not
// safe for concurrent use; the store's owner goroutine drives it.
type Gate struct {
	state    GateState
	baseline int
}

// NewGate returns a gate awaiting its first notification
func NewGate() *Gate {
	return &Gate{}
}

// Observe records a notification's marker and decides how to apply it.
// Markers only move forward: a notification at or behind the baseline was
// written before the latest completion and never navigates.
func (g *Gate) Observe(marker int) Decision {
	if g.state == AwaitingFirst {
		g.state = Steady
		g.baseline = marker
		return Bootstrap
	}
	if marker <= g.baseline {
		return Merge
	}
	g.baseline = marker
	return Advance
}

// Advance moves the baseline after a local level completion so the remote
// confirmation merges instead of navigating a second time
func (g *Gate) Advance(marker int) {
	g.baseline = max(g.baseline, marker)
}

// Reset returns the gate to AwaitingFirst
func (g *Gate) Reset() {
	g.state = AwaitingFirst
	g.baseline = 0
}

// State returns the current state
func (g *Gate) State() GateState {
	return g.state
}

// Baseline returns the last recorded marker
func (g *Gate) Baseline() int {
	return g.baseline
}
