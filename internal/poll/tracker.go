package poll

// State is the derived health of a device's connection.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateOffline
)

// offlineThreshold is deliberately asymmetric with recovery: declaring a
// device offline takes three consecutive failures, while a single success
// clears it instantly. Inverter unreachability is overwhelmingly benign
// night-mode shutdown, and the boundary conditions around dusk must not
// cause flapping.
const offlineThreshold = 3

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// nextFailures is the tracker's transition function: a success resets the
// trailing failure run, a failure extends it.
func nextFailures(current int, success bool) int {
	if success {
		return 0
	}

	return current + 1
}

func stateFor(failures int) State {
	switch {
	case failures == 0:
		return StateHealthy
	case failures < offlineThreshold:
		return StateDegraded
	default:
		return StateOffline
	}
}

// Tracker counts consecutive fetch failures for one device and derives its
// reported availability.
type Tracker struct {
	failures int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records one fetch outcome.
func (t *Tracker) Observe(success bool) {
	t.failures = nextFailures(t.failures, success)
}

func (t *Tracker) ConsecutiveFailures() int {
	return t.failures
}

func (t *Tracker) State() State {
	return stateFor(t.failures)
}

// Available is false only in the offline state.
func (t *Tracker) Available() bool {
	return t.State() != StateOffline
}
