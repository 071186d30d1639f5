package sampler

// State is the scheduler's lifecycle state.
type State int32

const (
	// StateIdle is the state before ConnectAll.
	StateIdle State = iota
	// StateConnecting is set while gateway sessions are being opened.
	StateConnecting
	// StateRunning is set while the cycle loop runs.
	StateRunning
	// StateStopped is set after a clean shutdown.
	StateStopped
	// StateFailed is set after a connection or cycle failure.
	StateFailed
)

// String returns the state name used in logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
