package types

// State represents the run controller lifecycle state.
//
// States follow a single forward progression:
//
//	StateStarting → StateReconciling → StateRunning → StateStopping → StateStopped
//
// Any state may move to StateStopping. StateStopped is terminal; there is no
// transition back to StateRunning within one process lifetime.
type State int

const (
	// StateStarting is the initial state: configuration loaded, adapters constructed.
	StateStarting State = iota

	// StateReconciling indicates the partition count is being reconciled and
	// workers are being started.
	StateReconciling

	// StateRunning indicates rounds are being produced and drained.
	StateRunning

	// StateStopping indicates the kill switch was observed and workers are
	// finishing their in-flight items.
	StateStopping

	// StateStopped indicates all tasks exited.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateReconciling:
		return "Reconciling"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
