package tally

// State is the lifecycle state of a Client.
type State int

// Lifecycle states.
const (
	// StateIdle is the state before Run.
	StateIdle State = iota
	// StateInitializing restores the persisted list.
	StateInitializing
	// StateReconciling waits for the backend snapshot.
	StateReconciling
	// StateLive applies push events and external slot changes.
	StateLive
	// StateClosed is terminal.
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateInitializing: "initializing",
	StateReconciling:  "reconciling",
	StateLive:         "live",
	StateClosed:       "closed",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
