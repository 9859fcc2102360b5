package realtime

// ConnectionState is the externally observable state of the supervised
// websocket connection.
type ConnectionState int

const (
	// StateDisconnected means there is no live connection. It is both the
	// initial state and the terminal state of every connection attempt that
	// fails or every session that ends.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection attempt is in flight.
	StateConnecting

	// StateConnected means the connection is established and pumps run.
	StateConnected
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// validTransitions defines the allowed state transitions. A connected
// client never moves straight back to connecting; it always passes
// through disconnected first.
var validTransitions = map[ConnectionState][]ConnectionState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateDisconnected},
	StateConnected:    {StateDisconnected},
}

func transitionAllowed(from, to ConnectionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
