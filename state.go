package netoff

// ConnState is the coarse lifecycle stage shared by Worker and Driver:
// NONE (no peer connected), INITED (connected, registering/initializing
// simulations), STARTED (run phase, INPUTS/OUTPUTS exchanged per sim).
type ConnState int

const (
	StateNone ConnState = iota
	StateInited
	StateStarted
)

func (s ConnState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateInited:
		return "INITED"
	case StateStarted:
		return "STARTED"
	default:
		return "UNKNOWN"
	}
}
