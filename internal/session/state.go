package session

import "fmt"

// State is the lifecycle state of a [Session].
type State int32

const (
	// Inactive means no capture and no worker loops.
	Inactive State = iota
	// Active means capture and both worker loops were started.
	Active
	// Changing is entered by SetMode and left by the next activation.
	Changing
	// Restarting is entered by Reactivate and left by the next activation.
	Restarting
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Changing:
		return "changing"
	case Restarting:
		return "restarting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
