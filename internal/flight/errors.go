package flight

import (
	"errors"
	"fmt"
)

var (
	// ErrLowBattery is the reason a takeoff is refused below the battery gate
	ErrLowBattery = errors.New("battery too low")

	// ErrAlreadyFlying is the reason a takeoff is refused while airborne
	ErrAlreadyFlying = errors.New("already flying")

	// ErrNotFlying is the reason a landing is refused on the ground
	ErrNotFlying = errors.New("not flying")

	// ErrCeiling is the reason an ascend command is suppressed
	ErrCeiling = errors.New("altitude ceiling reached")
)

// RejectedError reports a command refused by a guard. The state machine is
// unchanged and nothing was sent to the drone.
type RejectedError struct {
	Command string
	Reason  error
}

func reject(command string, reason error) *RejectedError {
	return &RejectedError{Command: command, Reason: reason}
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("command rejected: %s: %s", e.Command, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}

// IsRejected reports whether err is a guard rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
