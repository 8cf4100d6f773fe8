package flight

import (
	"fmt"
	"strings"
	"time"
)

const (
	ModeAuto Mode = iota
	ModeManual
)

// Mode selects where velocities come from: the vision pipeline or the keys.
type Mode uint8

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeAuto, fmt.Errorf("unknown mode '%s'", s)
	}
}

// State is a read-only snapshot of the state machine.
type State struct {
	Flying bool `json:"flying"`
	Mode   Mode `json:"mode"`
}

func (s State) String() string {
	status := "landed"
	if s.Flying {
		status = "flying"
	}
	return fmt.Sprintf("%s/%s", status, s.Mode)
}

const (
	EventTakeOff    EventKind = "takeoff"
	EventLand       EventKind = "land"
	EventAutoLand   EventKind = "autoland"
	EventCeiling    EventKind = "ceiling"
	EventRejected   EventKind = "rejected"
	EventModeChange EventKind = "mode"
)

type EventKind string

// Event describes a transition or a refused command.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
	Battery int       `json:"battery"`
	Height  int       `json:"height"`
}
