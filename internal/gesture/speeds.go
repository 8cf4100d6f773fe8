package gesture

import (
	"fmt"

	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/target"
)

// Speeds are the constant stick values a gesture commands.
type Speeds struct {
	Vertical int `yaml:"vertical" json:"vertical"`
	Lateral  int `yaml:"lateral" json:"lateral"`
	Forward  int `yaml:"forward" json:"forward"`
	Yaw      int `yaml:"yaw" json:"yaw"`
}

func DefaultSpeeds() Speeds {
	return Speeds{Vertical: 30, Lateral: 50, Forward: 50, Yaw: 60}
}

func (s Speeds) Validate() error {
	for name, v := range map[string]int{"vertical": s.Vertical, "lateral": s.Lateral, "forward": s.Forward, "yaw": s.Yaw} {
		if v < 0 || v > 100 {
			return fmt.Errorf("gesture.Speeds: %s must be in range [0, 100], %d given", name, v)
		}
	}
	return nil
}

// Velocity maps a gesture to its fixed velocity. Gestures that do not move
// the drone, including Other, produce hover.
func (s Speeds) Velocity(g target.Gesture) rc.Velocity {
	switch g {
	case target.GestureUp:
		return rc.Velocity{UD: s.Vertical}
	case target.GestureDown:
		return rc.Velocity{UD: -s.Vertical}
	case target.GestureRight:
		return rc.Velocity{LR: s.Lateral}
	case target.GestureLeft:
		return rc.Velocity{LR: -s.Lateral}
	case target.GestureFront:
		return rc.Velocity{FB: s.Forward}
	case target.GestureBack:
		return rc.Velocity{FB: -s.Forward}
	case target.GestureYawCW:
		return rc.Velocity{Yaw: s.Yaw}
	case target.GestureYawCCW:
		return rc.Velocity{Yaw: -s.Yaw}
	default:
		return rc.Hover
	}
}

// Command returns the velocity of a gesture observation, hover for anything
// else.
func (s Speeds) Command(obs target.Observation) rc.Velocity {
	if obs.Kind != target.KindGesture {
		return rc.Hover
	}
	return s.Velocity(obs.Gesture)
}
