package control

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/roman-kulish/visual-servo/internal/rc"
)

// KeyNone is returned by a console poll with no key pressed.
const KeyNone Key = -1

const keyEsc Key = 27

// Key is a key code as reported by the console.
type Key int

const (
	ActionNone Action = iota
	ActionForward
	ActionBackward
	ActionLeft
	ActionRight
	ActionUp
	ActionDown
	ActionYawCW
	ActionYawCCW
	ActionTakeOff
	ActionLand
	ActionToggleMode
	ActionQuit
)

var actionNames = map[string]Action{
	"forward":  ActionForward,
	"backward": ActionBackward,
	"left":     ActionLeft,
	"right":    ActionRight,
	"up":       ActionUp,
	"down":     ActionDown,
	"yawCW":    ActionYawCW,
	"yawCCW":   ActionYawCCW,
	"takeoff":  ActionTakeOff,
	"land":     ActionLand,
	"mode":     ActionToggleMode,
	"quit":     ActionQuit,
}

// Action is what a key does.
type Action uint8

// Keymap binds keys to actions.
type Keymap map[Key]Action

// DefaultKeymap is WASD for the horizontal plane, R/F for altitude and Q/E
// for yaw.
func DefaultKeymap() Keymap {
	return Keymap{
		'w':    ActionForward,
		's':    ActionBackward,
		'a':    ActionLeft,
		'd':    ActionRight,
		'r':    ActionUp,
		'f':    ActionDown,
		'q':    ActionYawCW,
		'e':    ActionYawCCW,
		't':    ActionTakeOff,
		'l':    ActionLand,
		'm':    ActionToggleMode,
		'p':    ActionQuit,
		keyEsc: ActionQuit,
	}
}

// ParseKeymap applies bindings of action name to a single character on top
// of the default keymap.
func ParseKeymap(bindings map[string]string) (Keymap, error) {
	km := DefaultKeymap()

	requested := make(map[rune]string, len(bindings))
	for _, name := range slices.Sorted(maps.Keys(bindings)) {
		r, _ := utf8.DecodeRuneInString(strings.ToLower(bindings[name]))
		if other, ok := requested[r]; ok && r != utf8.RuneError {
			return nil, fmt.Errorf("actions '%s' and '%s' are both bound to key '%s'", other, name, bindings[name])
		}
		requested[r] = name
	}

	for name, key := range bindings {
		action, ok := actionNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown action '%s'", name)
		}
		if utf8.RuneCountInString(key) != 1 {
			return nil, fmt.Errorf("action '%s': key must be a single character, '%s' given", name, key)
		}

		// Esc always quits
		maps.DeleteFunc(km, func(k Key, a Action) bool { return a == action && k != keyEsc })

		r, _ := utf8.DecodeRuneInString(strings.ToLower(key))
		if existing, ok := km[Key(r)]; ok && existing != ActionNone {
			if _, rebound := bindings[nameOf(existing)]; !rebound {
				return nil, fmt.Errorf("action '%s': key '%s' is already bound to '%s'", name, key, nameOf(existing))
			}
		}
		km[Key(r)] = action
	}

	return km, nil
}

func nameOf(a Action) string {
	for name, action := range actionNames {
		if action == a {
			return name
		}
	}
	return ""
}

// Action returns the action bound to k, ActionNone if unbound.
func (km Keymap) Action(k Key) Action {
	if k == KeyNone {
		return ActionNone
	}
	return km[k]
}

// ManualSpeeds are the fixed stick values of the movement keys.
type ManualSpeeds struct {
	Forward  int `yaml:"forward" json:"forward"`
	Lateral  int `yaml:"lateral" json:"lateral"`
	Vertical int `yaml:"vertical" json:"vertical"`
	Yaw      int `yaml:"yaw" json:"yaw"`
}

func DefaultManualSpeeds() ManualSpeeds {
	return ManualSpeeds{Forward: 100, Lateral: 100, Vertical: 60, Yaw: 100}
}

func (s ManualSpeeds) Validate() error {
	for name, v := range map[string]int{"forward": s.Forward, "lateral": s.Lateral, "vertical": s.Vertical, "yaw": s.Yaw} {
		if v < 0 || v > 100 {
			return fmt.Errorf("control.ManualSpeeds: %s must be in range [0, 100], %d given", name, v)
		}
	}
	return nil
}

// Velocity sets exactly one axis for a movement action, any other action
// hovers.
func (s ManualSpeeds) Velocity(a Action) rc.Velocity {
	switch a {
	case ActionForward:
		return rc.Velocity{FB: s.Forward}
	case ActionBackward:
		return rc.Velocity{FB: -s.Forward}
	case ActionLeft:
		return rc.Velocity{LR: -s.Lateral}
	case ActionRight:
		return rc.Velocity{LR: s.Lateral}
	case ActionUp:
		return rc.Velocity{UD: s.Vertical}
	case ActionDown:
		return rc.Velocity{UD: -s.Vertical}
	case ActionYawCW:
		return rc.Velocity{Yaw: s.Yaw}
	case ActionYawCCW:
		return rc.Velocity{Yaw: -s.Yaw}
	default:
		return rc.Hover
	}
}
