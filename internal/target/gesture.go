package target

import (
	"fmt"
	"strings"
)

const (
	GestureNone Gesture = iota
	GestureTakeoff
	GestureLand
	GestureUp
	GestureDown
	GestureLeft
	GestureRight
	GestureFront
	GestureBack
	GestureYawCW
	GestureYawCCW
	GestureOther
)

var gestureNames = map[Gesture]string{
	GestureNone:    "none",
	GestureTakeoff: "takeoff",
	GestureLand:    "land",
	GestureUp:      "up",
	GestureDown:    "down",
	GestureLeft:    "left",
	GestureRight:   "right",
	GestureFront:   "front",
	GestureBack:    "back",
	GestureYawCW:   "yaw-cw",
	GestureYawCCW:  "yaw-ccw",
	GestureOther:   "other",
}

// Gesture is a classified hand pose.
type Gesture uint8

func (g Gesture) String() string {
	if name, ok := gestureNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Gesture(%d)", uint8(g))
}

// ParseGesture is the inverse of Gesture.String.
func ParseGesture(s string) (Gesture, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, name := range gestureNames {
		if name == s {
			return g, nil
		}
	}
	return GestureNone, fmt.Errorf("unknown gesture '%s'", s)
}
