package rc

import "fmt"

// Velocity is a single remote-control vector sent to the drone. Every axis is
// a signed stick percentage.
type Velocity struct {
	LR  int `json:"lr"`  // Lateral, positive is right
	FB  int `json:"fb"`  // Forward/back, positive is forward
	UD  int `json:"ud"`  // Vertical, positive is up
	Yaw int `json:"yaw"` // Yaw, positive is clockwise
}

// Hover is the all-zero vector.
var Hover = Velocity{}

// Limits holds the maximum magnitude allowed per axis.
type Limits struct {
	LR  int `yaml:"lr" json:"lr"`
	FB  int `yaml:"fb" json:"fb"`
	UD  int `yaml:"ud" json:"ud"`
	Yaw int `yaml:"yaw" json:"yaw"`
}

// DefaultLimits keeps forward/back lower than the other axes, depth is
// estimated from the bounding box size and is noisy.
var DefaultLimits = Limits{LR: 100, FB: 30, UD: 100, Yaw: 100}

func (l Limits) Validate() error {
	for name, v := range map[string]int{"lr": l.LR, "fb": l.FB, "ud": l.UD, "yaw": l.Yaw} {
		if v <= 0 || v > 100 {
			return fmt.Errorf("rc.Limits: %s must be in range (0, 100], %d given", name, v)
		}
	}
	return nil
}

// Clamp bounds v to [-limit, limit].
func Clamp(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// ClampFloat bounds v to [-limit, limit] and truncates it toward zero.
func ClampFloat(v float64, limit int) int {
	l := float64(limit)
	if v > l {
		v = l
	} else if v < -l {
		v = -l
	}
	return int(v)
}

// Clamp returns a copy of v with every axis bounded by l.
func (v Velocity) Clamp(l Limits) Velocity {
	return Velocity{
		LR:  Clamp(v.LR, l.LR),
		FB:  Clamp(v.FB, l.FB),
		UD:  Clamp(v.UD, l.UD),
		Yaw: Clamp(v.Yaw, l.Yaw),
	}
}

func (v Velocity) IsHover() bool {
	return v == Hover
}

func (v Velocity) String() string {
	return fmt.Sprintf("lr=%d fb=%d ud=%d yaw=%d", v.LR, v.FB, v.UD, v.Yaw)
}
