// Package servo converts a tracked blob into velocity commands using a
// proportional controller with a dead-zone on the bearing and altitude axes.
package servo

import (
	"fmt"
	"math"

	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/target"
)

const (
	DefaultKpYaw      = 0.4
	DefaultKpVertical = 0.4
	DefaultKpForward  = 0.002
)

// Gains are the proportional gains per axis. Yaw and Vertical multiply a
// pixel error, Forward multiplies an area error in square pixels.
type Gains struct {
	Yaw      float64 `yaml:"yaw" json:"yaw"`
	Vertical float64 `yaml:"vertical" json:"vertical"`
	Forward  float64 `yaml:"forward" json:"forward"`
}

type Config struct {
	Gains  Gains     `yaml:"gains" json:"gains"`
	Limits rc.Limits `yaml:"limits" json:"limits"`
}

func DefaultConfig() Config {
	return Config{
		Gains: Gains{
			Yaw:      DefaultKpYaw,
			Vertical: DefaultKpVertical,
			Forward:  DefaultKpForward,
		},
		Limits: rc.DefaultLimits,
	}
}

func (c Config) Validate() error {
	if c.Gains.Yaw < 0 || c.Gains.Vertical < 0 || c.Gains.Forward < 0 {
		return fmt.Errorf("servo.Config: gains must not be negative")
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("servo.Config: %w", err)
	}
	return nil
}

// Error is the controller input for a single cycle, exposed for the overlay.
type Error struct {
	X    float64 // Pixels, positive when the target is right of centre
	Y    float64 // Pixels, positive when the target is above centre
	Area float64 // Square pixels, positive when the target looks too small
}

// Controller is stateless: the same observation always yields the same
// command.
type Controller struct {
	geometry target.Geometry
	config   Config
}

func New(geometry target.Geometry, config Config) *Controller {
	return &Controller{geometry: geometry, config: config}
}

func (c *Controller) Geometry() target.Geometry {
	return c.geometry
}

// Measure computes the error terms for a bounding box.
func (c *Controller) Measure(box target.BBox) Error {
	cx, cy := box.Center()
	fx, fy := c.geometry.Center()

	return Error{
		X:    cx - fx,
		Y:    fy - cy,
		Area: c.geometry.DesiredArea() - box.Area(),
	}
}

// Command returns the velocity for the observation. Only blobs drive the
// controller; anything else hovers. Lateral is never commanded, the drone
// yaws toward the target instead of strafing.
func (c *Controller) Command(obs target.Observation) rc.Velocity {
	if obs.Kind != target.KindBlob {
		return rc.Hover
	}

	e := c.Measure(obs.Box)
	limits := c.config.Limits

	var v rc.Velocity
	if math.Abs(e.X) > c.geometry.DeadZoneX() {
		v.Yaw = rc.ClampFloat(c.config.Gains.Yaw*e.X, limits.Yaw)
	}
	if math.Abs(e.Y) > c.geometry.DeadZoneY() {
		v.UD = rc.ClampFloat(c.config.Gains.Vertical*e.Y, limits.UD)
	}

	// depth has no dead-zone
	v.FB = rc.ClampFloat(c.config.Gains.Forward*e.Area, limits.FB)

	return v
}
