package target

import (
	"fmt"
)

const (
	DefaultWidth               = 650
	DefaultHeight              = 500
	DefaultDeadZoneFraction    = 0.15
	DefaultMinAreaFraction     = 0.005
	DefaultDesiredAreaFraction = 0.05
)

// Geometry describes the frame the vision pipeline works on. It is
// immutable for the duration of a flight session.
type Geometry struct {
	Width               int     `yaml:"width" json:"width"`
	Height              int     `yaml:"height" json:"height"`
	DeadZoneFraction    float64 `yaml:"deadZoneFraction" json:"deadZoneFraction"`       // Fraction of each dimension
	MinAreaFraction     float64 `yaml:"minAreaFraction" json:"minAreaFraction"`         // Fraction of width*height gating detection
	DesiredAreaFraction float64 `yaml:"desiredAreaFraction" json:"desiredAreaFraction"` // Fraction of width*height to hold the target at
}

// DefaultGeometry returns the 650x500 frame used by the tracker.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:               DefaultWidth,
		Height:              DefaultHeight,
		DeadZoneFraction:    DefaultDeadZoneFraction,
		MinAreaFraction:     DefaultMinAreaFraction,
		DesiredAreaFraction: DefaultDesiredAreaFraction,
	}
}

// NewGeometry creates a validated Geometry of the given size with default
// fractions.
func NewGeometry(width, height int) (Geometry, error) {
	g := DefaultGeometry()
	g.Width = width
	g.Height = height

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("target.Geometry: frame size must be positive, %dx%d given", g.Width, g.Height)
	}

	fractions := []struct {
		name  string
		value float64
	}{
		{"deadZoneFraction", g.DeadZoneFraction},
		{"minAreaFraction", g.MinAreaFraction},
		{"desiredAreaFraction", g.DesiredAreaFraction},
	}
	for _, f := range fractions {
		if f.value <= 0 || f.value > 1 {
			return fmt.Errorf("target.Geometry: %s must be in range (0, 1], %g given", f.name, f.value)
		}
	}

	if g.MinAreaFraction > g.DesiredAreaFraction {
		return fmt.Errorf("target.Geometry: minAreaFraction (%g) must not exceed desiredAreaFraction (%g)", g.MinAreaFraction, g.DesiredAreaFraction)
	}

	return nil
}

// Center returns the frame centre in pixels.
func (g Geometry) Center() (x, y float64) {
	return float64(g.Width) / 2, float64(g.Height) / 2
}

func (g Geometry) DeadZoneX() float64 {
	return g.DeadZoneFraction * float64(g.Width)
}

func (g Geometry) DeadZoneY() float64 {
	return g.DeadZoneFraction * float64(g.Height)
}

func (g Geometry) Area() float64 {
	return float64(g.Width) * float64(g.Height)
}

// MinArea is the smallest region area, in pixels, treated as a detection.
func (g Geometry) MinArea() float64 {
	return g.MinAreaFraction * g.Area()
}

// DesiredArea is the bounding box area the forward/back axis steers towards.
func (g Geometry) DesiredArea() float64 {
	return g.DesiredAreaFraction * g.Area()
}

// IsClose reports whether the box is at least as large as the desired area.
func (g Geometry) IsClose(box BBox) bool {
	return box.Area() >= g.DesiredArea()
}
