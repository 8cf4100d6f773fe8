package telemetry

import (
	"time"
)

// Provider returns the latest telemetry snapshot, or nil when nothing has
// been received from the drone yet.
type Provider interface {
	Get() *Telemetry
}

// Telemetry is the telemetry data reported by the drone
type Telemetry struct {
	Timestamp     time.Time `json:"timestamp"`               // Timestamp of telemetry measurement
	Battery       int       `json:"battery"`                 // Battery charge in percent
	Height        int       `json:"height"`                  // Height above take-off point in centimetres
	Flying        bool      `json:"flying"`                  // Drone reports it is airborne
	BatteryLow    bool      `json:"batteryLow"`              // Drone raised its own low battery warning
	NorthSpeed    *int      `json:"northSpeed,omitempty"`    // Velocity north in cm/s
	EastSpeed     *int      `json:"eastSpeed,omitempty"`     // Velocity east in cm/s
	VerticalSpeed *int      `json:"verticalSpeed,omitempty"` // Vertical velocity in cm/s
	FlyTime       *int      `json:"flyTime,omitempty"`       // Motor-on time in tenths of a second
	WifiStrength  *int      `json:"wifiStrength,omitempty"`  // Link quality in percent
}

// Battery returns the battery percent of t, 0 when t is nil. A missing
// snapshot never passes the takeoff gate.
func Battery(t *Telemetry) int {
	if t == nil {
		return 0
	}
	return t.Battery
}

// Height returns the height of t in centimetres, 0 when t is nil.
func Height(t *Telemetry) int {
	if t == nil {
		return 0
	}
	return t.Height
}

// Static is a Provider returning a fixed snapshot.
type Static struct {
	Telemetry *Telemetry
}

func (s Static) Get() *Telemetry {
	return s.Telemetry
}
