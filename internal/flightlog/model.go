// Package flightlog holds the records of a flight as they are stored and
// read back: sessions, control cycles and flight events.
package flightlog

import (
	"time"

	"github.com/roman-kulish/visual-servo/internal/telemetry"
)

// Session is a single run of the pilot.
type Session struct {
	ID        int64     `json:"ID"`                      // Unique identifier for the session
	UUID      string    `json:"uuid"`                    // Stable identifier, safe to share across databases
	StartTime time.Time `json:"startTime"`               // When the pilot started
	Mode      string    `json:"mode"`                    // Observation source, "blob" or "gesture"
	Config    *string   `json:"config,string,omitempty"` // Optional pilot configuration in JSON format
}

// Cycle is one control loop iteration: what was seen and what was sent.
// Battery and height are the values the cycle acted on, the box is set for
// blob observations only and the velocity is the command actually sent.
type Cycle struct {
	Cycle     uint64    `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`
	Flying    bool      `json:"flying"`
	Mode      string    `json:"mode"`
	Battery   int       `json:"battery"`
	Height    int       `json:"height"`
	HasFrame  bool      `json:"hasFrame"`
	Kind      string    `json:"kind"`
	Gesture   string    `json:"gesture,omitempty"`
	BoxX      int       `json:"boxX"`
	BoxY      int       `json:"boxY"`
	BoxW      int       `json:"boxW"`
	BoxH      int       `json:"boxH"`
	Area      float64   `json:"area"`
	LR        int       `json:"lr"`
	FB        int       `json:"fb"`
	UD        int       `json:"ud"`
	Yaw       int       `json:"yaw"`
	Notice    string    `json:"notice,omitempty"`
}

// Event is a flight state transition or a refused command.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Battery   int       `json:"battery"`
	Height    int       `json:"height"`
}

// TelemetryPoint is a telemetry report as received from the drone.
type TelemetryPoint struct {
	ID        int64                `json:"ID"`
	Telemetry *telemetry.Telemetry `json:"telemetry"`
}
