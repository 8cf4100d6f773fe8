package flight

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/visual-servo/internal/rc"
)

const (
	DefaultTakeoffMinBattery = 15
	DefaultCriticalBattery   = 10
	DefaultMaxHeight         = 300

	// a repeated ceiling or rejection within this window is not an event
	repeatWindow = time.Second
)

// Pilot is the part of the drone transport the state machine drives.
type Pilot interface {
	TakeOff() error
	Land() error
}

// Config holds the safety limits. Battery values are percent, heights are
// centimetres.
type Config struct {
	TakeoffMinBattery int  `yaml:"takeoffMinBattery" json:"takeoffMinBattery"` // Takeoff requires battery strictly above
	CriticalBattery   int  `yaml:"criticalBattery" json:"criticalBattery"`     // Forced landing at or below
	MaxHeight         int  `yaml:"maxHeight" json:"maxHeight"`                 // Ascending is vetoed strictly above
	LandOnCeiling     bool `yaml:"landOnCeiling" json:"landOnCeiling"`         // Land instead of only vetoing the ascent
}

func DefaultConfig() Config {
	return Config{
		TakeoffMinBattery: DefaultTakeoffMinBattery,
		CriticalBattery:   DefaultCriticalBattery,
		MaxHeight:         DefaultMaxHeight,
	}
}

func (c Config) Validate() error {
	if c.CriticalBattery < 0 || c.CriticalBattery > 100 {
		return fmt.Errorf("flight.Config: criticalBattery must be in range [0, 100], %d given", c.CriticalBattery)
	}
	if c.TakeoffMinBattery < c.CriticalBattery || c.TakeoffMinBattery > 100 {
		return fmt.Errorf("flight.Config: takeoffMinBattery must be in range [%d, 100], %d given", c.CriticalBattery, c.TakeoffMinBattery)
	}
	if c.MaxHeight <= 0 {
		return fmt.Errorf("flight.Config: maxHeight must be positive, %d given", c.MaxHeight)
	}
	return nil
}

// WithLogger sets the logger for the state machine
func WithLogger(logger *slog.Logger) func(*Machine) {
	return func(m *Machine) {
		m.logger = logger.With(slog.String("component", "flight"))
	}
}

// WithEventHandler registers a callback invoked synchronously for every
// transition and rejection.
func WithEventHandler(fn func(Event)) func(*Machine) {
	return func(m *Machine) {
		m.onEvent = fn
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) func(*Machine) {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine owns the flight state. All transitions go through its methods and
// it is not safe for concurrent use; it belongs to the control loop.
type Machine struct {
	pilot  Pilot
	config Config
	state  State

	onEvent  func(Event)
	repeated map[string]time.Time
	now      func() time.Time
	logger  *slog.Logger
}

// NewMachine creates a landed machine in auto mode
func NewMachine(pilot Pilot, config Config, options ...func(*Machine)) *Machine {
	m := Machine{
		pilot:   pilot,
		config:  config,
		state:   State{Flying: false, Mode: ModeAuto},
		onEvent:  func(Event) {},
		repeated: make(map[string]time.Time),
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Config() Config {
	return m.config
}

// TakeOff takes off if landed and the battery is above the gate.
func (m *Machine) TakeOff(battery int) error {
	if m.state.Flying {
		return m.rejected("takeoff", ErrAlreadyFlying, battery, 0)
	}
	if battery <= m.config.TakeoffMinBattery {
		return m.rejected("takeoff", ErrLowBattery, battery, 0)
	}

	if err := m.pilot.TakeOff(); err != nil {
		return fmt.Errorf("taking off: %w", err)
	}

	m.state.Flying = true
	m.logger.Info("took off", slog.Int("battery", battery))
	m.emit(Event{Kind: EventTakeOff, Battery: battery})

	return nil
}

// Land lands unconditionally when flying.
func (m *Machine) Land() error {
	if !m.state.Flying {
		return m.rejected("land", ErrNotFlying, 0, 0)
	}

	if err := m.land(); err != nil {
		return err
	}

	m.logger.Info("landed")
	m.emit(Event{Kind: EventLand})

	return nil
}

// CheckBattery forces a landing when flying on a critical battery. It
// returns true when it landed.
func (m *Machine) CheckBattery(battery int) (bool, error) {
	if !m.state.Flying || battery > m.config.CriticalBattery {
		return false, nil
	}

	m.logger.Warn("critical battery, landing", slog.Int("battery", battery))

	if err := m.land(); err != nil {
		return false, err
	}

	m.emit(Event{Kind: EventAutoLand, Detail: "critical battery", Battery: battery})
	return true, nil
}

// Veto applies the flight limits to a candidate velocity. On the ground it
// always returns hover. Above the ceiling an ascent is zeroed and a
// rejection is returned along with the corrected velocity; with
// LandOnCeiling the machine lands as well.
func (m *Machine) Veto(v rc.Velocity, height int) (rc.Velocity, error) {
	if !m.state.Flying {
		return rc.Hover, nil
	}
	if height <= m.config.MaxHeight || v.UD <= 0 {
		return v, nil
	}

	v.UD = 0
	m.emitRepeated(Event{Kind: EventCeiling, Height: height})

	if m.config.LandOnCeiling {
		m.logger.Warn("altitude ceiling breached, landing", slog.Int("height", height))

		if err := m.land(); err != nil {
			return rc.Hover, err
		}
		m.emit(Event{Kind: EventAutoLand, Detail: "altitude ceiling", Height: height})
		return rc.Hover, reject("ascend", ErrCeiling)
	}

	return v, reject("ascend", ErrCeiling)
}

// ToggleMode switches between auto and manual.
func (m *Machine) ToggleMode() Mode {
	if m.state.Mode == ModeAuto {
		m.state.Mode = ModeManual
	} else {
		m.state.Mode = ModeAuto
	}

	m.logger.Info("mode changed", slog.String("mode", m.state.Mode.String()))
	m.emit(Event{Kind: EventModeChange, Detail: m.state.Mode.String()})

	return m.state.Mode
}

func (m *Machine) land() error {
	if err := m.pilot.Land(); err != nil {
		return fmt.Errorf("landing: %w", err)
	}
	m.state.Flying = false
	return nil
}

func (m *Machine) rejected(command string, reason error, battery, height int) error {
	err := reject(command, reason)
	m.emitRepeated(Event{Kind: EventRejected, Detail: err.Error(), Battery: battery, Height: height})
	return err
}

func (m *Machine) emit(e Event) {
	e.Time = m.now()
	m.onEvent(e)
}

// emitRepeated emits e unless the same event was raised less than
// repeatWindow ago. Every occurrence restarts the window, so a held
// condition is reported once.
func (m *Machine) emitRepeated(e Event) {
	now := m.now()
	key := string(e.Kind) + "/" + e.Detail

	last, seen := m.repeated[key]
	m.repeated[key] = now
	if seen && now.Sub(last) < repeatWindow {
		return
	}

	e.Time = now
	m.onEvent(e)
}
