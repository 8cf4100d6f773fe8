package control

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/rc"
)

// Transport is the command link to the drone. Commands are fire and forget,
// nothing here retries them.
type Transport interface {
	TakeOff() error
	Land() error
	SendVelocity(v rc.Velocity) error
}

// Arbiter picks the velocity source for the current mode.
type Arbiter struct {
	Keymap Keymap
	Speeds ManualSpeeds
}

func NewArbiter(keymap Keymap, speeds ManualSpeeds) Arbiter {
	return Arbiter{Keymap: keymap, Speeds: speeds}
}

// Select returns auto in auto mode. In manual mode the key pressed this
// cycle sets one axis, no key hovers.
func (a Arbiter) Select(mode flight.Mode, auto rc.Velocity, key Key) rc.Velocity {
	if mode == flight.ModeManual {
		return a.Speeds.Velocity(a.Keymap.Action(key))
	}
	return auto
}

// Dispatcher is the only place velocities leave the pilot.
type Dispatcher struct {
	machine   *flight.Machine
	transport Transport
	logger    *slog.Logger
}

func NewDispatcher(machine *flight.Machine, transport Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{machine: machine, transport: transport, logger: logger}
}

// Dispatch applies the flight vetoes and sends exactly one command, hover
// included. It returns what was sent along with a rejection from the veto
// and any transport error.
func (d *Dispatcher) Dispatch(v rc.Velocity, height int) (rc.Velocity, error) {
	vetoed, vetoErr := d.machine.Veto(v, height)
	d.logger.Debug("dispatching velocity", slog.String("velocity", vetoed.String()), slog.Int("height", height))

	if err := d.transport.SendVelocity(vetoed); err != nil {
		return vetoed, errors.Join(vetoErr, fmt.Errorf("sending velocity: %w", err))
	}

	return vetoed, vetoErr
}
