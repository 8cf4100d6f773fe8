package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/rc"
)

func TestDispatchLandedSendsHover(t *testing.T) {
	drone := &fakeDrone{}
	d := NewDispatcher(flight.NewMachine(drone, flight.DefaultConfig()), drone, nil)

	sent, err := d.Dispatch(rc.Velocity{FB: 30, Yaw: 50}, 0)
	require.NoError(t, err)
	assert.True(t, sent.IsHover())
	assert.Equal(t, []rc.Velocity{rc.Hover}, drone.velocities)
}

func TestDispatchFlyingPassesThrough(t *testing.T) {
	drone := &fakeDrone{}
	m := flight.NewMachine(drone, flight.DefaultConfig())
	require.NoError(t, m.TakeOff(50))

	d := NewDispatcher(m, drone, nil)
	v := rc.Velocity{LR: -10, FB: 30, UD: 20, Yaw: 50}

	sent, err := d.Dispatch(v, 120)
	require.NoError(t, err)
	assert.Equal(t, v, sent)
	assert.Equal(t, []rc.Velocity{v}, drone.velocities)
}

func TestDispatchCeilingStillSends(t *testing.T) {
	drone := &fakeDrone{}
	m := flight.NewMachine(drone, flight.DefaultConfig())
	require.NoError(t, m.TakeOff(50))

	d := NewDispatcher(m, drone, nil)

	sent, err := d.Dispatch(rc.Velocity{FB: 10, UD: 40}, 350)
	require.ErrorIs(t, err, flight.ErrCeiling)
	assert.Equal(t, rc.Velocity{FB: 10}, sent)
	assert.Len(t, drone.velocities, 1)
}

func TestDispatchTransportError(t *testing.T) {
	drone := &fakeDrone{sendErr: errors.New("link down")}
	d := NewDispatcher(flight.NewMachine(drone, flight.DefaultConfig()), drone, nil)

	_, err := d.Dispatch(rc.Hover, 0)
	require.Error(t, err)
	assert.False(t, flight.IsRejected(err))
	assert.ErrorIs(t, err, drone.sendErr)
}
