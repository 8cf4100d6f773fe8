package tello

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/roman-kulish/visual-servo/internal/rc"
)

type stickCall struct {
	name  string
	value int
}

type fakeSticks struct {
	calls []stickCall
	err   error
}

func (f *fakeSticks) record(name string, v int) error {
	f.calls = append(f.calls, stickCall{name, v})
	return f.err
}

func (f *fakeSticks) TakeOff() error { return f.record("takeoff", 0) }
func (f *fakeSticks) Land() error { return f.record("land", 0) }
func (f *fakeSticks) Forward(v int) error { return f.record("forward", v) }
func (f *fakeSticks) Backward(v int) error { return f.record("backward", v) }
func (f *fakeSticks) Left(v int) error { return f.record("left", v) }
func (f *fakeSticks) Right(v int) error { return f.record("right", v) }
func (f *fakeSticks) Up(v int) error { return f.record("up", v) }
func (f *fakeSticks) Down(v int) error { return f.record("down", v) }
func (f *fakeSticks) Clockwise(v int) error { return f.record("cw", v) }
func (f *fakeSticks) CounterClockwise(v int) error { return f.record("ccw", v) }

func TestSendSticks(t *testing.T) {
	tests := []struct {
		name string
		v    rc.Velocity
		want []stickCall
	}{
		{
			name: "hover sends every axis",
			v:    rc.Hover,
			want: []stickCall{{"right", 0}, {"forward", 0}, {"up", 0}, {"cw", 0}},
		},
		{
			name: "positive",
			v:    rc.Velocity{LR: 10, FB: 20, UD: 30, Yaw: 40},
			want: []stickCall{{"right", 10}, {"forward", 20}, {"up", 30}, {"cw", 40}},
		},
		{
			name: "negative",
			v:    rc.Velocity{LR: -10, FB: -20, UD: -30, Yaw: -40},
			want: []stickCall{{"left", 10}, {"backward", 20}, {"down", 30}, {"ccw", 40}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSticks{}
			require.NoError(t, sendSticks(s, tt.v))
			assert.Equal(t, tt.want, s.calls)
		})
	}
}

func TestSendSticksJoinsErrors(t *testing.T) {
	s := &fakeSticks{err: errors.New("write: connection refused")}

	err := sendSticks(s, rc.Velocity{FB: 10})
	require.Error(t, err)
	assert.Len(t, s.calls, 4, "a failing axis does not stop the others")
}

func TestFromFlightData(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fd := &tello.FlightData{
		BatteryPercentage: 87,
		Height:            12,
		Flying:            true,
		NorthSpeed:        -3,
		VerticalSpeed:     5,
		FlyTime:           42,
	}

	tm := fromFlightData(fd, now)
	assert.Equal(t, now, tm.Timestamp)
	assert.Equal(t, 87, tm.Battery)
	assert.Equal(t, 120, tm.Height, "decimetres to centimetres")
	assert.True(t, tm.Flying)
	require.NotNil(t, tm.NorthSpeed)
	assert.Equal(t, -3, *tm.NorthSpeed)
	assert.Equal(t, 42, *tm.FlyTime)
}

func TestDroneTelemetrySnapshot(t *testing.T) {
	d := New(DefaultConfig())
	assert.Nil(t, d.Get())

	d.onWifiData(&tello.WifiData{Strength: 90})
	d.onFlightData(&tello.FlightData{BatteryPercentage: 50, Height: 3})

	tm := d.Get()
	require.NotNil(t, tm)
	assert.Equal(t, 50, tm.Battery)
	assert.Equal(t, 30, tm.Height)
	require.NotNil(t, tm.WifiStrength)
	assert.Equal(t, 90, *tm.WifiStrength)

	tm.Battery = 1
	assert.Equal(t, 50, d.Get().Battery, "Get returns a copy")

	d.onFlightData("garbage")
	assert.Equal(t, 50, d.Get().Battery)
}

type fakeRunner struct {
	started int
	stopped int
}

func (r *fakeRunner) Start(...interface{}) error {
	r.started++
	return nil
}

func (r *fakeRunner) Stop() error {
	r.stopped++
	return nil
}

func TestConnectTimeoutStopsDriver(t *testing.T) {
	config := DefaultConfig()
	config.ConnectTimeout = 10 * time.Millisecond

	d := New(config)
	robot := &fakeRunner{}
	d.robot = robot

	err := d.Connect(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, robot.started)
	assert.Equal(t, 1, robot.stopped)

	require.NoError(t, d.Close())
	assert.Equal(t, 1, robot.stopped, "driver is stopped once")
}

func TestCloseBeforeConnect(t *testing.T) {
	d := New(DefaultConfig())
	robot := &fakeRunner{}
	d.robot = robot

	require.NoError(t, d.Close())
	assert.Zero(t, robot.stopped)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())

	config.Port = ""
	assert.Error(t, config.Validate())
}
