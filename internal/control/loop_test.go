package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/servo"
	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// fakeDrone records every command in order. Shared by the frame source so
// the shutdown order can be checked on one timeline.
type fakeDrone struct {
	calls      []string
	velocities []rc.Velocity
	sendErr    error
}

func (d *fakeDrone) TakeOff() error {
	d.calls = append(d.calls, "takeoff")
	return nil
}

func (d *fakeDrone) Land() error {
	d.calls = append(d.calls, "land")
	return nil
}

func (d *fakeDrone) SendVelocity(v rc.Velocity) error {
	d.calls = append(d.calls, "velocity "+v.String())
	d.velocities = append(d.velocities, v)
	return d.sendErr
}

func (d *fakeDrone) count(call string) int {
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeFrames struct {
	drone  *fakeDrone
	frame  video.Frame
	ok     bool
	closed int
}

func (f *fakeFrames) Frame() (video.Frame, bool) {
	return f.frame, f.ok
}

func (f *fakeFrames) Close() error {
	f.closed++
	f.drone.calls = append(f.drone.calls, "close video")
	return nil
}

type fakeObserver struct {
	obs   target.Observation
	err   error
	calls int
}

func (o *fakeObserver) Observe(video.Frame) (target.Observation, error) {
	o.calls++
	return o.obs, o.err
}

type fakeConsole struct {
	keys  []Key
	shown []Snapshot
}

func (c *fakeConsole) Show(_ video.Frame, _ bool, snap Snapshot) {
	c.shown = append(c.shown, snap)
}

func (c *fakeConsole) Poll(time.Duration) Key {
	if len(c.keys) == 0 {
		return KeyNone
	}
	k := c.keys[0]
	c.keys = c.keys[1:]
	return k
}

type recorderFunc func(Snapshot)

func (fn recorderFunc) Record(s Snapshot) { fn(s) }

type fixture struct {
	loop      *Loop
	drone     *fakeDrone
	frames    *fakeFrames
	observer  *fakeObserver
	console   *fakeConsole
	machine   *flight.Machine
	telemetry *telemetry.Telemetry
	slept     []time.Duration
}

func newFixture(t *testing.T, commander Commander) *fixture {
	t.Helper()

	f := fixture{
		drone:     &fakeDrone{},
		observer:  &fakeObserver{obs: target.None()},
		console:   &fakeConsole{},
		telemetry: &telemetry.Telemetry{Battery: 80, Height: 100},
	}
	f.frames = &fakeFrames{drone: f.drone}
	f.machine = flight.NewMachine(f.drone, flight.DefaultConfig())

	if commander == nil {
		commander = servo.New(target.DefaultGeometry(), servo.DefaultConfig())
	}

	loop, err := NewLoop(DefaultConfig(), Components{
		Machine:   f.machine,
		Transport: f.drone,
		Frames:    f.frames,
		Observer:  f.observer,
		Commander: commander,
		Telemetry: providerFunc(func() *telemetry.Telemetry { return f.telemetry }),
		Console:   f.console,
	}, WithSleep(func(d time.Duration) {
		f.slept = append(f.slept, d)
		f.drone.calls = append(f.drone.calls, "sleep")
	}))
	require.NoError(t, err)

	f.loop = loop
	return &f
}

type providerFunc func() *telemetry.Telemetry

func (fn providerFunc) Get() *telemetry.Telemetry { return fn() }

func (f *fixture) takeOff(t *testing.T) {
	t.Helper()
	require.NoError(t, f.machine.TakeOff(100))
	f.drone.calls = nil
}

func TestNewLoopRequiresComponents(t *testing.T) {
	_, err := NewLoop(DefaultConfig(), Components{})
	assert.Error(t, err)
}

func TestStepWithoutFramesHovers(t *testing.T) {
	f := newFixture(t, nil)
	f.frames.ok = false

	for i := 0; i < 5; i++ {
		snap, quit := f.loop.Step()
		require.False(t, quit)
		assert.Equal(t, target.None(), snap.Observation)
		assert.False(t, snap.HasFrame)
	}

	assert.Zero(t, f.observer.calls)
	assert.Len(t, f.drone.velocities, 5)
	for _, v := range f.drone.velocities {
		assert.True(t, v.IsHover())
	}
	assert.Equal(t, flight.State{Flying: false, Mode: flight.ModeAuto}, f.machine.State())
}

func TestStepFlyingFrameGapResetsCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)

	f.frames.ok = true
	f.observer.obs = target.Blob(target.BBox{X: 0, Y: 0, W: 50, H: 50}, 2500)

	snap, _ := f.loop.Step()
	require.False(t, snap.Command.IsHover())

	f.frames.ok = false
	for i := 0; i < 5; i++ {
		snap, quit := f.loop.Step()
		require.False(t, quit)
		assert.Equal(t, target.None(), snap.Observation)
		assert.Equal(t, rc.Hover, snap.Command, "cycle %d", i)
	}

	require.Len(t, f.drone.velocities, 6)
	for i, v := range f.drone.velocities[1:] {
		assert.Equal(t, rc.Hover, v, "cycle %d", i)
	}
	assert.Equal(t, 1, f.observer.calls)
	assert.True(t, f.machine.State().Flying)
}

func TestStepTracksBlob(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)

	f.frames.ok = true
	f.observer.obs = target.Blob(target.BBox{X: 0, Y: 0, W: 50, H: 50}, 2500)

	snap, _ := f.loop.Step()

	want := rc.Velocity{LR: 0, FB: 27, UD: 90, Yaw: -100}
	if diff := cmp.Diff(want, snap.Command); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []rc.Velocity{want}, f.drone.velocities)
}

func TestStepObserveErrorIsNone(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)

	f.frames.ok = true
	f.observer.obs = target.Blob(target.BBox{W: 50, H: 50}, 2500)
	f.observer.err = errors.New("bad frame")

	snap, _ := f.loop.Step()
	assert.Equal(t, target.KindNone, snap.Observation.Kind)
	assert.True(t, snap.Command.IsHover())
}

func TestStepCriticalBatteryLandsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.telemetry.Battery = 9

	snap, _ := f.loop.Step()
	assert.False(t, snap.State.Flying)
	assert.Equal(t, "CRITICAL BATTERY: landing", snap.Notice)

	for i := 0; i < 3; i++ {
		f.loop.Step()
	}
	assert.Equal(t, 1, f.drone.count("land"))
	assert.Zero(t, f.drone.count("takeoff"))
}

func TestStepCeilingVeto(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.telemetry.Height = 301

	f.frames.ok = true
	// target above centre, the controller wants to climb
	f.observer.obs = target.Blob(target.BBox{X: 300, Y: 0, W: 50, H: 50}, 2500)

	snap, _ := f.loop.Step()
	assert.Equal(t, 0, snap.Command.UD)
	assert.Equal(t, "HEIGHT EXCEEDED", snap.Notice)
	assert.True(t, snap.State.Flying)
	assert.Zero(t, f.drone.count("land"))
}

func TestStepManualKeys(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.machine.ToggleMode()

	// a key polled at the end of a cycle is applied on the next one
	f.console.keys = []Key{'w', KeyNone, 'q'}

	tests := []rc.Velocity{
		rc.Hover,
		{FB: 100},
		rc.Hover,
		{Yaw: 100},
	}
	for i, want := range tests {
		snap, quit := f.loop.Step()
		require.False(t, quit)
		assert.Equal(t, want, snap.Command, "cycle %d", i+1)
	}
}

func TestStepManualIgnoresVision(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.machine.ToggleMode()

	f.frames.ok = true
	f.observer.obs = target.Blob(target.BBox{W: 50, H: 50}, 2500)

	snap, _ := f.loop.Step()
	assert.True(t, snap.Command.IsHover())
}

func TestStepTakeOffKeyRejectedOnLowBattery(t *testing.T) {
	f := newFixture(t, nil)
	f.telemetry.Battery = 12
	f.console.keys = []Key{'t'}

	f.loop.Step()
	snap, _ := f.loop.Step()

	assert.False(t, snap.State.Flying)
	assert.Equal(t, "LOW BATTERY: cannot take off", snap.Notice)
	assert.Zero(t, f.drone.count("takeoff"))
}

func TestStepNoticeExpires(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.loop.now = func() time.Time { return now }

	f.loop.notify(now, "hello")

	snap, _ := f.loop.Step()
	assert.Equal(t, "hello", snap.Notice)

	now = now.Add(noticeTTL)
	snap, _ = f.loop.Step()
	assert.Empty(t, snap.Notice)
}

func TestStepModeToggleKey(t *testing.T) {
	f := newFixture(t, nil)
	f.console.keys = []Key{'m'}

	f.loop.Step()
	snap, _ := f.loop.Step()
	assert.Equal(t, flight.ModeManual, snap.State.Mode)
}

func TestStepGestureTakeoffAndLand(t *testing.T) {
	f := newFixture(t, gesture.DefaultSpeeds())
	f.frames.ok = true

	f.observer.obs = target.GestureOf(target.GestureTakeoff)
	f.loop.Step()
	f.loop.Step()
	assert.True(t, f.machine.State().Flying)
	assert.Equal(t, 1, f.drone.count("takeoff"))

	f.observer.obs = target.GestureOf(target.GestureUp)
	snap, _ := f.loop.Step()
	assert.Equal(t, rc.Velocity{UD: 30}, snap.Command)

	f.observer.obs = target.GestureOf(target.GestureLand)
	f.loop.Step()
	f.loop.Step()
	assert.False(t, f.machine.State().Flying)
	assert.Equal(t, 1, f.drone.count("land"))
}

func TestStepRecordsEveryCycle(t *testing.T) {
	f := newFixture(t, nil)

	var recorded []uint64
	f.loop.recorder = recorderFunc(func(s Snapshot) {
		recorded = append(recorded, s.Cycle)
	})

	for i := 0; i < 3; i++ {
		f.loop.Step()
	}
	assert.Equal(t, []uint64{1, 2, 3}, recorded)
	assert.Len(t, f.console.shown, 3)
}

func TestStepTransportErrorKeepsRunning(t *testing.T) {
	f := newFixture(t, nil)
	f.drone.sendErr = errors.New("udp write failed")

	for i := 0; i < 3; i++ {
		_, quit := f.loop.Step()
		assert.False(t, quit)
	}
	assert.Len(t, f.drone.velocities, 3)
}

func TestRunQuitRunsShutdown(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.console.keys = []Key{'p'}

	require.NoError(t, f.loop.Run(context.Background()))

	want := []string{
		"velocity " + rc.Hover.String(),
		"velocity " + rc.Hover.String(),
		"sleep",
		"land",
		"close video",
	}
	if diff := cmp.Diff(want, f.drone.calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{DefaultShutdownSettle}, f.slept)
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.loop.Run(ctx))
	assert.Zero(t, f.drone.count("land"))
	assert.Equal(t, 1, f.frames.closed)
}

func TestRunStopsWhenStreamEnds(t *testing.T) {
	f := newFixture(t, nil)

	stop := make(chan error, 1)
	stop <- errors.New("decoder exited")
	f.loop.stop = stop

	err := f.loop.Run(context.Background())
	require.ErrorIs(t, err, ErrStreamEnded)
	assert.Equal(t, 1, f.frames.closed)
}

func TestRunShutdownAfterPanic(t *testing.T) {
	f := newFixture(t, nil)
	f.takeOff(t)
	f.loop.recorder = recorderFunc(func(Snapshot) { panic("boom") })

	assert.Panics(t, func() {
		_ = f.loop.Run(context.Background())
	})
	assert.Equal(t, 1, f.drone.count("land"))
	assert.Equal(t, 1, f.frames.closed)
}

func TestShutdownRunsOnce(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.loop.Shutdown())
	require.NoError(t, f.loop.Shutdown())
	assert.Equal(t, 1, f.frames.closed)
	assert.Len(t, f.slept, 1)
}
