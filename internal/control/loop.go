// Package control runs the pilot: one synchronous cycle of observe,
// command, dispatch and display at a time, and the shutdown sequence that
// brings the drone down on exit.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
	"github.com/roman-kulish/visual-servo/internal/video"
)

const (
	DefaultPollInterval   = 50 * time.Millisecond
	DefaultShutdownSettle = time.Second

	noticeTTL = 2 * time.Second
)

// ErrStreamEnded is returned by Run when the stop channel closes.
var ErrStreamEnded = errors.New("stream ended")

// FrameSource returns the latest frame, false when none is available.
type FrameSource interface {
	Frame() (video.Frame, bool)
	Close() error
}

// Observer extracts the observation of a frame. Errors are treated as
// nothing observed.
type Observer interface {
	Observe(frame video.Frame) (target.Observation, error)
}

// Commander turns an observation into an auto mode velocity.
type Commander interface {
	Command(obs target.Observation) rc.Velocity
}

// Console displays the cycle and reads the keyboard. Poll blocks for at
// most the given duration and paces the loop.
type Console interface {
	Show(frame video.Frame, ok bool, snap Snapshot)
	Poll(timeout time.Duration) Key
}

// Recorder receives every cycle. It must not block.
type Recorder interface {
	Record(snap Snapshot)
}

// Snapshot is the read-only view of a finished cycle.
type Snapshot struct {
	Cycle       uint64               `json:"cycle"`
	Time        time.Time            `json:"time"`
	State       flight.State         `json:"state"`
	Battery     int                  `json:"battery"`
	Height      int                  `json:"height"`
	Telemetry   *telemetry.Telemetry `json:"telemetry,omitempty"`
	HasFrame    bool                 `json:"hasFrame"`
	Observation target.Observation   `json:"observation"`
	Command     rc.Velocity          `json:"command"`
	Notice      string               `json:"notice,omitempty"`
}

type Config struct {
	PollInterval   time.Duration
	ShutdownSettle time.Duration
	Keymap         Keymap
	Manual         ManualSpeeds
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   DefaultPollInterval,
		ShutdownSettle: DefaultShutdownSettle,
		Keymap:         DefaultKeymap(),
		Manual:         DefaultManualSpeeds(),
	}
}

// Components are the collaborators of the loop.
type Components struct {
	Machine   *flight.Machine
	Transport Transport
	Frames    FrameSource
	Observer  Observer
	Commander Commander
	Telemetry telemetry.Provider
	Console   Console
}

func (c *Components) validate() error {
	switch {
	case c.Machine == nil:
		return errors.New("control: flight machine is required")
	case c.Transport == nil:
		return errors.New("control: transport is required")
	case c.Frames == nil:
		return errors.New("control: frame source is required")
	case c.Observer == nil:
		return errors.New("control: observer is required")
	case c.Commander == nil:
		return errors.New("control: commander is required")
	case c.Telemetry == nil:
		return errors.New("control: telemetry provider is required")
	case c.Console == nil:
		return errors.New("control: console is required")
	}
	return nil
}

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "control"))
	}
}

// WithRecorder sets the cycle recorder
func WithRecorder(r Recorder) func(*Loop) {
	return func(l *Loop) {
		l.recorder = r
	}
}

// WithStop makes Run return when ch delivers or closes, for example when
// the video decoder exits.
func WithStop(ch <-chan error) func(*Loop) {
	return func(l *Loop) {
		l.stop = ch
	}
}

// WithSleep overrides the wait of the shutdown sequence
func WithSleep(sleep func(time.Duration)) func(*Loop) {
	return func(l *Loop) {
		l.sleep = sleep
	}
}

// WithClock overrides the cycle timestamp source
func WithClock(now func() time.Time) func(*Loop) {
	return func(l *Loop) {
		l.now = now
	}
}

type noopRecorder struct{}

func (noopRecorder) Record(Snapshot) {}

// Loop is the control loop. It is single threaded: Step and Shutdown must
// be called from the same goroutine.
type Loop struct {
	config     Config
	components Components
	arbiter    Arbiter
	dispatcher *Dispatcher
	recorder   Recorder
	stop       <-chan error

	cycle       uint64
	pending     Key
	notice      string
	noticeUntil time.Time

	shutdownOnce sync.Once
	shutdownErr  error

	sleep  func(time.Duration)
	now    func() time.Time
	logger *slog.Logger
}

// NewLoop creates a loop over the components
func NewLoop(config Config, components Components, options ...func(*Loop)) (*Loop, error) {
	if err := components.validate(); err != nil {
		return nil, err
	}
	if config.Keymap == nil {
		config.Keymap = DefaultKeymap()
	}

	l := Loop{
		config:     config,
		components: components,
		arbiter:    NewArbiter(config.Keymap, config.Manual),
		recorder:   noopRecorder{},
		pending:    KeyNone,
		sleep:      time.Sleep,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	l.dispatcher = NewDispatcher(components.Machine, components.Transport, l.logger)
	return &l, nil
}

// Run steps until ctx is cancelled, the quit key is pressed or the stop
// channel fires. The shutdown sequence always runs before Run returns,
// panics included.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		err = errors.Join(err, l.Shutdown())
	}()

	l.logger.Info("control loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("interrupted, stopping")
			return nil

		case stopErr, ok := <-l.stop:
			if !ok || stopErr == nil {
				return ErrStreamEnded
			}
			return fmt.Errorf("%w: %w", ErrStreamEnded, stopErr)

		default:
		}

		if _, quit := l.Step(); quit {
			l.logger.Info("quit requested")
			return nil
		}
	}
}

// Step runs a single cycle. It reports true when quit was requested, in
// which case nothing was dispatched.
func (l *Loop) Step() (Snapshot, bool) {
	l.cycle++
	now := l.now()

	key := l.pending
	l.pending = KeyNone

	tm := l.components.Telemetry.Get()
	battery, height := telemetry.Battery(tm), telemetry.Height(tm)

	machine := l.components.Machine
	switch l.config.Keymap.Action(key) {
	case ActionQuit:
		return l.snapshot(now, tm, false, target.None(), rc.Hover), true
	case ActionTakeOff:
		l.handle(now, machine.TakeOff(battery))
	case ActionLand:
		l.handle(now, machine.Land())
	case ActionToggleMode:
		machine.ToggleMode()
	}

	landed, err := machine.CheckBattery(battery)
	if landed {
		l.notify(now, "CRITICAL BATTERY: landing")
	}
	l.handle(now, err)

	frame, ok := l.components.Frames.Frame()
	obs := l.observe(frame, ok)

	var auto rc.Velocity
	if machine.State().Mode == flight.ModeAuto {
		l.applyGesture(now, obs, battery)
		auto = l.components.Commander.Command(obs)
	}

	v := l.arbiter.Select(machine.State().Mode, auto, key)
	sent, err := l.dispatcher.Dispatch(v, height)
	l.handle(now, err)

	snap := l.snapshot(now, tm, ok, obs, sent)
	l.recorder.Record(snap)

	l.components.Console.Show(frame, ok, snap)
	l.pending = l.components.Console.Poll(l.config.PollInterval)

	return snap, false
}

// Shutdown stops the drone: hover, wait for the command to settle, land if
// flying and release the video. It runs once; later calls return the same
// result.
func (l *Loop) Shutdown() error {
	l.shutdownOnce.Do(func() {
		l.logger.Info("running shutdown sequence")

		var errs []error
		if err := l.components.Transport.SendVelocity(rc.Hover); err != nil {
			errs = append(errs, fmt.Errorf("stopping: %w", err))
		}

		l.sleep(l.config.ShutdownSettle)

		if l.components.Machine.State().Flying {
			if err := l.components.Machine.Land(); err != nil {
				errs = append(errs, fmt.Errorf("landing: %w", err))
			}
		}

		if err := l.components.Frames.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing video: %w", err))
		}

		l.shutdownErr = errors.Join(errs...)
		l.logger.Info("shutdown sequence finished")
	})

	return l.shutdownErr
}

func (l *Loop) observe(frame video.Frame, ok bool) target.Observation {
	if !ok {
		return target.None()
	}

	obs, err := l.components.Observer.Observe(frame)
	if err != nil {
		l.logger.Debug(fmt.Sprintf("observing frame: %s", err.Error()), slog.Uint64("seq", frame.Seq))
		return target.None()
	}
	return obs
}

// applyGesture performs the takeoff and land gestures. They only fire when
// they would change the state, a held pose is not a stream of rejections.
func (l *Loop) applyGesture(now time.Time, obs target.Observation, battery int) {
	if obs.Kind != target.KindGesture {
		return
	}

	machine := l.components.Machine
	switch {
	case obs.Gesture == target.GestureTakeoff && !machine.State().Flying:
		l.handle(now, machine.TakeOff(battery))
	case obs.Gesture == target.GestureLand && machine.State().Flying:
		l.handle(now, machine.Land())
	}
}

// handle turns rejections into a visible notice. Anything else is a
// transport failure and is only logged, the loop keeps going.
func (l *Loop) handle(now time.Time, err error) {
	if err == nil {
		return
	}

	var rejected *flight.RejectedError
	if !errors.As(err, &rejected) {
		l.logger.Error(err.Error())
		return
	}

	switch {
	case errors.Is(err, flight.ErrLowBattery):
		l.notify(now, "LOW BATTERY: cannot take off")
	case errors.Is(err, flight.ErrCeiling):
		l.notify(now, "HEIGHT EXCEEDED")
	default:
		l.notify(now, rejected.Error())
	}
	l.logger.Warn(err.Error())
}

func (l *Loop) notify(now time.Time, msg string) {
	l.notice = msg
	l.noticeUntil = now.Add(noticeTTL)
}

func (l *Loop) snapshot(now time.Time, tm *telemetry.Telemetry, hasFrame bool, obs target.Observation, sent rc.Velocity) Snapshot {
	snap := Snapshot{
		Cycle:       l.cycle,
		Time:        now,
		State:       l.components.Machine.State(),
		Battery:     telemetry.Battery(tm),
		Height:      telemetry.Height(tm),
		Telemetry:   tm,
		HasFrame:    hasFrame,
		Observation: obs,
		Command:     sent,
	}
	if now.Before(l.noticeUntil) {
		snap.Notice = l.notice
	}
	return snap
}
