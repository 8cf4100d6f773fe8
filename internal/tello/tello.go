// Package tello drives a DJI Tello through gobot: take-off, landing, stick
// velocities, flight telemetry and the H.264 video stream.
package tello

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
)

const (
	DefaultPort           = "8888"
	DefaultConnectTimeout = 10 * time.Second

	// the drone only emits key frames on request
	videoKeepAlive = 100 * time.Millisecond
)

// ErrNotConnected is returned when the drone did not answer in time
var ErrNotConnected = errors.New("drone not connected")

type Config struct {
	Port           string        `yaml:"port" json:"port"`                     // Local UDP port for the drone link
	ConnectTimeout time.Duration `yaml:"connectTimeout" json:"connectTimeout"` // How long to wait for the drone
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("tello.Config: port is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("tello.Config: connectTimeout must be positive: %s", c.ConnectTimeout)
	}
	return nil
}

// sticks is the subset of the gobot driver used for flying
type sticks interface {
	TakeOff() error
	Land() error
	Forward(val int) error
	Backward(val int) error
	Left(val int) error
	Right(val int) error
	Up(val int) error
	Down(val int) error
	Clockwise(val int) error
	CounterClockwise(val int) error
}

// WithLogger sets the logger for the drone
func WithLogger(logger *slog.Logger) func(*Drone) {
	return func(d *Drone) {
		d.logger = logger.With(slog.String("component", "tello"))
	}
}

// WithVideoSink receives the raw H.264 packets of the video stream
func WithVideoSink(w io.Writer) func(*Drone) {
	return func(d *Drone) {
		d.video = w
	}
}

// runner starts and stops the gobot work loop of the driver.
type runner interface {
	Start(args ...interface{}) error
	Stop() error
}

// Drone is the transport and the telemetry provider. gobot delivers
// telemetry on its own goroutines; the latest snapshot is kept under a lock
// and read by the control loop once per cycle.
type Drone struct {
	config Config
	driver *tello.Driver
	sticks sticks
	robot  runner
	video  io.Writer

	mu   sync.RWMutex
	last *telemetry.Telemetry

	connected   chan struct{}
	connectOnce sync.Once
	keepAlive   *time.Ticker
	started     bool

	now    func() time.Time
	logger *slog.Logger
}

// New creates a Drone bound to the configured UDP port
func New(config Config, options ...func(*Drone)) *Drone {
	driver := tello.NewDriver(config.Port)

	d := Drone{
		config:    config,
		driver:    driver,
		sticks:    driver,
		connected: make(chan struct{}),
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	d.robot = gobot.NewRobot("tello", []gobot.Connection{}, []gobot.Device{driver})
	return &d
}

// Connect starts the driver and waits for the drone to answer. The driver is
// stopped again when the drone does not answer in time.
func (d *Drone) Connect(ctx context.Context) error {
	handlers := []struct {
		event string
		fn    func(data interface{})
	}{
		{tello.ConnectedEvent, d.onConnected},
		{tello.FlightDataEvent, d.onFlightData},
		{tello.WifiDataEvent, d.onWifiData},
		{tello.VideoFrameEvent, d.onVideoFrame},
	}
	for _, h := range handlers {
		if err := d.driver.On(h.event, h.fn); err != nil {
			return fmt.Errorf("subscribing to %s: %w", h.event, err)
		}
	}

	if err := d.robot.Start(false); err != nil {
		return fmt.Errorf("starting driver: %w", err)
	}
	d.started = true

	ctx, cancel := context.WithTimeout(ctx, d.config.ConnectTimeout)
	defer cancel()

	select {
	case <-d.connected:
		d.logger.Info("drone connected", slog.String("port", d.config.Port))
		return nil
	case <-ctx.Done():
		return errors.Join(fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err()), d.Close())
	}
}

func (d *Drone) TakeOff() error {
	return d.sticks.TakeOff()
}

func (d *Drone) Land() error {
	return d.sticks.Land()
}

// SendVelocity sets all four sticks. Zero axes are sent as well so the
// previous command never lingers.
func (d *Drone) SendVelocity(v rc.Velocity) error {
	return sendSticks(d.sticks, v)
}

// Get returns a copy of the latest telemetry, nil before the first report.
func (d *Drone) Get() *telemetry.Telemetry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.last == nil {
		return nil
	}
	t := *d.last
	return &t
}

// Close stops the video keep-alive and the driver.
func (d *Drone) Close() error {
	if d.keepAlive != nil {
		d.keepAlive.Stop()
	}
	if !d.started {
		return nil
	}
	d.started = false
	return d.robot.Stop()
}

func (d *Drone) onConnected(interface{}) {
	d.connectOnce.Do(func() {
		if d.video != nil {
			if err := d.driver.StartVideo(); err != nil {
				d.logger.Error(fmt.Sprintf("starting video: %s", err.Error()))
			}
			if err := d.driver.SetVideoEncoderRate(tello.VideoBitRateAuto); err != nil {
				d.logger.Warn(fmt.Sprintf("setting video bit rate: %s", err.Error()))
			}
			d.keepAlive = gobot.Every(videoKeepAlive, func() {
				_ = d.driver.StartVideo()
			})
		}
		close(d.connected)
	})
}

func (d *Drone) onFlightData(data interface{}) {
	fd, ok := data.(*tello.FlightData)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t := fromFlightData(fd, d.now())
	if d.last != nil {
		t.WifiStrength = d.last.WifiStrength
	}
	d.last = &t
}

func (d *Drone) onWifiData(data interface{}) {
	wd, ok := data.(*tello.WifiData)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil {
		d.last = &telemetry.Telemetry{Timestamp: d.now()}
	}
	strength := int(wd.Strength)
	d.last.WifiStrength = &strength
}

func (d *Drone) onVideoFrame(data interface{}) {
	pkt, ok := data.([]byte)
	if !ok || d.video == nil {
		return
	}
	if _, err := d.video.Write(pkt); err != nil {
		d.logger.Debug(fmt.Sprintf("dropping video packet: %s", err.Error()))
	}
}

// fromFlightData converts a gobot report. Height is reported in decimetres.
func fromFlightData(fd *tello.FlightData, now time.Time) telemetry.Telemetry {
	northSpeed := int(fd.NorthSpeed)
	eastSpeed := int(fd.EastSpeed)
	verticalSpeed := int(fd.VerticalSpeed)
	flyTime := int(fd.FlyTime)

	return telemetry.Telemetry{
		Timestamp:     now,
		Battery:       int(fd.BatteryPercentage),
		Height:        int(fd.Height) * 10,
		Flying:        fd.Flying,
		BatteryLow:    fd.BatteryLow,
		NorthSpeed:    &northSpeed,
		EastSpeed:     &eastSpeed,
		VerticalSpeed: &verticalSpeed,
		FlyTime:       &flyTime,
	}
}

func sendSticks(s sticks, v rc.Velocity) error {
	var errs []error

	axis := func(value int, positive, negative func(int) error) {
		var err error
		if value >= 0 {
			err = positive(value)
		} else {
			err = negative(-value)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	axis(v.LR, s.Right, s.Left)
	axis(v.FB, s.Forward, s.Backward)
	axis(v.UD, s.Up, s.Down)
	axis(v.Yaw, s.Clockwise, s.CounterClockwise)

	return errors.Join(errs...)
}
