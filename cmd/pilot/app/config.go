package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/landmark"
	"github.com/roman-kulish/visual-servo/internal/servo"
	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/tello"
	"github.com/roman-kulish/visual-servo/internal/video"
	"github.com/roman-kulish/visual-servo/internal/vision"
)

const (
	ModeBlob    ObservationMode = "blob"
	ModeGesture ObservationMode = "gesture"

	defaultWindowName   = "visual-servo"
	defaultDataDir      = "data"
	defaultMaxBatchSize = 100
	defaultQueueSize    = 256
	defaultFontSize     = 14
)

var validModes = map[ObservationMode]struct{}{
	ModeBlob:    {},
	ModeGesture: {},
}

// ObservationMode selects the vision pipeline feeding auto mode.
type ObservationMode string

// ConfigError reports an invalid configuration section.
type ConfigError struct {
	Section string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Section, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TimeDuration is a time.Duration written as a Go duration string, for
// example "50ms", in both yaml and json.
type TimeDuration time.Duration

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

func (d TimeDuration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration '%s': %w", s, err)
	}
	*d = TimeDuration(v)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *TimeDuration) UnmarshalJSON(p []byte) error {
	var s string
	if err := json.Unmarshal(p, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration '%s': %w", s, err)
	}
	*d = TimeDuration(v)
	return nil
}

// Config represents the main application configuration
type Config struct {
	Settings   Settings          `yaml:"settings" json:"settings"`
	Mode       ObservationMode   `yaml:"mode" json:"mode"`
	Frame      target.Geometry   `yaml:"frame" json:"frame"`
	Vision     vision.BlobConfig `yaml:"vision" json:"vision"`
	Controller servo.Config      `yaml:"controller" json:"controller"`
	Gesture    GestureConfig     `yaml:"gesture" json:"gesture"`
	Manual     ManualConfig      `yaml:"manual" json:"manual"`
	Safety     flight.Config     `yaml:"safety" json:"safety"`
	Loop       LoopConfig        `yaml:"loop" json:"loop"`
	Drone      DroneConfig       `yaml:"drone" json:"drone"`
	Video      VideoConfig       `yaml:"video" json:"video"`
	Display    DisplayConfig     `yaml:"display" json:"display"`
	Storage    StorageConfig     `yaml:"storage" json:"storage"`

	// set by Validate
	keymap    control.Keymap
	estimator landmark.Config
	decoder   video.Config
	link      tello.Config
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// GestureConfig configures gesture mode: the landmark estimator and the
// velocities the gestures command.
type GestureConfig struct {
	Speeds    gesture.Speeds `yaml:"speeds" json:"speeds"`
	Mirror    bool           `yaml:"mirror" json:"mirror"`
	Binary    string         `yaml:"binary" json:"binary"`
	Args      []string       `yaml:"args" json:"args"`
	Timeout   TimeDuration   `yaml:"timeout" json:"timeout"`
	Threshold uint8          `yaml:"parseErrorsThreshold" json:"parseErrorsThreshold"`
}

// ManualConfig configures manual mode. Keys binds action names, such as
// "forward" or "takeoff", to single characters.
type ManualConfig struct {
	Speeds control.ManualSpeeds `yaml:"speeds" json:"speeds"`
	Keys   map[string]string    `yaml:"keys" json:"keys,omitempty"`
}

// LoopConfig represents control loop pacing
type LoopConfig struct {
	PollInterval TimeDuration `yaml:"pollInterval" json:"pollInterval"`
	Settle       TimeDuration `yaml:"settle" json:"settle"`
}

// DroneConfig represents the drone link settings
type DroneConfig struct {
	Port           string       `yaml:"port" json:"port"`
	ConnectTimeout TimeDuration `yaml:"connectTimeout" json:"connectTimeout"`
}

// VideoConfig represents the ffmpeg decoder settings
type VideoConfig struct {
	Binary      string        `yaml:"binary" json:"binary"`
	Width       int           `yaml:"width" json:"width"`
	Height      int           `yaml:"height" json:"height"`
	HWAccel     video.HWAccel `yaml:"hwaccel" json:"hwaccel"`
	MaxFrameAge TimeDuration  `yaml:"maxFrameAge" json:"maxFrameAge"`
}

// DisplayConfig represents the video window settings
type DisplayConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	WindowName string  `yaml:"windowName" json:"windowName"`
	FontSize   float64 `yaml:"fontSize" json:"fontSize"`
}

// StorageConfig represents flight recorder settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize" json:"maxBatchSize"`
	QueueSize     int    `yaml:"queueSize" json:"queueSize"`
}

// DefaultConfig returns a configuration flying the blob tracker with every
// component at its default.
func DefaultConfig() *Config {
	estimator := landmark.DefaultConfig()
	decoder := video.DefaultConfig()
	link := tello.DefaultConfig()
	loop := control.DefaultConfig()

	return &Config{
		Settings:   Settings{LogLevel: "INFO"},
		Mode:       ModeBlob,
		Frame:      target.DefaultGeometry(),
		Vision:     vision.DefaultBlobConfig(),
		Controller: servo.DefaultConfig(),
		Gesture: GestureConfig{
			Speeds:    gesture.DefaultSpeeds(),
			Mirror:    estimator.Mirror,
			Binary:    estimator.Binary,
			Timeout:   TimeDuration(estimator.Timeout),
			Threshold: landmark.ParseErrorsThreshold,
		},
		Manual: ManualConfig{Speeds: loop.Manual},
		Safety: flight.DefaultConfig(),
		Loop: LoopConfig{
			PollInterval: TimeDuration(loop.PollInterval),
			Settle:       TimeDuration(loop.ShutdownSettle),
		},
		Drone: DroneConfig{
			Port:           link.Port,
			ConnectTimeout: TimeDuration(link.ConnectTimeout),
		},
		Video: VideoConfig{
			Width:       decoder.Width,
			Height:      decoder.Height,
			MaxFrameAge: TimeDuration(decoder.MaxFrameAge),
		},
		Display: DisplayConfig{
			Enabled:    true,
			WindowName: defaultWindowName,
			FontSize:   defaultFontSize,
		},
		Storage: StorageConfig{
			Enabled:       true,
			DataDirectory: defaultDataDir,
			MaxBatchSize:  defaultMaxBatchSize,
			QueueSize:     defaultQueueSize,
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return ParseConfig(p)
}

// ParseConfig decodes yaml over the defaults and validates the result.
func ParseConfig(p []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(p, c); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every section and prepares the component configurations.
// All invalid sections are reported.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, &ConfigError{Section: section, Err: err})
		}
	}

	if _, ok := validModes[c.Mode]; !ok {
		check("mode", fmt.Errorf("unknown mode '%s'", c.Mode))
	}
	check("frame", c.Frame.Validate())
	check("vision", c.Vision.Validate())
	check("controller", c.Controller.Validate())
	check("gesture", c.Gesture.Speeds.Validate())
	check("manual", c.Manual.Speeds.Validate())
	check("safety", c.Safety.Validate())

	if c.Loop.PollInterval <= 0 {
		check("loop", fmt.Errorf("pollInterval must be positive: %s", c.Loop.PollInterval))
	}
	if c.Loop.Settle < 0 {
		check("loop", fmt.Errorf("settle must not be negative: %s", c.Loop.Settle))
	}

	keymap := control.DefaultKeymap()
	if len(c.Manual.Keys) > 0 {
		var err error
		if keymap, err = control.ParseKeymap(c.Manual.Keys); err != nil {
			check("manual", err)
		}
	}
	c.keymap = keymap

	c.estimator = landmark.Config{
		Binary:  c.Gesture.Binary,
		Args:    c.Gesture.Args,
		Timeout: c.Gesture.Timeout.Duration(),
		Mirror:  c.Gesture.Mirror,
	}
	if c.Mode == ModeGesture {
		check("gesture", c.estimator.Validate())
	}

	c.decoder = video.Config{
		Binary:      c.Video.Binary,
		Width:       c.Video.Width,
		Height:      c.Video.Height,
		HWAccel:     c.Video.HWAccel,
		MaxFrameAge: c.Video.MaxFrameAge.Duration(),
	}
	check("video", c.decoder.Validate())

	c.link = tello.Config{
		Port:           c.Drone.Port,
		ConnectTimeout: c.Drone.ConnectTimeout.Duration(),
	}
	check("drone", c.link.Validate())

	if c.Display.Enabled && c.Display.WindowName == "" {
		check("display", errors.New("windowName is required"))
	}
	if c.Display.FontSize <= 0 {
		check("display", fmt.Errorf("fontSize must be positive: %v", c.Display.FontSize))
	}

	if c.Storage.Enabled {
		if c.Storage.MaxBatchSize <= 0 {
			check("storage", fmt.Errorf("maxBatchSize must be positive: %d", c.Storage.MaxBatchSize))
		}
		if c.Storage.QueueSize <= 0 {
			check("storage", fmt.Errorf("queueSize must be positive: %d", c.Storage.QueueSize))
		}
	}

	return errors.Join(errs...)
}

// loopConfig converts the loop and manual sections for the control loop.
func (c *Config) loopConfig() control.Config {
	return control.Config{
		PollInterval:   c.Loop.PollInterval.Duration(),
		ShutdownSettle: c.Loop.Settle.Duration(),
		Keymap:         c.keymap,
		Manual:         c.Manual.Speeds,
	}
}
