package video

import (
	"fmt"
	"strconv"
	"time"
)

const (
	runtime = "ffmpeg"

	// Tello streams 960x720 H.264
	DefaultWidth       = 960
	DefaultHeight      = 720
	DefaultMaxFrameAge = 500 * time.Millisecond

	HWAccelNone  HWAccel = ""
	HWAccelAuto  HWAccel = "auto"
	HWAccelVAAPI HWAccel = "vaapi"
	HWAccelCUDA  HWAccel = "cuda"
)

var validHWAccels = map[HWAccel]struct{}{
	HWAccelNone:  {},
	HWAccelAuto:  {},
	HWAccelVAAPI: {},
	HWAccelCUDA:  {},
}

type HWAccel string

func (h HWAccel) String() string {
	return string(h)
}

// Config is the configuration of the ffmpeg decoder
type Config struct {
	Binary      string        `yaml:"binary" json:"binary"`           // Path to ffmpeg, looked up in PATH when empty
	Width       int           `yaml:"width" json:"width"`             // Output frame width
	Height      int           `yaml:"height" json:"height"`           // Output frame height
	HWAccel     HWAccel       `yaml:"hwaccel" json:"hwaccel"`         // Hardware decoding method
	MaxFrameAge time.Duration `yaml:"maxFrameAge" json:"maxFrameAge"` // Older frames are reported as missing, zero disables
}

func DefaultConfig() Config {
	return Config{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		MaxFrameAge: DefaultMaxFrameAge,
	}
}

func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("video.Config: frame size must be positive, %dx%d given", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("video.Config: frame size must be even, %dx%d given", c.Width, c.Height)
	}
	if _, ok := validHWAccels[c.HWAccel]; !ok {
		return fmt.Errorf("video.Config: invalid hwaccel '%s'", c.HWAccel)
	}
	if c.MaxFrameAge < 0 {
		return fmt.Errorf("video.Config: maxFrameAge must not be negative: %s", c.MaxFrameAge)
	}
	return nil
}

// Args builds the ffmpeg command line: H.264 on stdin, raw BGR24 on stdout.
func (c *Config) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	if c.HWAccel != HWAccelNone {
		args = append(args, "-hwaccel", c.HWAccel.String())
	}

	args = append(args,
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-f", "h264",
		"-i", "pipe:0",
		"-pix_fmt", "bgr24",
		"-s", strconv.Itoa(c.Width)+"x"+strconv.Itoa(c.Height),
		"-f", "rawvideo",
		"pipe:1",
	)

	return args
}
