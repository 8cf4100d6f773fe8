package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath     string
	SessionID  int64
	List       bool
	OutputFile string
	Format     ImageFormat
	StartTime  *time.Time
	EndTime    *time.Time
	TimeZone   *time.Location
	Out        io.Writer
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		TimeZone: time.Local,
		Out:      os.Stdout,
	}
}

// NewConfigFromCLI parses the command line flags.
func NewConfigFromCLI() (*Config, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, from, to, tz string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.BoolVar(&c.List, "list", false, "List the recorded sessions and exit")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the timeline chart, no chart is rendered when empty")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Chart image format. [png, jpeg]")
	fs.StringVar(&from, "from", "", "Only cycles recorded at or after this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Only cycles recorded at or before this time (RFC 3339)")
	fs.StringVar(&tz, "tz", "", "Time zone of the printed times, the local zone when empty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if !c.List && c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.StartTime, err = parseTime("from", from); err == nil {
		if c.EndTime, err = parseTime("to", to); err == nil && tz != "" {
			if c.TimeZone, err = time.LoadLocation(tz); err != nil {
				err = fmt.Errorf("invalid time zone: %w", err)
			}
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if c.OutputFile != "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}

func parseTime(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return &t, nil
}
