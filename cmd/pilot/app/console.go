package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// statusEvery is how many cycles pass between two status lines
const statusEvery = 20

// HeadlessConsole runs the pilot without a window: keys are read from a
// terminal, one byte per key, and the cycle status is logged.
type HeadlessConsole struct {
	keys   chan control.Key
	logger *slog.Logger
}

// NewHeadlessConsole starts reading keys from in. Reading stops at EOF.
func NewHeadlessConsole(in io.Reader, logger *slog.Logger) *HeadlessConsole {
	c := HeadlessConsole{
		keys:   make(chan control.Key, 16),
		logger: logger.With(slog.String("component", "console")),
	}

	go c.read(bufio.NewReader(in))

	return &c
}

func (c *HeadlessConsole) read(r *bufio.Reader) {
	defer close(c.keys)

	for {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				c.logger.Warn(fmt.Sprintf("reading keys: %s", err.Error()))
			}
			return
		}
		if b == '\n' || b == '\r' {
			continue
		}

		select {
		case c.keys <- control.Key(b):
		default: // the pilot is not keeping up, drop the key
		}
	}
}

func (c *HeadlessConsole) Show(_ video.Frame, ok bool, snap control.Snapshot) {
	if snap.Notice != "" {
		c.logger.Warn(snap.Notice, slog.Uint64("cycle", snap.Cycle))
	}
	if snap.Cycle%statusEvery != 0 {
		return
	}

	c.logger.Info("status",
		slog.Uint64("cycle", snap.Cycle),
		slog.String("state", snap.State.String()),
		slog.Int("battery", snap.Battery),
		slog.Int("height", snap.Height),
		slog.Bool("video", ok),
		slog.String("observation", snap.Observation.String()),
		slog.String("command", snap.Command.String()),
	)
}

func (c *HeadlessConsole) Poll(timeout time.Duration) control.Key {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case k, ok := <-c.keys:
		if !ok {
			// input is gone, keep pacing the loop
			c.keys = nil
			<-timer.C
			return control.KeyNone
		}
		return k
	case <-timer.C:
		return control.KeyNone
	}
}
