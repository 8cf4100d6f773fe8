package app

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/video"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeadlessConsoleKeys(t *testing.T) {
	c := NewHeadlessConsole(strings.NewReader("w\nq\r\x1b"), discardLogger())

	assert.Equal(t, control.Key('w'), c.Poll(time.Second))
	assert.Equal(t, control.Key('q'), c.Poll(time.Second))
	assert.Equal(t, control.Key(27), c.Poll(time.Second))
	assert.Equal(t, control.KeyNone, c.Poll(10*time.Millisecond))
	assert.Equal(t, control.KeyNone, c.Poll(10*time.Millisecond))
}

func TestHeadlessConsolePollPaces(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	c := NewHeadlessConsole(r, discardLogger())

	start := time.Now()
	assert.Equal(t, control.KeyNone, c.Poll(30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	c.Show(video.Frame{}, false, control.Snapshot{Cycle: 20, Notice: "HEIGHT EXCEEDED"})
}

func TestFirstOf(t *testing.T) {
	a := make(chan error, 1)
	b := make(chan error)

	out := firstOf(a, nil, b)
	a <- errors.New("decoder exited")

	select {
	case err, ok := <-out:
		assert.True(t, ok)
		assert.EqualError(t, err, "decoder exited")
	case <-time.After(5 * time.Second):
		t.Fatal("value not forwarded")
	}

	close(b)
	_, ok := <-out
	assert.False(t, ok)
}

func TestFirstOfClose(t *testing.T) {
	a := make(chan error)
	out := firstOf(a)
	close(a)

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("close not forwarded")
	}
}
