package app

import (
	"bytes"
	"context"
	"flag"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
	"github.com/roman-kulish/visual-servo/internal/storage"
)

var flightStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testFlight() []flightlog.Cycle {
	cycles := make([]flightlog.Cycle, 6)
	for i := range cycles {
		cycles[i] = flightlog.Cycle{
			Cycle:     uint64(i + 1),
			Timestamp: flightStart.Add(time.Duration(i) * 500 * time.Millisecond),
			Flying:    i > 0,
			Mode:      "auto",
			Battery:   80 - i,
			Height:    i * 20,
			HasFrame:  i != 3,
			Kind:      "gesture",
			Gesture:   "up",
			UD:        30,
		}
	}
	cycles[0].Gesture = "takeoff"
	cycles[0].UD = 0
	cycles[3].Kind = "none"
	cycles[3].Gesture = ""
	cycles[3].UD = 0
	cycles[5].Notice = "HEIGHT EXCEEDED"
	return cycles
}

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("flightlog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	c, err := parseFlags(fs, []string{"-db", "f.sqlite", "-s", "3", "-o", "out", "-f", "JPEG", "-from", "2025-06-01T12:00:00Z", "-tz", "UTC"})
	require.NoError(t, err)

	assert.Equal(t, "f.sqlite", c.DBPath)
	assert.Equal(t, int64(3), c.SessionID)
	assert.Equal(t, ImageFormat(ImageJPEG), c.Format)
	assert.Equal(t, "out.jpeg", c.OutputFile)
	require.NotNil(t, c.StartTime)
	assert.True(t, c.StartTime.Equal(flightStart))
	assert.Nil(t, c.EndTime)
	assert.Equal(t, time.UTC, c.TimeZone)
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"no db", nil, "db path is required"},
		{"no session", []string{"-db", "f", "-s", "0"}, "session id is required"},
		{"format", []string{"-db", "f", "-f", "gif"}, "invalid image format: gif"},
		{"time", []string{"-db", "f", "-to", "yesterday"}, "invalid to time"},
		{"zone", []string{"-db", "f", "-tz", "Mars/Olympus"}, "invalid time zone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("flightlog", flag.ContinueOnError)
			fs.SetOutput(io.Discard)

			_, err := parseFlags(fs, tt.args)
			assert.ErrorContains(t, err, tt.err)
		})
	}

	fs := flag.NewFlagSet("flightlog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c, err := parseFlags(fs, []string{"-db", "f", "-s", "0", "-list"})
	require.NoError(t, err, "listing needs no session")
	assert.Empty(t, c.OutputFile)
}

func TestSummarize(t *testing.T) {
	events := []flightlog.Event{{Timestamp: flightStart, Kind: "takeoff", Battery: 80}}
	s := Summarize(nil, testFlight(), events)

	assert.Equal(t, 6, s.Cycles)
	assert.Equal(t, 5, s.FlyingCycles)
	assert.Equal(t, 5, s.Frames)
	assert.Equal(t, 5, s.Detections)
	assert.Equal(t, 80, s.BatteryStart)
	assert.Equal(t, 75, s.BatteryEnd)
	assert.Equal(t, 100.0, s.MaxHeight)
	assert.Equal(t, 2500*time.Millisecond, s.Duration())
	assert.Equal(t, map[string]int{"takeoff": 1, "up": 4}, s.Gestures)
	assert.Equal(t, map[string]int{"HEIGHT EXCEEDED": 1}, s.Notices)

	require.Len(t, s.Axes, 4)
	ud := s.Axes[2]
	assert.Equal(t, "ud", ud.Name)
	assert.InDelta(t, 20, ud.Mean, 1e-9)
	assert.InDelta(t, 4.0/6.0, ud.Active, 1e-9)
	assert.Zero(t, s.Axes[0].StdDev)

	var b strings.Builder
	require.NoError(t, s.Print(&b, time.UTC))
	out := b.String()
	assert.Contains(t, out, "Flight: 12:00:00 to 12:00:02, 2.5s")
	assert.Contains(t, out, "Cycles: 6, 83.3% flying")
	assert.Contains(t, out, "Battery: 80% to 75%, 5% used")
	assert.Less(t, strings.Index(out, "up"), strings.Index(out, "takeoff"), "most frequent gesture first")
	assert.Contains(t, out, "Events:")
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&flightlog.Session{ID: 2, Mode: "blob", StartTime: flightStart}, nil, nil)

	var b strings.Builder
	require.NoError(t, s.Print(&b, time.UTC))
	assert.Contains(t, b.String(), "Session 2")
	assert.Contains(t, b.String(), "No control cycles recorded")
}

func TestRenderTimeline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTimeline(&buf, ImagePNG, "test", testFlight()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())

	assert.Error(t, RenderTimeline(io.Discard, ImagePNG, "empty", nil))
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "flight.sqlite")

	store := storage.NewSqliteStore(dbPath)
	id, err := store.CreateSession(ctx, "gesture", nil)
	require.NoError(t, err)
	require.NoError(t, store.StoreCycles(ctx, id, testFlight()))
	require.NoError(t, store.StoreEvent(ctx, id, flightlog.Event{Timestamp: flightStart, Kind: "takeoff", Battery: 80}))
	require.NoError(t, store.Close())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	chart := filepath.Join(t.TempDir(), "timeline.png")
	err = Run(ctx, &Config{
		DBPath:     dbPath,
		SessionID:  id,
		OutputFile: chart,
		Format:     ImagePNG,
		TimeZone:   time.UTC,
		Out:        &out,
	}, logger)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "gesture mode")
	assert.Contains(t, out.String(), "Cycles: 6")

	stat, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Positive(t, stat.Size())

	out.Reset()
	require.NoError(t, Run(ctx, &Config{DBPath: dbPath, List: true, TimeZone: time.UTC, Out: &out}, logger))
	assert.Contains(t, out.String(), "gesture")

	err = Run(ctx, &Config{DBPath: filepath.Join(t.TempDir(), "missing.sqlite"), Out: &out}, logger)
	assert.ErrorContains(t, err, "does not exist")
}
