package app

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
)

// AxisStats is the distribution of the commands sent on one axis.
type AxisStats struct {
	Name   string
	Mean   float64
	StdDev float64
	Active float64 // Fraction of cycles with a non-zero command
}

// Summary aggregates a recorded flight.
type Summary struct {
	Session      *flightlog.Session
	Start        time.Time
	End          time.Time
	Cycles       int
	FlyingCycles int
	Frames       int
	Detections   int
	BatteryStart int
	BatteryEnd   int
	MaxHeight    float64
	Axes         []AxisStats
	Gestures     map[string]int
	Notices      map[string]int
	Events       []flightlog.Event
}

func (s *Summary) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Summarize computes the summary of the cycles and events of a session.
func Summarize(session *flightlog.Session, cycles []flightlog.Cycle, events []flightlog.Event) *Summary {
	s := Summary{
		Session:  session,
		Cycles:   len(cycles),
		Gestures: make(map[string]int),
		Notices:  make(map[string]int),
		Events:   events,
	}
	if len(cycles) == 0 {
		return &s
	}

	s.Start = cycles[0].Timestamp
	s.End = cycles[len(cycles)-1].Timestamp
	s.BatteryStart = cycles[0].Battery
	s.BatteryEnd = cycles[len(cycles)-1].Battery

	axes := make([][]float64, 4)
	for i := range axes {
		axes[i] = make([]float64, len(cycles))
	}
	heights := make([]float64, len(cycles))

	for i, c := range cycles {
		if c.Flying {
			s.FlyingCycles++
		}
		if c.HasFrame {
			s.Frames++
		}
		if c.Kind != "none" {
			s.Detections++
		}
		if c.Gesture != "" {
			s.Gestures[c.Gesture]++
		}
		if c.Notice != "" {
			s.Notices[c.Notice]++
		}

		axes[0][i] = float64(c.LR)
		axes[1][i] = float64(c.FB)
		axes[2][i] = float64(c.UD)
		axes[3][i] = float64(c.Yaw)
		heights[i] = float64(c.Height)
	}

	s.MaxHeight = floats.Max(heights)

	for i, name := range []string{"lr", "fb", "ud", "yaw"} {
		mean, std := stat.MeanStdDev(axes[i], nil)
		if math.IsNaN(std) { // a single cycle
			std = 0
		}
		s.Axes = append(s.Axes, AxisStats{
			Name:   name,
			Mean:   mean,
			StdDev: std,
			Active: float64(len(cycles)-floats.Count(isZero, axes[i])) / float64(len(cycles)),
		})
	}

	return &s
}

func isZero(v float64) bool {
	return v == 0
}

// Print writes the summary in a human-readable form.
func (s *Summary) Print(w io.Writer, loc *time.Location) error {
	var b strings.Builder

	if s.Session != nil {
		fmt.Fprintf(&b, "Session %d (%s), %s mode\n", s.Session.ID, s.Session.UUID, s.Session.Mode)
		fmt.Fprintf(&b, "Started: %s (%s)\n", s.Session.StartTime.In(loc).Format(time.DateTime), humanize.Time(s.Session.StartTime))
	}

	if s.Cycles == 0 {
		b.WriteString("No control cycles recorded\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Flight: %s to %s, %s\n",
		s.Start.In(loc).Format(time.TimeOnly), s.End.In(loc).Format(time.TimeOnly), s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Cycles: %s, %s flying, %s with video, %s with a detection\n",
		humanize.Comma(int64(s.Cycles)), percent(s.FlyingCycles, s.Cycles), percent(s.Frames, s.Cycles), percent(s.Detections, s.Cycles))
	fmt.Fprintf(&b, "Battery: %d%% to %d%%, %d%% used\n", s.BatteryStart, s.BatteryEnd, s.BatteryStart-s.BatteryEnd)
	fmt.Fprintf(&b, "Max height: %s cm\n", humanize.FtoaWithDigits(s.MaxHeight, 0))

	b.WriteString("Commands:\n")
	for _, a := range s.Axes {
		fmt.Fprintf(&b, "  %-4s mean %7s  stddev %6s  active %s\n",
			a.Name, humanize.FtoaWithDigits(a.Mean, 2), humanize.FtoaWithDigits(a.StdDev, 2), humanize.FtoaWithDigits(a.Active*100, 1)+"%")
	}

	writeHistogram(&b, "Gestures", s.Gestures)
	writeHistogram(&b, "Notices", s.Notices)

	if len(s.Events) > 0 {
		b.WriteString("Events:\n")
		for _, e := range s.Events {
			fmt.Fprintf(&b, "  %s  %-8s battery %3d%%  height %4d cm", e.Timestamp.In(loc).Format(time.TimeOnly), e.Kind, e.Battery, e.Height)
			if e.Detail != "" {
				fmt.Fprintf(&b, "  %s", e.Detail)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// writeHistogram lists the counts most frequent first.
func writeHistogram(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	keys := slices.SortedFunc(maps.Keys(counts), func(x, y string) int {
		if c := cmp.Compare(counts[y], counts[x]); c != 0 {
			return c
		}
		return strings.Compare(x, y)
	})

	fmt.Fprintf(b, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(b, "  %-32s %s\n", k, humanize.Comma(int64(counts[k])))
	}
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(float64(n)*100/float64(total), 1) + "%"
}

// PrintSessions writes one line per recorded session.
func PrintSessions(w io.Writer, sessions []*flightlog.Session, loc *time.Location) error {
	if len(sessions) == 0 {
		_, err := io.WriteString(w, "No sessions recorded\n")
		return err
	}

	var b strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&b, "%4d  %s  %-7s  %s (%s)\n",
			s.ID, s.UUID, s.Mode, s.StartTime.In(loc).Format(time.DateTime), humanize.Time(s.StartTime))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
