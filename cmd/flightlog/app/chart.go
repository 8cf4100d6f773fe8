package app

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
)

const (
	chartWidth  = 14 * vg.Inch
	chartHeight = 9 * vg.Inch
)

var (
	colorLR      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorFB      = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorUD      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorYaw     = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorBattery = color.RGBA{R: 148, G: 103, B: 189, A: 255}
	colorHeight  = color.RGBA{R: 23, G: 190, B: 207, A: 255}
)

type series struct {
	name  string
	color color.Color
	value func(c *flightlog.Cycle) float64
}

// RenderTimeline draws the commanded velocities above the battery and
// height of the flight, against seconds since the first cycle.
func RenderTimeline(w io.Writer, format ImageFormat, title string, cycles []flightlog.Cycle) error {
	if len(cycles) == 0 {
		return fmt.Errorf("no cycles to plot")
	}

	commands, err := timelinePlot(title, "Command", cycles, []series{
		{"lr", colorLR, func(c *flightlog.Cycle) float64 { return float64(c.LR) }},
		{"fb", colorFB, func(c *flightlog.Cycle) float64 { return float64(c.FB) }},
		{"ud", colorUD, func(c *flightlog.Cycle) float64 { return float64(c.UD) }},
		{"yaw", colorYaw, func(c *flightlog.Cycle) float64 { return float64(c.Yaw) }},
	})
	if err != nil {
		return fmt.Errorf("plotting commands: %w", err)
	}

	state, err := timelinePlot("", "Battery (%) / Height (cm)", cycles, []series{
		{"battery", colorBattery, func(c *flightlog.Cycle) float64 { return float64(c.Battery) }},
		{"height", colorHeight, func(c *flightlog.Cycle) float64 { return float64(c.Height) }},
	})
	if err != nil {
		return fmt.Errorf("plotting state: %w", err)
	}

	plots := [][]*plot.Plot{{commands}, {state}}

	img := vgimg.New(chartWidth, chartHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      5 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	switch format {
	case ImageJPEG:
		_, err = vgimg.JpegCanvas{Canvas: img}.WriteTo(w)
	default:
		_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	}
	if err != nil {
		return fmt.Errorf("encoding chart: %w", err)
	}
	return nil
}

func timelinePlot(title, yLabel string, cycles []flightlog.Cycle, series []series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Seconds"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	start := cycles[0].Timestamp
	for _, s := range series {
		pts := make(plotter.XYs, len(cycles))
		for i := range cycles {
			pts[i] = plotter.XY{
				X: cycles[i].Timestamp.Sub(start).Seconds(),
				Y: s.value(&cycles[i]),
			}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)

		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}
