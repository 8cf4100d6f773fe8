// Package hud draws the pilot overlay: the dead-zone, the tracked target,
// flight status and notices on top of the camera frame.
package hud

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/gift"
	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/target"
)

const (
	dpi             = 72.0
	defaultFontSize = 16.0
	spacing         = 1.3
	margin          = 8
	lineWidth       = 2
)

var (
	colorDeadZone = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorFar      = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	colorClose    = color.RGBA{R: 0, G: 220, B: 0, A: 255}
	colorText     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorWarning  = color.RGBA{R: 255, G: 40, B: 40, A: 255}
)

type line struct {
	text string
	c    color.Color
}

type Config struct {
	Mirror   bool    `yaml:"mirror" json:"mirror"`     // Flip the view horizontally, for gesture control
	FontSize float64 `yaml:"fontSize" json:"fontSize"` // Text size in points
}

// Renderer composes the overlay at the tracking geometry, so target boxes
// map onto the view one to one.
type Renderer struct {
	geometry target.Geometry
	config   Config
	context  *freetype.Context
	face     font.Face
	resize   *gift.GIFT
}

func New(geometry target.Geometry, config Config) (*Renderer, error) {
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)

	filters := []gift.Filter{
		gift.Resize(geometry.Width, geometry.Height, gift.LinearResampling),
	}
	if config.Mirror {
		filters = append(filters, gift.FlipHorizontal())
	}

	return &Renderer{
		geometry: geometry,
		config:   config,
		context:  ctx,
		face: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
		resize: gift.New(filters...),
	}, nil
}

// Render draws the overlay for a cycle. A nil src renders on black.
func (r *Renderer) Render(src image.Image, snap control.Snapshot) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.geometry.Width, r.geometry.Height))
	if src != nil {
		r.resize.Draw(img, src)
	} else {
		draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	}

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, control.Snapshot) error
	}{
		{"drawing dead-zone", r.drawDeadZone},
		{"drawing target", r.drawTarget},
		{"drawing status", r.drawStatus},
		{"drawing notice", r.drawNotice},
	}
	for _, op := range ops {
		if err := op.fn(img, snap); err != nil {
			return nil, fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return img, nil
}

func (r *Renderer) Close() error {
	return r.face.Close()
}

func (r *Renderer) drawDeadZone(img *image.RGBA, _ control.Snapshot) error {
	cx, cy := r.geometry.Center()
	dx, dy := r.geometry.DeadZoneX(), r.geometry.DeadZoneY()

	rect := image.Rect(int(cx-dx), int(cy-dy), int(cx+dx), int(cy+dy))
	strokeRect(img, rect, colorDeadZone)
	return nil
}

func (r *Renderer) drawTarget(img *image.RGBA, snap control.Snapshot) error {
	obs := snap.Observation
	if obs.Kind != target.KindBlob {
		return nil
	}

	box := obs.Box
	x := box.X
	if r.config.Mirror {
		x = r.geometry.Width - box.X - box.W
	}

	c := colorFar
	if r.geometry.IsClose(box) {
		c = colorClose
	}

	rect := image.Rect(x, box.Y, x+box.W, box.Y+box.H)
	strokeRect(img, rect, c)

	// centre mark
	bx, by := rect.Min.X+box.W/2, rect.Min.Y+box.H/2
	draw.Draw(img, image.Rect(bx-3, by-3, bx+3, by+3), image.NewUniform(c), image.Point{}, draw.Src)

	return nil
}

func (r *Renderer) drawStatus(img *image.RGBA, snap control.Snapshot) error {
	battery := fmt.Sprintf("Battery: %d%%", snap.Battery)
	height := fmt.Sprintf("Height: %s m", humanize.FtoaWithDigits(float64(snap.Height)/100, 2))

	lines := []line{
		{battery, colorText},
		{height, colorText},
		{fmt.Sprintf("Mode: %s (%s)", snap.State.Mode, flying(snap.State.Flying)), colorText},
		{"Target: " + r.describe(snap.Observation), colorText},
		{"Command: " + snap.Command.String(), colorText},
		{"Cycle: " + humanize.Comma(int64(snap.Cycle)), colorText},
	}
	if snap.Telemetry != nil && snap.Telemetry.BatteryLow {
		lines[0].c = colorWarning
	}
	if !snap.HasFrame {
		lines = append(lines, line{"NO VIDEO", colorWarning})
	}

	pt := freetype.Pt(margin, margin+r.lineHeight())
	for _, l := range lines {
		r.context.SetSrc(image.NewUniform(l.c))
		if _, err := r.context.DrawString(l.text, pt); err != nil {
			return fmt.Errorf("drawing '%s': %w", l.text, err)
		}
		pt.Y += r.context.PointToFixed(r.config.FontSize * spacing)
	}

	return nil
}

func (r *Renderer) drawNotice(img *image.RGBA, snap control.Snapshot) error {
	if snap.Notice == "" {
		return nil
	}

	width := font.MeasureString(r.face, snap.Notice).Round()
	x := (img.Bounds().Dx() - width) / 2
	y := img.Bounds().Dy() - margin - r.face.Metrics().Descent.Round()

	r.context.SetSrc(image.NewUniform(colorWarning))
	if _, err := r.context.DrawString(snap.Notice, freetype.Pt(x, y)); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) describe(obs target.Observation) string {
	switch obs.Kind {
	case target.KindBlob:
		distance := "far"
		if r.geometry.IsClose(obs.Box) {
			distance = "close"
		}
		return fmt.Sprintf("%dx%d at (%d,%d), %s", obs.Box.W, obs.Box.H, obs.Box.X, obs.Box.Y, distance)
	case target.KindGesture:
		return obs.Gesture.String()
	default:
		return "none"
	}
}

func (r *Renderer) lineHeight() int {
	m := r.face.Metrics()
	return (m.Ascent + m.Descent).Round()
}

func flying(f bool) string {
	if f {
		return "flying"
	}
	return "landed"
}

func strokeRect(img *image.RGBA, rect image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+lineWidth),
		image.Rect(rect.Min.X, rect.Max.Y-lineWidth, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+lineWidth, rect.Max.Y),
		image.Rect(rect.Max.X-lineWidth, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}
