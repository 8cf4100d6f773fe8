package vision

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/hud"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// WithWindowLogger sets the logger for the window
func WithWindowLogger(logger *slog.Logger) func(*Window) {
	return func(w *Window) {
		w.logger = logger.With(slog.String("component", "window"))
	}
}

// Window is the preview console: it shows the overlay and polls the
// keyboard. HighGUI is not thread safe, it must be used from the goroutine
// that created it.
type Window struct {
	window   *gocv.Window
	renderer *hud.Renderer
	logger   *slog.Logger
}

func NewWindow(name string, renderer *hud.Renderer, options ...func(*Window)) *Window {
	w := Window{
		window:   gocv.NewWindow(name),
		renderer: renderer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

// Show renders the snapshot over the frame. Rendering failures are logged,
// the loop does not depend on the display.
func (w *Window) Show(frame video.Frame, ok bool, snap control.Snapshot) {
	if err := w.show(frame, ok, snap); err != nil {
		w.logger.Warn(err.Error())
	}
}

func (w *Window) show(frame video.Frame, ok bool, snap control.Snapshot) error {
	var src image.Image
	if ok && frame.Valid() {
		src = frame.RGBA()
	}

	rgba, err := w.renderer.Render(src, snap)
	if err != nil {
		return fmt.Errorf("rendering overlay: %w", err)
	}

	mat, err := gocv.ImageToMatRGB(rgba)
	if err != nil {
		return fmt.Errorf("converting overlay: %w", err)
	}
	defer mat.Close()

	w.window.IMShow(mat)
	return nil
}

// Poll waits up to timeout for a key press.
func (w *Window) Poll(timeout time.Duration) control.Key {
	ms := int(timeout.Milliseconds())
	if ms < 1 {
		ms = 1
	}

	k := w.window.WaitKey(ms)
	if k < 0 {
		return control.KeyNone
	}
	return control.Key(k & 0xff)
}

func (w *Window) Close() error {
	return w.window.Close()
}
