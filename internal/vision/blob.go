// Package vision holds the OpenCV side of the pilot: colour blob detection
// and the preview window.
package vision

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// HSV is a colour in OpenCV's 8-bit HSV space: H in [0,180), S and V in [0,255].
type HSV [3]float64

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(c[0], c[1], c[2], 0)
}

// BlobConfig configures the colour threshold pipeline.
type BlobConfig struct {
	Lower           HSV `yaml:"lower" json:"lower"`
	Upper           HSV `yaml:"upper" json:"upper"`
	BlurKernel      int `yaml:"blurKernel" json:"blurKernel"`           // Gaussian kernel size, odd
	MorphIterations int `yaml:"morphIterations" json:"morphIterations"` // Erode then dilate passes
}

// DefaultBlobConfig tracks a green target.
func DefaultBlobConfig() BlobConfig {
	return BlobConfig{
		Lower:           HSV{40, 55, 30},
		Upper:           HSV{110, 192, 214},
		BlurKernel:      15,
		MorphIterations: 2,
	}
}

func (c *BlobConfig) Validate() error {
	limits := HSV{180, 255, 255}
	for i := range c.Lower {
		if c.Lower[i] < 0 || c.Upper[i] > limits[i] || c.Lower[i] > c.Upper[i] {
			return fmt.Errorf("vision.BlobConfig: invalid HSV range %v..%v", c.Lower, c.Upper)
		}
	}
	if c.BlurKernel < 0 || (c.BlurKernel > 0 && c.BlurKernel%2 == 0) {
		return fmt.Errorf("vision.BlobConfig: blurKernel must be odd, %d given", c.BlurKernel)
	}
	if c.MorphIterations < 0 {
		return fmt.Errorf("vision.BlobConfig: morphIterations must not be negative")
	}
	return nil
}

// WithLogger sets the logger for the detector
func WithLogger(logger *slog.Logger) func(*BlobDetector) {
	return func(d *BlobDetector) {
		d.logger = logger.With(slog.String("component", "vision"))
	}
}

// BlobDetector finds regions of the configured colour. Frames are resized
// to the tracking geometry first so boxes are in geometry pixels.
type BlobDetector struct {
	geometry target.Geometry
	config   BlobConfig
	kernel   gocv.Mat
	logger   *slog.Logger
}

func NewBlobDetector(geometry target.Geometry, config BlobConfig, options ...func(*BlobDetector)) *BlobDetector {
	d := BlobDetector{
		geometry: geometry,
		config:   config,
		kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Observe reports the largest region above the minimum area, or None.
func (d *BlobDetector) Observe(frame video.Frame) (target.Observation, error) {
	regions, err := d.Regions(frame)
	if err != nil {
		return target.None(), err
	}
	return target.FromRegions(regions, d.geometry.MinArea()), nil
}

// Regions returns every external contour of the colour mask, in contour
// order.
func (d *BlobDetector) Regions(frame video.Frame) ([]target.Region, error) {
	if !frame.Valid() {
		return nil, fmt.Errorf("invalid frame %dx%d with %d bytes", frame.Width, frame.Height, len(frame.Data))
	}

	src, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("wrapping frame: %w", err)
	}
	defer src.Close()

	mask := d.mask(src)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]target.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		rect := gocv.BoundingRect(contour)

		regions = append(regions, target.Region{
			Box: target.BBox{
				X: rect.Min.X,
				Y: rect.Min.Y,
				W: rect.Dx(),
				H: rect.Dy(),
			},
			Area: gocv.ContourArea(contour),
		})
	}

	return regions, nil
}

// mask resizes, blurs and thresholds the frame, then removes speckles with
// an opening.
func (d *BlobDetector) mask(src gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(d.geometry.Width, d.geometry.Height), 0, 0, gocv.InterpolationLinear)

	if k := d.config.BlurKernel; k > 0 {
		gocv.GaussianBlur(resized, &resized, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(resized, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, d.config.Lower.scalar(), d.config.Upper.scalar(), &mask)

	for i := 0; i < d.config.MorphIterations; i++ {
		gocv.Erode(mask, &mask, d.kernel)
	}
	for i := 0; i < d.config.MorphIterations; i++ {
		gocv.Dilate(mask, &mask, d.kernel)
	}

	return mask
}

func (d *BlobDetector) Close() error {
	return d.kernel.Close()
}
