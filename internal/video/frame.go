package video

import (
	"image"
	"image/color"
	"time"
)

// Frame is a decoded picture in packed BGR24, the layout OpenCV expects.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte // Width*Height*3 bytes, row major, B G R
}

// FrameSize returns the number of bytes of a BGR24 frame.
func FrameSize(width, height int) int {
	return width * height * 3
}

// Valid reports whether the buffer matches the dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == FrameSize(f.Width, f.Height)
}

// RGBA converts the frame into an image for drawing.
func (f Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if !f.Valid() {
		return img
	}

	for i, j := 0, 0; i < len(f.Data); i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i+2]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FromImage packs any image into a BGR24 frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	f := Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Data:   make([]byte, FrameSize(b.Dx(), b.Dy())),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.Data[i], f.Data[i+1], f.Data[i+2] = c.B, c.G, c.R
			i += 3
		}
	}
	return f
}
