package camera

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"time"
)

// BGRChannels is the channel count of every Frame.
const BGRChannels = 3

// Frame is one decoded image: Height rows of Width pixels, 3 bytes per pixel
// in B, G, R order, no row padding. This is the layout appsink and OpenCV
// produce, so backends can copy straight in.
//
// Frame implements image.Image.
type Frame struct {
	Width    int
	Height   int
	Pix      []byte
	Captured time.Time
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Width:    width,
		Height:   height,
		Pix:      make([]byte, width*height*BGRChannels),
		Captured: time.Now(),
	}
}

// Stride returns the number of bytes per row.
func (f *Frame) Stride() int {
	return f.Width * BGRChannels
}

// Empty reports whether the frame has no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) < f.Width*f.Height*BGRChannels
}

// SetBGR writes one pixel. Out-of-range coordinates are ignored.
func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := y*f.Stride() + x*BGRChannels
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	i := y*f.Stride() + x*BGRChannels
	return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 0xff}
}

// EncodeJPEG writes the frame as a JPEG. quality is clamped to 1..100.
func (f *Frame) EncodeJPEG(w io.Writer, quality int) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return jpeg.Encode(w, f, &jpeg.Options{Quality: quality})
}
