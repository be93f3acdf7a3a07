// Package opencv implements camera.Backend on top of gocv.
//
// CSI pipelines go through OpenCV's GStreamer backend, so OpenCV must be
// built with GStreamer support (the JetPack build is). USB devices use
// whatever capture API OpenCV picks first, normally V4L2.
package opencv

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-jetcam/pkg/camera"
)

// Backend opens gocv VideoCaptures.
type Backend struct{}

// New returns a gocv capture backend.
func New() *Backend {
	return &Backend{}
}

// Name returns "opencv".
func (b *Backend) Name() string {
	return "opencv"
}

// OpenPipeline opens a GStreamer pipeline descriptor.
func (b *Backend) OpenPipeline(descriptor string) (camera.Handle, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(descriptor, gocv.VideoCaptureGstreamer)
	if err != nil {
		closeQuietly(vc)
		return nil, fmt.Errorf("gstreamer capture: %w", err)
	}
	return newHandle(vc), nil
}

// OpenDevice opens a capture device by index.
func (b *Backend) OpenDevice(device int) (camera.Handle, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(device, gocv.VideoCaptureAny)
	if err != nil {
		closeQuietly(vc)
		return nil, fmt.Errorf("device %d capture: %w", device, err)
	}
	return newHandle(vc), nil
}

// closeQuietly frees a capture that failed to open. gocv hands it back
// alongside the error.
func closeQuietly(vc *gocv.VideoCapture) {
	if vc != nil {
		_ = vc.Close()
	}
}

// Handle wraps one gocv.VideoCapture and a reusable Mat.
type Handle struct {
	mu       sync.Mutex
	vc       *gocv.VideoCapture
	mat      gocv.Mat
	released bool
}

func newHandle(vc *gocv.VideoCapture) *Handle {
	return &Handle{
		vc:  vc,
		mat: gocv.NewMat(),
	}
}

// Set requests a capture property. The driver may ignore it.
func (h *Handle) Set(prop camera.Property, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	if p, ok := captureProperty(prop); ok {
		h.vc.Set(p, value)
	}
}

// IsOpened reports whether OpenCV considers the capture usable.
func (h *Handle) IsOpened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released && h.vc.IsOpened()
}

// Read grabs and decodes the next frame into a new camera.Frame.
func (h *Handle) Read() (*camera.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, false
	}
	if ok := h.vc.Read(&h.mat); !ok || h.mat.Empty() {
		return nil, false
	}

	frame, err := FrameFromMat(h.mat)
	if err != nil {
		return nil, false
	}
	return frame, true
}

// Release closes the capture and frees the Mat. Later calls are no-ops.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true

	matErr := h.mat.Close()
	if err := h.vc.Close(); err != nil {
		return err
	}
	return matErr
}

func captureProperty(p camera.Property) (gocv.VideoCaptureProperties, bool) {
	switch p {
	case camera.PropFrameWidth:
		return gocv.VideoCaptureFrameWidth, true
	case camera.PropFrameHeight:
		return gocv.VideoCaptureFrameHeight, true
	case camera.PropFPS:
		return gocv.VideoCaptureFPS, true
	default:
		return 0, false
	}
}

// FrameFromMat copies an 8-bit Mat into a BGR camera.Frame. Gray and BGRA
// Mats are converted; anything else is rejected.
func FrameFromMat(mat gocv.Mat) (*camera.Frame, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}

	src := mat
	switch mat.Type() {
	case gocv.MatTypeCV8UC3:
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC4:
		code := gocv.ColorGrayToBGR
		if mat.Type() == gocv.MatTypeCV8UC4 {
			code = gocv.ColorBGRAToBGR
		}
		converted := gocv.NewMat()
		defer converted.Close()
		gocv.CvtColor(mat, &converted, code)
		if converted.Empty() {
			return nil, fmt.Errorf("convert %v to BGR failed", mat.Type())
		}
		src = converted
	default:
		return nil, fmt.Errorf("unsupported mat type %v", mat.Type())
	}

	if !src.IsContinuous() {
		cloned := src.Clone()
		defer cloned.Close()
		src = cloned
	}

	pix := src.ToBytes()
	return &camera.Frame{
		Width:    src.Cols(),
		Height:   src.Rows(),
		Pix:      pix,
		Captured: time.Now(),
	}, nil
}

// FrameToMat copies a Frame into a new CV_8UC3 Mat. On success the caller
// must Close it.
func FrameToMat(f *camera.Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty frame")
	}
	// NewMatFromBytes shares f.Pix.
	view, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix[:f.Height*f.Stride()])
	if err != nil {
		return gocv.Mat{}, err
	}
	defer view.Close()
	return view.Clone(), nil
}

var _ camera.Backend = (*Backend)(nil)
var _ camera.Handle = (*Handle)(nil)
