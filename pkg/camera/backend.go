package camera

// Property identifies a capture property set on a USB handle.
type Property int

const (
	// PropFrameWidth requests a frame width in pixels.
	PropFrameWidth Property = iota
	// PropFrameHeight requests a frame height in pixels.
	PropFrameHeight
	// PropFPS requests a capture frame rate.
	PropFPS
)

// String implements fmt.Stringer.
func (p Property) String() string {
	switch p {
	case PropFrameWidth:
		return "frame_width"
	case PropFrameHeight:
		return "frame_height"
	case PropFPS:
		return "fps"
	default:
		return "unknown"
	}
}

// Backend is the capture subsystem that hands out device handles.
// Implementations: opencv.Backend (gocv) and MockBackend.
type Backend interface {
	// Name returns the backend name (e.g., "opencv", "mock").
	Name() string

	// OpenPipeline acquires a handle from a hardware pipeline descriptor.
	OpenPipeline(descriptor string) (Handle, error)

	// OpenDevice acquires a handle for a plain device index.
	OpenDevice(device int) (Handle, error)
}

// Handle is an acquired camera. A Source owns at most one and never shares it.
type Handle interface {
	// Set requests a property value. It is fire-and-forget: the driver may
	// ignore or round the value and nothing is reported back.
	Set(prop Property, value float64)

	// IsOpened reports whether the handle is ready to deliver frames.
	IsOpened() bool

	// Read blocks until the next frame is available. It returns false on
	// end of stream or device loss.
	Read() (*Frame, bool)

	// Release frees the device.
	Release() error
}
