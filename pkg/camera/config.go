// Package camera opens CSI and USB cameras on Jetson-class boards and
// exposes a uniform, blocking frame-read interface.
//
// CSI sensors are opened through a hardware-accelerated GStreamer pipeline
// (nvarguscamerasrc → nvvidconv → videoconvert → appsink). USB cameras are
// opened by plain device index. The capture subsystem itself sits behind the
// Backend interface; see the opencv subpackage for the gocv implementation
// and MockBackend for tests.
package camera

import (
	"fmt"
	"strings"
)

// SourceKind selects how the device is acquired.
type SourceKind string

const (
	// KindCSI opens a CSI sensor through a GStreamer pipeline.
	KindCSI SourceKind = "csi"
	// KindUSB opens a USB camera by device index.
	KindUSB SourceKind = "usb"
)

// ParseSourceKind parses "csi" or "usb", ignoring case and surrounding space.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCSI:
		return KindCSI, nil
	case KindUSB:
		return KindUSB, nil
	default:
		return "", fmt.Errorf("camera: unknown source kind %q (want csi or usb)", s)
	}
}

// Orientation is an nvvidconv flip-method code. Only CSI sources use it.
type Orientation int

const (
	OrientationNone           Orientation = 0 // no transform
	OrientationRotate90CCW    Orientation = 1 // rotate 90° counter-clockwise
	OrientationRotate180      Orientation = 2
	OrientationRotate90CW     Orientation = 3 // rotate 90° clockwise
	OrientationFlipHorizontal Orientation = 4
	OrientationUpperRightDiag Orientation = 5
	OrientationFlipVertical   Orientation = 6
	OrientationUpperLeftDiag  Orientation = 7
)

const maxOrientation = OrientationUpperLeftDiag

// Defaults used by DefaultConfig.
const (
	DefaultWidth     = 1280
	DefaultHeight    = 720
	DefaultFrameRate = 30
)

// Config describes what to acquire. It is a plain value; nothing is checked
// until the backend tries to open the device.
type Config struct {
	Kind        SourceKind  `json:"type" toml:"type"`
	Device      int         `json:"device" toml:"device"`           // sensor-id for CSI, device index for USB
	Width       int         `json:"width" toml:"width"`             // pixels
	Height      int         `json:"height" toml:"height"`           // pixels
	FrameRate   int         `json:"framerate" toml:"framerate"`     // frames per second
	Orientation Orientation `json:"orientation" toml:"orientation"` // CSI only
}

// DefaultConfig returns CSI sensor 0 at 1280x720, 30 fps, no rotation.
func DefaultConfig() Config {
	return Config{
		Kind:        KindCSI,
		Device:      0,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		FrameRate:   DefaultFrameRate,
		Orientation: OrientationNone,
	}
}

// Pipeline returns the GStreamer descriptor for a CSI config.
func (c Config) Pipeline() string {
	return CSIPipeline(c)
}

// String implements fmt.Stringer.
func (c Config) String() string {
	if c.Kind == KindCSI {
		return fmt.Sprintf("csi:%d %dx%d@%d flip=%d", c.Device, c.Width, c.Height, c.FrameRate, c.Orientation)
	}
	return fmt.Sprintf("%s:%d %dx%d@%d", c.Kind, c.Device, c.Width, c.Height, c.FrameRate)
}

// Validate checks the config values against what the sensors can plausibly
// do. Returns a list of problems, or nil if valid.
//
// Source never calls this; it is for callers that accept configs from users.
func (c *Config) Validate() []string {
	var errors []string

	if c.Kind != KindCSI && c.Kind != KindUSB {
		errors = append(errors, "type must be csi or usb")
	}
	if c.Device < 0 {
		errors = append(errors, "device must be non-negative")
	}
	if c.Width < 1 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 1 and %d", MaxWidth))
	}
	if c.Height < 1 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 1 and %d", MaxHeight))
	}
	if c.FrameRate < 1 || c.FrameRate > MaxFrameRate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFrameRate))
	}
	if c.Orientation < OrientationNone || c.Orientation > maxOrientation {
		errors = append(errors, "orientation must be between 0 and 7")
	}

	return errors
}

// Upper bounds used by Validate.
const (
	MaxWidth     = 4096
	MaxHeight    = 4096
	MaxFrameRate = 240
)
