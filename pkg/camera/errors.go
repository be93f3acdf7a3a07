package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoBackend is returned when a Source has no capture backend.
	ErrNoBackend = errors.New("camera: no capture backend")

	// ErrNotReady is returned when the backend produced a handle that is not
	// opened (missing device, bad pipeline, busy sensor).
	ErrNotReady = errors.New("camera: device not ready")

	// ErrInvalidConfig is returned by Manager for configs it refuses to apply.
	ErrInvalidConfig = errors.New("camera: invalid config")
)

// FailureKind classifies why Open failed.
type FailureKind int

const (
	// FailNoBackend means the Source was built without a backend.
	FailNoBackend FailureKind = iota + 1
	// FailAcquire means the backend returned an error while acquiring.
	FailAcquire
	// FailNotReady means a handle was acquired but reported not opened.
	FailNotReady
	// FailPanic means the backend panicked while acquiring.
	FailPanic
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case FailNoBackend:
		return "no_backend"
	case FailAcquire:
		return "acquire"
	case FailNotReady:
		return "not_ready"
	case FailPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// OpenError is returned by Source.Open.
type OpenError struct {
	// Kind classifies the failure.
	Kind FailureKind

	// Source is the source kind being opened.
	Source SourceKind

	// Device is the sensor id or device index.
	Device int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("camera [%s:%d]: open failed (%s): %v", e.Source, e.Device, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// IsNotReady reports whether the handle was acquired but not usable.
func (e *OpenError) IsNotReady() bool {
	return e.Kind == FailNotReady
}

// KindOf returns the FailureKind of err, or 0 if err is not an *OpenError.
func KindOf(err error) FailureKind {
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}
