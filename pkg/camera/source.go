package camera

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Source owns one camera handle. It is either Closed (no handle) or Open
// (exactly one handle that reported IsOpened).
//
// A Source is not safe for concurrent use; Open and Read block the calling
// goroutine until the backend answers.
type Source struct {
	id      string
	cfg     Config
	backend Backend
	logger  *slog.Logger

	handle  Handle
	isOpen  bool
	lastErr error
}

// NewSource creates a closed Source. It performs no I/O and does not
// validate cfg; bad values surface when Open asks the backend.
func NewSource(cfg Config, backend Backend, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	return &Source{
		id:      id,
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("source_id", id, "type", cfg.Kind, "device", cfg.Device),
	}
}

// Open acquires the device. CSI sources are opened from the GStreamer
// pipeline built by CSIPipeline; USB sources by device index, followed by
// width, height and fps property requests.
//
// Every failure, including a panic inside the backend, is returned as an
// *OpenError and leaves the Source closed. Opening an open Source is a no-op.
func (s *Source) Open() (err error) {
	if s.isOpen && s.handle != nil {
		return nil
	}

	defer func() {
		s.lastErr = err
		recordOpen(s.cfg.Kind, err)
	}()

	if s.backend == nil {
		return s.openError(FailNoBackend, ErrNoBackend)
	}

	handle, err := s.acquire()
	if err != nil {
		s.logger.Error("camera open failed", "backend", s.backend.Name(), "error", err)
		return err
	}

	if !handle.IsOpened() {
		if relErr := handle.Release(); relErr != nil {
			s.logger.Debug("release of unopened handle failed", "error", relErr)
		}
		err = s.openError(FailNotReady, ErrNotReady)
		s.logger.Error("camera open failed", "backend", s.backend.Name(), "error", err)
		return err
	}

	s.handle = handle
	s.isOpen = true

	s.logger.Info("camera opened",
		"backend", s.backend.Name(),
		"width", s.cfg.Width,
		"height", s.cfg.Height,
		"fps", s.cfg.FrameRate,
	)
	return nil
}

// acquire asks the backend for a handle and converts panics into errors.
func (s *Source) acquire() (handle Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			if handle != nil {
				_ = handle.Release()
			}
			handle = nil
			err = s.openError(FailPanic, fmt.Errorf("backend panic: %v", r))
		}
	}()

	switch s.cfg.Kind {
	case KindCSI:
		pipeline := CSIPipeline(s.cfg)
		s.logger.Info("opening CSI camera", "pipeline", pipeline)
		handle, err = s.backend.OpenPipeline(pipeline)
	default:
		// Anything that is not CSI is opened by index.
		s.logger.Info("opening USB camera")
		handle, err = s.backend.OpenDevice(s.cfg.Device)
		if err == nil && handle != nil {
			handle.Set(PropFrameWidth, float64(s.cfg.Width))
			handle.Set(PropFrameHeight, float64(s.cfg.Height))
			handle.Set(PropFPS, float64(s.cfg.FrameRate))
		}
	}

	if err != nil {
		if handle != nil {
			_ = handle.Release()
		}
		return nil, s.openError(FailAcquire, err)
	}
	if handle == nil {
		return nil, s.openError(FailNotReady, ErrNotReady)
	}
	return handle, nil
}

func (s *Source) openError(kind FailureKind, cause error) *OpenError {
	return &OpenError{Kind: kind, Source: s.cfg.Kind, Device: s.cfg.Device, Err: cause}
}

// Read returns the next frame. On a closed Source it returns (nil, false)
// without touching the backend. On an open Source it returns whatever the
// handle's Read returned; there is no retry and no timeout.
func (s *Source) Read() (*Frame, bool) {
	if !s.isOpen || s.handle == nil {
		return nil, false
	}

	frame, ok := s.handle.Read()
	recordRead(s.cfg.Kind, ok)
	return frame, ok
}

// Release frees the handle and closes the Source. It is safe to call any
// number of times; only the first call after a successful Open reaches the
// backend.
func (s *Source) Release() {
	if s.handle == nil {
		s.isOpen = false
		return
	}

	if err := s.handle.Release(); err != nil {
		s.logger.Warn("camera release reported error", "error", err)
	}
	s.handle = nil
	s.isOpen = false
	recordRelease(s.cfg.Kind)

	s.logger.Info("camera released")
}

// Close releases the Source and always returns nil. It lets a Source be
// used wherever an io.Closer is expected.
func (s *Source) Close() error {
	s.Release()
	return nil
}

// With opens the Source, runs fn, and releases the Source exactly once when
// fn returns or panics. If Open fails, fn is not called and the open error
// is returned.
func (s *Source) With(fn func(*Source) error) error {
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Release()

	return fn(s)
}

// IsOpen reports whether the Source holds an opened handle.
func (s *Source) IsOpen() bool {
	return s.isOpen
}

// FrameSize returns the configured width and height, open or not.
func (s *Source) FrameSize() (width, height int) {
	return s.cfg.Width, s.cfg.Height
}

// Config returns the configuration the Source was built with.
func (s *Source) Config() Config {
	return s.cfg
}

// ID returns the random identifier assigned at construction.
func (s *Source) ID() string {
	return s.id
}

// Err returns the error from the most recent Open, or nil if it succeeded.
func (s *Source) Err() error {
	return s.lastErr
}

// Ensure Source implements io.Closer.
var _ io.Closer = (*Source)(nil)
