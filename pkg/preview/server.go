// Package preview serves a camera over HTTP: status and config endpoints,
// JPEG snapshots, a websocket JPEG stream and Prometheus metrics.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-jetcam/pkg/camera"
	"github.com/teslashibe/go-jetcam/pkg/hub"
)

const (
	// DefaultQuality is the JPEG quality used when Config.Quality is 0.
	DefaultQuality = 80

	// retryDelay is the pause after a failed read.
	retryDelay = 100 * time.Millisecond

	shutdownTimeout = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Quality is the JPEG quality, 1..100.
	Quality int

	// Logger for server events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Server owns one camera.Source. Only the capture goroutine reads from it;
// reconfiguration stops that goroutine before touching the source.
type Server struct {
	app      *fiber.App
	cfg      Config
	logger   *slog.Logger
	backend  camera.Backend
	manager  *camera.Manager
	frameHub *hub.Hub

	// reconfigure serialises Start, Stop and config changes.
	reconfigure sync.Mutex
	source      *camera.Source
	ctx         context.Context
	stopCapture context.CancelFunc
	captureDone chan struct{}

	// mu guards the fields below, which handlers read.
	mu       sync.RWMutex
	sourceID string
	open     bool
	openErr  error
	latest   []byte
	latestAt time.Time

	framesRead   atomic.Int64
	readFailures atomic.Int64
}

// NewServer creates a server for the camera described by manager. Sources
// are opened through backend when Start runs.
func NewServer(cfg Config, backend camera.Backend, manager *camera.Manager) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Quality == 0 {
		cfg.Quality = DefaultQuality
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		backend:  backend,
		manager:  manager,
		frameHub: hub.New("frames", cfg.Logger),
	}
	manager.OnConfigChange = s.apply

	app := fiber.New(fiber.Config{
		AppName:               "jetcam preview",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)
	api.Get("/presets", s.handlePresets)
	api.Get("/pipeline", s.handlePipeline)
	api.Get("/snapshot", s.handleSnapshot)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the frame broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.frameHub
}

// Start opens the camera and starts capturing. It does not listen; use Run
// for that. The hub and capture goroutine stop when ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.reconfigure.Lock()
	defer s.reconfigure.Unlock()

	if s.ctx != nil {
		return errors.New("preview: already started")
	}
	s.ctx = ctx

	go s.frameHub.Run(ctx)

	if err := s.openLocked(s.manager.GetConfig()); err != nil {
		return err
	}
	s.startCaptureLocked()
	return nil
}

// Stop ends capture and releases the camera.
func (s *Server) Stop() {
	s.reconfigure.Lock()
	defer s.reconfigure.Unlock()

	s.stopCaptureLocked()
	s.releaseLocked()
}

// Run starts the server, listens on Config.Addr and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("preview server shutting down")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("preview: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("preview: listen %s: %w", s.cfg.Addr, err)
	}
}

// apply is the Manager's OnConfigChange hook. It swaps the source for one
// built from cfg, falling back to the previous config if cfg fails to open.
func (s *Server) apply(cfg camera.Config) error {
	s.reconfigure.Lock()
	defer s.reconfigure.Unlock()

	if s.ctx == nil {
		return nil
	}

	var prev camera.Config
	hadSource := s.source != nil
	if hadSource {
		prev = s.source.Config()
	}

	s.stopCaptureLocked()
	s.releaseLocked()

	err := s.openLocked(cfg)
	if err != nil && hadSource {
		s.logger.Warn("reopening previous camera config", "config", prev.String(), "error", err)
		if reErr := s.openLocked(prev); reErr != nil {
			s.logger.Error("previous camera config failed too", "error", reErr)
		}
	}
	if s.source != nil {
		s.startCaptureLocked()
	}
	return err
}

func (s *Server) openLocked(cfg camera.Config) error {
	src := camera.NewSource(cfg, s.backend, s.logger)
	err := src.Open()

	s.mu.Lock()
	s.sourceID = src.ID()
	s.open = err == nil
	s.openErr = err
	s.latest = nil
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.source = src
	return nil
}

func (s *Server) releaseLocked() {
	if s.source == nil {
		return
	}
	s.source.Release()
	s.source = nil

	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *Server) startCaptureLocked() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.stopCapture = cancel
	s.captureDone = done

	src := s.source
	go func() {
		defer close(done)
		s.capture(ctx, src)
	}()
}

func (s *Server) stopCaptureLocked() {
	if s.stopCapture == nil {
		return
	}
	s.stopCapture()
	<-s.captureDone
	s.stopCapture = nil
	s.captureDone = nil
}

// capture reads frames until ctx is done, publishing each as a JPEG. Reads
// are paced to the configured frame rate.
func (s *Server) capture(ctx context.Context, src *camera.Source) {
	var interval time.Duration
	if fps := src.Config().FrameRate; fps > 0 {
		interval = time.Second / time.Duration(fps)
	}

	var buf bytes.Buffer
	next := time.Now()
	for {
		if wait := time.Until(next); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		} else if ctx.Err() != nil {
			return
		}
		next = time.Now().Add(interval)

		frame, ok := src.Read()
		if !ok {
			if n := s.readFailures.Add(1); n%50 == 1 {
				s.logger.Warn("frame read failed", "failures", n)
			}
			next = time.Now().Add(retryDelay)
			continue
		}
		s.framesRead.Add(1)

		buf.Reset()
		if err := frame.EncodeJPEG(&buf, s.cfg.Quality); err != nil {
			s.logger.Error("jpeg encode failed", "error", err)
			continue
		}
		jpeg := bytes.Clone(buf.Bytes())

		s.mu.Lock()
		s.latest = jpeg
		s.latestAt = frame.Captured
		s.mu.Unlock()

		if s.frameHub.ClientCount() > 0 {
			s.frameHub.BroadcastBinary(jpeg)
		}
	}
}

// Snapshot returns the latest JPEG and its capture time, or nil.
func (s *Server) Snapshot() ([]byte, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latestAt
}
