package preview

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-jetcam/pkg/camera"
	"github.com/teslashibe/go-jetcam/pkg/hub"
)

// Status is the body of GET /api/status.
type Status struct {
	SourceID     string     `json:"source_id"`
	Backend      string     `json:"backend"`
	Type         string     `json:"type"`
	Device       int        `json:"device"`
	Open         bool       `json:"open"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	FPS          int        `json:"fps"`
	Orientation  int        `json:"orientation"`
	FramesRead   int64      `json:"frames_read"`
	ReadFailures int64      `json:"read_failures"`
	Clients      int        `json:"clients"`
	LastFrame    *time.Time `json:"last_frame,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Status returns the current server state.
func (s *Server) Status() Status {
	cfg := s.manager.GetConfig()

	s.mu.RLock()
	st := Status{
		SourceID:     s.sourceID,
		Type:         string(cfg.Kind),
		Device:       cfg.Device,
		Open:         s.open,
		Width:        cfg.Width,
		Height:       cfg.Height,
		FPS:          cfg.FrameRate,
		Orientation:  int(cfg.Orientation),
		FramesRead:   s.framesRead.Load(),
		ReadFailures: s.readFailures.Load(),
		Clients:      s.frameHub.ClientCount(),
	}
	if !s.latestAt.IsZero() {
		at := s.latestAt
		st.LastFrame = &at
	}
	if s.openErr != nil {
		st.Error = s.openErr.Error()
	}
	s.mu.RUnlock()

	if s.backend != nil {
		st.Backend = s.backend.Name()
	}
	return st
}

// handleStatus returns the camera and stream state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleGetConfig returns the current camera config
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.manager.GetConfig())
}

// handleUpdateConfig applies a partial update and reopens the camera
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if err := s.manager.UpdateConfig(params); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, camera.ErrInvalidConfig) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(s.manager.GetConfig())
}

// handlePresets lists preset names
func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// handlePipeline returns the GStreamer descriptor for the current config
func (s *Server) handlePipeline(c *fiber.Ctx) error {
	cfg := s.manager.GetConfig()
	if cfg.Kind != camera.KindCSI {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "pipeline only applies to csi cameras",
		})
	}
	return c.SendString(camera.CSIPipeline(cfg))
}

// handleSnapshot returns the latest JPEG frame
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	jpeg, at := s.Snapshot()
	if jpeg == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no frame yet",
		})
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Frame-Time", at.UTC().Format(time.RFC3339Nano))
	return c.Send(jpeg)
}

// handleFramesWS streams binary JPEG frames until the client disconnects
func (s *Server) handleFramesWS(conn *websocket.Conn) {
	client := hub.NewClient(s.frameHub, conn)
	if client == nil {
		return
	}
	client.Run()
}
