package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/hub"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// offerTimeout bounds ICE gathering for one offer.
const offerTimeout = 10 * time.Second

// ColorState is the selected overlay color.
type ColorState struct {
	Color   string `json:"color"`   // #rrggbbaa
	Encoded string `json:"encoded"` // model channel order
	Version uint64 `json:"version"`
}

// Status is the /api/status response.
type Status struct {
	Facing   string      `json:"facing"`
	Session  string      `json:"session"`
	Color    ColorState  `json:"color"`
	Frames   hub.Stats   `json:"frames"`
	WebRTC   PeerStats   `json:"webrtc"`
	Shown    uint64      `json:"shown"`
	Failed   uint64      `json:"failed"`
	Pipeline interface{} `json:"pipeline,omitempty"`
}

// ColorRequest selects a new overlay color. Alpha overrides the hex alpha.
type ColorRequest struct {
	Color string   `json:"color"`
	Alpha *float64 `json:"alpha,omitempty"`
}

// CameraRequest switches the active camera.
type CameraRequest struct {
	Facing string `json:"facing"`
}

func (s *Server) colorState() ColorState {
	enc := s.tint.Current()
	return ColorState{Color: tint.Hex(enc), Encoded: enc.String(), Version: s.tint.Version()}
}

// handleStatus returns the current facing, color and counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Facing:  s.cam.Facing().String(),
		Session: s.cam.SessionID(),
		Color:   s.colorState(),
		Frames:  s.frames.Stats(),
		WebRTC:  s.peers.Stats(),
		Shown:   s.shown.Load(),
		Failed:  s.failed.Load(),
	}
	if s.StatsFunc != nil {
		st.Pipeline = s.StatsFunc()
	}
	return c.JSON(st)
}

// handleGetColor returns the selected color
func (s *Server) handleGetColor(c *fiber.Ctx) error {
	return c.JSON(s.colorState())
}

// handleSetColor selects a color. An invalid color keeps the previous one.
func (s *Server) handleSetColor(c *fiber.Ctx) error {
	var req ColorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	col, alpha, err := tint.ParseHex(req.Color)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if err := s.tint.Select(col, alpha); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.log.Info("color selected", "color", tint.Hex(s.tint.Current()))
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGetCamera returns the active facing and capture config
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"facing":  s.cam.Facing().String(),
		"session": s.cam.SessionID(),
		"config":  s.cam.GetConfigJSON(),
	})
}

// handleSwitchCamera switches to the requested facing
func (s *Server) handleSwitchCamera(c *fiber.Ctx) error {
	var req CameraRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	facing, err := camera.ParseFacing(req.Facing)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.cam.Switch(facing); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, camera.ErrDeviceUnavailable):
			status = fiber.StatusNotFound
		case errors.Is(err, camera.ErrNotRunning):
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCameraConfig applies a preset or individual capture settings
func (s *Server) handleCameraConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.cam.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.cam.GetConfigJSON())
}

// handleOffer answers a WebRTC offer; frames follow on the "frames" channel
func (s *Server) handleOffer(c *fiber.Ctx) error {
	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil || offer.SDP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session description"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), offerTimeout)
	defer cancel()

	answer, err := s.peers.Answer(ctx, offer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(answer)
}

// handleFramesWS streams encoded frames to one websocket client
func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.frames, c).Run()
}
