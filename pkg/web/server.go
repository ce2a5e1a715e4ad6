// Package web serves the control API and streams rendered overlays to
// browsers over websocket and WebRTC data channels.
package web

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/atomic"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/hub"
	"github.com/teslashibe/go-nailtint/pkg/render"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Config holds server configuration.
type Config struct {
	Port       string   `json:"port"`
	Format     string   `json:"format"`  // "png" or "jpeg"
	Quality    int      `json:"quality"` // JPEG quality
	StaticDir  string   `json:"static_dir"`
	ICEServers []string `json:"ice_servers"`

	// Preview sends the overlay drawn over the camera picture. When false
	// only the overlay is sent, for clients that show their own feed.
	Preview bool `json:"preview"`
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Port:    "8080",
		Format:  "png",
		Quality: 80,
		Preview: true,
	}
}

// Camera is the capture control the API drives. camera.Manager implements it.
type Camera interface {
	Switch(facing camera.Facing) error
	Facing() camera.Facing
	SessionID() string
	GetConfigJSON() map[string]interface{}
	UpdateConfig(params map[string]interface{}) error
}

// Server is the HTTP control API and frame streamer. It implements
// pipeline.Display.
type Server struct {
	app  *fiber.App
	cfg  Config
	log  *slog.Logger
	enc  *Encoder
	cam  Camera
	tint *tint.Selection

	frames *hub.Hub
	peers  *Peers
	scene  *image.RGBA // Show scratch; presentation goroutine only

	shown  atomic.Uint64
	failed atomic.Uint64

	// StatsFunc, if set, adds pipeline counters to /api/status.
	StatsFunc func() interface{}
}

// NewServer creates the server and its routes.
func NewServer(cfg Config, sel *tint.Selection, cam Camera, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := NewEncoder(cfg.Format, cfg.Quality)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		log:    logger,
		enc:    enc,
		cam:    cam,
		tint:   sel,
		frames: hub.New("frames", logger),
		peers:  NewPeers(cfg.ICEServers, logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "nailtint",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			app.Static("/", cfg.StaticDir)
		}
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/color", s.handleGetColor)
	api.Post("/color", s.handleSetColor)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSwitchCamera)
	api.Post("/camera/config", s.handleCameraConfig)
	api.Post("/webrtc/offer", s.handleOffer)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s, nil
}

// App returns the fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done. It returns once the listener, the frame hub
// and every WebRTC peer have shut down.
func (s *Server) Run(ctx context.Context) error {
	go s.frames.Run(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.peers.Close()
		if err := s.app.Shutdown(); err != nil {
			s.log.Warn("web shutdown", "error", err)
		}
	}()

	s.log.Info("web server listening", "addr", fmt.Sprintf("http://localhost:%s", s.cfg.Port))
	err := s.app.Listen(":" + s.cfg.Port)
	if ctx.Err() == nil {
		return err
	}
	<-stopped
	<-s.frames.Done()
	return nil
}

// Show encodes img once and sends it to every websocket client and WebRTC
// peer. Nothing is encoded when nobody is watching.
func (s *Server) Show(img *render.Oriented) error {
	if s.frames.ClientCount() == 0 && s.peers.Count() == 0 {
		return nil
	}
	data, err := s.enc.Encode(s.frameImage(img))
	if err != nil {
		s.failed.Inc()
		return err
	}
	s.frames.BroadcastFrame(data)
	s.peers.Send(data)
	s.shown.Inc()
	return nil
}

// frameImage returns the picture sent to viewers for img.
func (s *Server) frameImage(img *render.Oriented) *image.RGBA {
	if !s.cfg.Preview || img.Preview == nil {
		return img.Image
	}
	s.scene = render.Flatten(img, s.scene)
	return s.scene
}

// Frames returns the websocket frame hub.
func (s *Server) Frames() *hub.Hub {
	return s.frames
}
