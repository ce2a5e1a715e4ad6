package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/handoff"
	"github.com/teslashibe/go-nailtint/pkg/pipeline"
	"github.com/teslashibe/go-nailtint/pkg/render"
	"github.com/teslashibe/go-nailtint/pkg/segment"
	"github.com/teslashibe/go-nailtint/pkg/tint"
	"github.com/teslashibe/go-nailtint/pkg/web"
)

// Deps are the platform-specific pieces. cmd/nailtint provides OpenCV
// implementations; tests provide mocks.
type Deps struct {
	Model segment.Model
	Open  camera.OpenFunc

	// Displays are shown in addition to the web server.
	Displays []pipeline.Display
}

// App is the running service.
type App struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	invoker   *segment.Invoker
	color     *tint.Selection
	slot      *handoff.Slot[*render.Oriented]
	pipe      *pipeline.Pipeline
	manager   *camera.Manager
	server    *web.Server
	presenter *pipeline.Presenter
}

// New validates cfg and creates the app. Nothing is loaded until Init.
func New(cfg Config, deps Deps, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Model == nil || deps.Open == nil {
		return nil, errors.New("app: model and camera opener are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, deps: deps, log: logger}, nil
}

// Init loads the model and builds every component.
// A model that fails to load is returned as *segment.FatalConfigError.
func (a *App) Init() error {
	invoker, err := segment.NewInvoker(a.deps.Model, a.cfg.Frame.Side, a.log.With("component", "segment"))
	if err != nil {
		return err
	}
	a.invoker = invoker

	norm, err := frame.NewNormalizer(a.cfg.Frame)
	if err != nil {
		return err
	}

	col, alpha, err := tint.ParseHex(a.cfg.Color)
	if err != nil {
		return err
	}
	if a.color, err = tint.NewSelection(col, alpha); err != nil {
		return err
	}

	a.slot = handoff.New[*render.Oriented]()

	// The manager is created before the pipeline needs it as a session
	// reader, so the handler is bound through a closure.
	var pipe *pipeline.Pipeline
	a.manager, err = camera.NewManager(a.cfg.Camera, a.deps.Open, func(raw frame.Raw, info camera.FrameInfo) {
		pipe.HandleFrame(raw, info)
	}, a.log.With("component", "camera"))
	if err != nil {
		return err
	}
	a.manager.OnSwitch = func(from, to camera.Facing) {
		a.slot.Flush()
		a.log.Info("camera switched", "from", from.String(), "to", to.String())
	}

	pipe = pipeline.New(norm, invoker, a.color, a.slot,
		pipeline.WithLogger(a.log.With("component", "pipeline")),
		pipeline.WithSessions(a.manager),
		pipeline.WithPreview(a.cfg.Preview),
	)
	a.pipe = pipe

	a.server, err = web.NewServer(a.cfg.Web, a.color, a.manager, a.log.With("component", "web"))
	if err != nil {
		return err
	}
	a.server.StatsFunc = func() interface{} { return a.pipe.Stats() }

	displays := append(pipeline.Multi{a.server}, a.deps.Displays...)
	a.presenter = pipeline.NewPresenter(a.slot, displays, a.log.With("component", "presenter"))

	a.log.Info("initialized",
		"model", a.deps.Model.Name(),
		"side", a.cfg.Frame.Side,
		"color", tint.Hex(a.color.Current()),
		"facing", a.cfg.Camera.Facing.String(),
	)
	return nil
}

// Run starts capture, the web server and (unless external) presentation.
// Blocks until ctx is cancelled or the web server fails, and returns only
// after the server and presenter goroutines have exited, so Shutdown can
// release the slot and the model safely.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return errors.New("app: Run before Init")
	}
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("app: start camera: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Run(gctx); err != nil {
			return fmt.Errorf("app: web server: %w", err)
		}
		return nil
	})
	if !a.cfg.ExternalPresenter {
		g.Go(func() error {
			return a.presenter.Run(gctx)
		})
	}
	return g.Wait()
}

// Shutdown stops capture and releases every pending frame and the model.
func (a *App) Shutdown() {
	if a.manager != nil {
		a.manager.Stop()
	}
	if a.slot != nil {
		a.slot.Close()
	}
	if a.invoker != nil {
		if err := a.invoker.Close(); err != nil {
			a.log.Warn("close model", "error", err)
		}
	}
	st := segment.Stats()
	a.log.Info("shutdown", "buffers_allocated", st.Allocated, "buffers_live", st.Live)
}

// Color returns the overlay color selection.
func (a *App) Color() *tint.Selection { return a.color }

// Camera returns the capture manager.
func (a *App) Camera() *camera.Manager { return a.manager }

// Pipeline returns the frame pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// Presenter returns the presenter.
func (a *App) Presenter() *pipeline.Presenter { return a.presenter }

// Server returns the web server.
func (a *App) Server() *web.Server { return a.server }
