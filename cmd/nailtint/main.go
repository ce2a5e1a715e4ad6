// nailtint - live nail color overlay
//
// Captures camera frames, segments nails with an ONNX model and streams the
// tinted overlay to browsers (websocket / WebRTC) and optionally a local window.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/teslashibe/go-nailtint/internal/config"
	"github.com/teslashibe/go-nailtint/internal/log"
	"github.com/teslashibe/go-nailtint/pkg/app"
	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/camera/device"
	"github.com/teslashibe/go-nailtint/pkg/pipeline"
	"github.com/teslashibe/go-nailtint/pkg/segment"
	"github.com/teslashibe/go-nailtint/pkg/segment/dnn"
)

// OpenCV windows must be driven from the main OS thread.
func init() {
	runtime.LockOSThread()
}

type options struct {
	logLevel  string
	synthetic bool
	window    bool
}

func main() {
	cfg, opts := parseFlags()
	log.Init(opts.logLevel)
	logger := log.L()

	if err := cfg.LoadEnvConfig(); err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	// Flags win over the environment.
	applyFlags(&cfg)

	mcfg := dnn.DefaultConfig()
	mcfg.ModelPath = cfg.ModelPath
	mcfg.Side = cfg.Frame.Side
	model := dnn.New(mcfg)
	deps := app.Deps{Model: model, Open: device.Open}
	if opts.synthetic {
		deps.Open = camera.PatternOpener([3]uint8{32, 24, 20}, [3]uint8{230, 190, 170}, camera.Back, camera.Front)
	}

	var win *window
	if opts.window {
		win = newWindow("nailtint")
		defer win.Close()
		deps.Displays = []pipeline.Display{win}
		cfg.ExternalPresenter = true
	}

	a, err := app.New(cfg, deps, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if err := a.Init(); err != nil {
		if errors.Is(err, segment.ErrModelLoad) {
			logger.Error("model failed to load", "path", cfg.ModelPath, "error", err)
		} else {
			logger.Error("initialization failed", "error", err)
		}
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if win != nil {
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			if err := a.Run(ctx); err != nil {
				logger.Error("runtime error", "error", err)
				cancel()
			}
		}()
		win.Loop(ctx, a.Presenter(), cancel)
		cancel()
		<-runDone
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}

var (
	flagModel  = flag.String("model", "", "Segmentation model path (overrides NAILTINT_MODEL)")
	flagPort   = flag.String("port", "", "HTTP port (overrides NAILTINT_PORT)")
	flagColor  = flag.String("color", "", "Initial overlay color, #rrggbb or #rrggbbaa")
	flagFacing = flag.String("facing", "", "Initial camera: back or front")
	flagPreset = flag.String("preset", "", "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	flagFormat = flag.String("format", "", "Frame encoding for viewers: png or jpeg")
	flagBare   = flag.Bool("overlay-only", false, "Send viewers the overlay without the camera picture")
)

// parseFlags parses command line flags and returns configuration.
func parseFlags() (app.Config, options) {
	var opts options
	flag.StringVar(&opts.logLevel, "log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.synthetic, "synthetic", false, "Use a generated test pattern instead of cameras")
	flag.BoolVar(&opts.window, "window", false, "Show the overlay in a local OpenCV window")
	flag.Parse()

	cfg := app.DefaultConfig()
	if *flagPreset != "" {
		if p := camera.GetPreset(*flagPreset); p != nil {
			cfg.Camera = *p
		}
	}
	return cfg, opts
}

func applyFlags(cfg *app.Config) {
	if *flagModel != "" {
		cfg.ModelPath = *flagModel
	}
	if *flagPort != "" {
		cfg.Web.Port = *flagPort
	}
	if *flagColor != "" {
		cfg.Color = *flagColor
	}
	if *flagFormat != "" {
		cfg.Web.Format = *flagFormat
	}
	if *flagBare {
		cfg.Web.Preview = false
	}
	if *flagFacing != "" {
		if f, err := camera.ParseFacing(*flagFacing); err == nil {
			cfg.Camera.Facing = f
		}
	}
}
