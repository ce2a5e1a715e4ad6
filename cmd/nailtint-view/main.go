// nailtint-view - command line viewer for a nailtint server
//
// Connects over websocket (default) or WebRTC, reports frame rate and saves
// the most recent overlay. Can also set the color and switch cameras.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-nailtint/internal/log"
	"github.com/teslashibe/go-nailtint/pkg/viewer"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "nailtint server base URL")
	useRTC := flag.Bool("webrtc", false, "Receive frames over a WebRTC data channel")
	out := flag.String("out", "", "Save the last frame to this file on exit (.png or .jpg)")
	color := flag.String("color", "", "Set the overlay color before viewing")
	alpha := flag.Float64("alpha", -1, "Overlay alpha in [0,1]; negative keeps the color's alpha")
	facing := flag.String("facing", "", "Switch camera before viewing: front or back")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	every := flag.Duration("report", 2*time.Second, "Frame rate report interval")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*level)
	logger := log.Component("viewer")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	ctl := viewer.NewControl(*server)
	if *color != "" {
		if err := ctl.SetColor(ctx, *color, *alpha); err != nil {
			logger.Error("set color", "error", err)
			os.Exit(1)
		}
	}
	if *facing != "" {
		if err := ctl.SwitchCamera(ctx, *facing); err != nil {
			logger.Error("switch camera", "error", err)
			os.Exit(1)
		}
	}
	if st, err := ctl.Status(ctx); err == nil {
		logger.Info("connected", "facing", st.Facing, "color", st.Color.Color)
	} else {
		logger.Warn("status unavailable", "error", err)
	}

	meter := viewer.NewMeter(time.Second)
	go report(ctx, meter, *every)

	if *useRTC {
		rtc, err := viewer.DialRTC(ctx, ctl, meter.Add, logger)
		if err != nil {
			logger.Error("webrtc", "error", err)
			os.Exit(1)
		}
		select {
		case <-ctx.Done():
		case <-rtc.Done():
			logger.Info("data channel closed")
		}
		rtc.Close()
	} else {
		c, err := viewer.Dial(ctx, ctl.FramesURL(), logger)
		if err != nil {
			logger.Error("websocket", "error", err)
			os.Exit(1)
		}
		if err := c.Run(ctx, meter.Add); err != nil {
			logger.Error("stream", "error", err)
		}
		c.Close()
	}

	frames, bytes := meter.Total()
	logger.Info("done", "frames", frames, "bytes", bytes)

	if *out != "" {
		last, ok := meter.Last()
		if !ok {
			logger.Warn("no frame to save")
			return
		}
		if err := imaging.Save(last.Image, *out); err != nil {
			logger.Error("save frame", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("saved last frame", "path", *out)
	}
}

func report(ctx context.Context, m *viewer.Meter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frames, bytes := m.Total()
			log.Info("stream", "fps", m.FPS(now), "frames", frames, "bytes", bytes)
		}
	}
}
