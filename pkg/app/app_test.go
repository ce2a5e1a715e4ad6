package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/pipeline"
	"github.com/teslashibe/go-nailtint/pkg/render"
	"github.com/teslashibe/go-nailtint/pkg/segment"
)

var (
	background = [3]uint8{20, 20, 200}
	marker     = [3]uint8{0, 255, 0}
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelPath = "mock"
	cfg.Camera = camera.VGAConfig()
	cfg.Web.Port = "0"
	cfg.ExternalPresenter = true
	return cfg
}

type recordingDisplay struct {
	mu    sync.Mutex
	shown []*render.Oriented
	red   []bool
}

func (d *recordingDisplay) Show(img *render.Oriented) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The image is only valid during Show; record what is needed now.
	c := img.Image.Bounds().Dx() / 2
	o := img.Image.PixOffset(c, c)
	d.red = append(d.red, img.Image.Pix[o] == 255 && img.Image.Pix[o+3] == 255)
	d.shown = append(d.shown, &render.Oriented{Facing: img.Facing, Mirrored: img.Mirrored, Session: img.Session})
	return nil
}

func (d *recordingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

func (d *recordingDisplay) last() (*render.Oriented, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown[len(d.shown)-1], d.red[len(d.red)-1]
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"no model", func(c *Config) { c.ModelPath = "" }, "ModelPath"},
		{"bad color", func(c *Config) { c.Color = "#zzz" }, "Color"},
		{"bad camera", func(c *Config) { c.Camera.Width = 1 }, "Camera"},
		{"bad frame", func(c *Config) { c.Frame.Side = 0 }, "Frame"},
		{"no port", func(c *Config) { c.Web.Port = "" }, "Web.Port"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tc.field {
				t.Errorf("expected ConfigError on %s, got %v", tc.field, err)
			}
		})
	}

	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("test config invalid: %v", err)
	}
}

func TestConfig_LoadEnv(t *testing.T) {
	t.Setenv("NAILTINT_MODEL", "/tmp/model.onnx")
	t.Setenv("NAILTINT_FRONT_DEVICE", "-1")
	t.Setenv("NAILTINT_PORT", "9090")

	cfg := DefaultConfig()
	if err := cfg.LoadEnvConfig(); err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	if cfg.ModelPath != "/tmp/model.onnx" || cfg.Camera.FrontDevice != -1 || cfg.Web.Port != "9090" {
		t.Errorf("env not applied: %+v", cfg)
	}

	t.Setenv("NAILTINT_BACK_DEVICE", "zero")
	if err := cfg.LoadEnvConfig(); err == nil {
		t.Error("expected error for non-integer device")
	}
}

func TestInit_ModelLoadFailureIsFatal(t *testing.T) {
	mock := segment.NewMock(frame.ModelSide, marker)
	mock.LoadFunc = func() error { return errors.New("no such file") }

	a, err := New(testConfig(), Deps{Model: mock, Open: camera.PatternOpener(background, marker, camera.Back)}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = a.Init()
	if !errors.Is(err, segment.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	var fe *segment.FatalConfigError
	if !errors.As(err, &fe) {
		t.Errorf("expected *FatalConfigError, got %T", err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(testConfig(), Deps{}, nil); err == nil {
		t.Error("expected error without model and opener")
	}
}

func TestApp_EndToEnd(t *testing.T) {
	mock := segment.NewMock(frame.ModelSide, marker)
	mock.Tolerance = 8
	display := &recordingDisplay{}

	a, err := New(testConfig(), Deps{
		Model:    mock,
		Open:     camera.PatternOpener(background, marker, camera.Back, camera.Front),
		Displays: []pipeline.Display{display},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	present := func(pred func(*render.Oriented) bool) (*render.Oriented, bool) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if a.Presenter().PresentNext() {
				if img, red := display.last(); pred(img) {
					return img, red
				}
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("no matching frame presented")
		return nil, false
	}

	img, red := present(func(o *render.Oriented) bool { return o.Facing == camera.Back })
	if !img.Mirrored || !red {
		t.Errorf("back frame: mirrored=%v red center=%v", img.Mirrored, red)
	}

	if err := a.Camera().Switch(camera.Front); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	frontSession := a.Camera().SessionID()
	img, _ = present(func(o *render.Oriented) bool { return o.Facing == camera.Front })
	if img.Mirrored || img.Session != frontSession {
		t.Errorf("front frame: mirrored=%v session=%s want %s", img.Mirrored, img.Session, frontSession)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	a.Shutdown()

	if st := a.Pipeline().Stats(); st.Processed == 0 {
		t.Errorf("no frames processed: %+v", st)
	}
	if n := mock.Outstanding(); n != 0 {
		t.Errorf("outstanding buffers after shutdown: %d", n)
	}
	if display.count() == 0 {
		t.Error("display never called")
	}
}

func TestApp_RunWaitsForGoroutines(t *testing.T) {
	cfg := testConfig()
	cfg.ExternalPresenter = false
	display := &recordingDisplay{}

	a, err := New(cfg, Deps{
		Model:    segment.NewMock(frame.ModelSide, marker),
		Open:     camera.PatternOpener(background, marker, camera.Back),
		Displays: []pipeline.Display{display},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for display.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if display.count() == 0 {
		t.Fatal("presenter never showed a frame")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.Server().Frames().IsRunning() {
		t.Error("frame hub still running after Run returned")
	}

	a.Shutdown()
	shown := display.count()
	time.Sleep(20 * time.Millisecond)
	if display.count() != shown {
		t.Error("display called after Run returned")
	}
}
