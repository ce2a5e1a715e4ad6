package dnn

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/segment"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	m := New(cfg)
	if err := m.Load(); err == nil {
		t.Error("expected error for missing model")
	}

	// The invoker turns the load failure into a fatal config error.
	_, err := segment.NewInvoker(New(cfg), cfg.Side, nil)
	if !errors.Is(err, segment.ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestProcess_NotLoaded(t *testing.T) {
	m := New(DefaultConfig())
	in := &frame.ModelInput{Side: frame.ModelSide, Pix: make([]byte, frame.ModelSide*frame.ModelSide*3)}
	if _, err := m.Process(in, 0); !errors.Is(err, segment.ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close on unloaded model: %v", err)
	}
}

func TestArgmax(t *testing.T) {
	const side = 2
	// Two class planes. Class 1 wins at pixels 1 and 2.
	values := []float32{
		0.9, 0.1, 0.2, 0.8, // class 0
		0.1, 0.7, 0.6, 0.3, // class 1
	}
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	logits, err := gocv.NewMatFromBytes(1, len(values), gocv.MatTypeCV32F, raw)
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	defer logits.Close()

	mask, err := argmax(logits, side)
	if err != nil {
		t.Fatalf("argmax: %v", err)
	}
	want := []uint8{0, 1, 1, 0}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask: got %v, want %v", mask, want)
		}
	}
}

func TestArgmax_BadShape(t *testing.T) {
	logits := gocv.NewMatWithSize(1, 5, gocv.MatTypeCV32F)
	defer logits.Close()

	if _, err := argmax(logits, 2); err == nil {
		t.Error("expected error for output not divisible by plane size")
	}
}

func TestProcess_RealModel(t *testing.T) {
	path := findModelPath()
	if path == "" {
		t.Skip("segmentation model not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = path
	m := New(cfg)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Close()

	in := &frame.ModelInput{Side: cfg.Side, Pix: make([]byte, cfg.Side*cfg.Side*3)}
	color, _ := tint.Encode(tint.DefaultColor, 1)

	buf, err := m.Process(in, color)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if buf.Len() != cfg.Side*cfg.Side*4 {
		t.Errorf("Len: got %d, want %d", buf.Len(), cfg.Side*cfg.Side*4)
	}
	if err := buf.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func findModelPath() string {
	if p := os.Getenv("NAILTINT_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
			p := filepath.Join(dir, "models", "nails_deeplab.onnx")
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
