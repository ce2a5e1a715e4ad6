// Package dnn runs a DeepLab-style semantic segmentation network through
// OpenCV's DNN module.
package dnn

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/segment"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Config holds model configuration.
type Config struct {
	ModelPath   string  // ONNX or TFLite file
	Side        int     // network input and output side
	ObjectClass int     // class index painted with the overlay
	Scale       float64 // pixel scale applied before the mean
	Mean        float64 // subtracted from every channel
	Backend     gocv.NetBackendType
	Target      gocv.NetTargetType
}

// DefaultConfig returns defaults for the bundled nail model.
// Inputs are normalized to [-1, 1] the way DeepLab v3 expects.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/nails_deeplab.onnx",
		Side:        frame.ModelSide,
		ObjectClass: 1,
		Scale:       1.0 / 127.5,
		Mean:        127.5,
		Backend:     gocv.NetBackendDefault,
		Target:      gocv.NetTargetCPU,
	}
}

// Model implements segment.Model on top of gocv.Net.
type Model struct {
	cfg    Config
	net    gocv.Net
	loaded bool
	mu     sync.Mutex // net is not safe for concurrent Forward
}

// New creates an unloaded model. Call Load before Process.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Name returns the model file path.
func (m *Model) Name() string {
	return m.cfg.ModelPath
}

// Load reads the network from disk.
func (m *Model) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return nil
	}
	if m.cfg.Side <= 0 {
		return fmt.Errorf("side must be positive, got %d", m.cfg.Side)
	}
	if _, err := os.Stat(m.cfg.ModelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", m.cfg.ModelPath)
	}

	net := gocv.ReadNet(m.cfg.ModelPath, "")
	if net.Empty() {
		net.Close()
		return fmt.Errorf("failed to read network from %s", m.cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(m.cfg.Backend); err != nil {
		net.Close()
		return fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(m.cfg.Target); err != nil {
		net.Close()
		return fmt.Errorf("set target: %w", err)
	}

	m.net = net
	m.loaded = true
	return nil
}

// Process runs the network on in and returns the overlay. The returned buffer
// is a view over a C-allocated Mat; releasing it closes the Mat.
func (m *Model) Process(in *frame.ModelInput, color tint.Encoded) (*segment.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return nil, segment.ErrNotLoaded
	}
	side := m.cfg.Side
	if in.Side != side || in.Len() != side*side*frame.RGBChannels {
		return nil, segment.ErrInputSize
	}

	img, err := gocv.NewMatFromBytes(side, side, gocv.MatTypeCV8UC3, in.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap input: %w", err)
	}
	defer img.Close()

	mean := gocv.NewScalar(m.cfg.Mean, m.cfg.Mean, m.cfg.Mean, 0)
	blob := gocv.BlobFromImage(img, m.cfg.Scale, image.Pt(side, side), mean, false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	logits := m.net.Forward("")
	defer logits.Close()

	mask, err := argmax(logits, side)
	if err != nil {
		return nil, err
	}

	out := gocv.NewMatWithSize(side, side, gocv.MatTypeCV8UC4)
	pix, err := out.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("output data: %w", err)
	}
	segment.Colorize(mask, uint8(m.cfg.ObjectClass), color, pix)

	return segment.NewBuffer(pix, func() { out.Close() }), nil
}

// Close releases the network.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return nil
	}
	m.loaded = false
	return m.net.Close()
}

// argmax reduces NCHW logits [1, classes, side, side] to a class index per pixel.
func argmax(logits gocv.Mat, side int) ([]uint8, error) {
	if logits.Empty() {
		return nil, errors.New("network produced no output")
	}
	data, err := logits.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("output data: %w", err)
	}

	plane := side * side
	if len(data) == 0 || len(data)%plane != 0 {
		return nil, fmt.Errorf("output has %d values, not a multiple of %d", len(data), plane)
	}
	classes := len(data) / plane

	mask := make([]uint8, plane)
	for i := 0; i < plane; i++ {
		best, bestClass := data[i], 0
		for c := 1; c < classes; c++ {
			if v := data[c*plane+i]; v > best {
				best, bestClass = v, c
			}
		}
		mask[i] = uint8(bestClass)
	}
	return mask, nil
}

// Verify Model implements segment.Model at compile time.
var _ segment.Model = (*Model)(nil)
