// Package segment invokes the segmentation model and owns the lifetime of the
// buffers it returns.
//
// A Model produces one Buffer per call. Ownership of that Buffer moves to the
// caller, which must Release it exactly once on every path:
//
//	buf, err := inv.Invoke(in, color)
//	if err != nil {
//	    return err // Invoke already released anything the model returned
//	}
//	defer buf.Release()
package segment

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Model is the external segmentation model.
type Model interface {
	// Name identifies the model in logs and errors.
	Name() string

	// Load prepares the model. It is called once at startup.
	Load() error

	// Process segments in and overlays color on the detected pixels. The
	// returned buffer holds Side×Side premultiplied RGBA pixels and belongs to
	// the caller. A model may return a non-nil buffer together with an error.
	Process(in *frame.ModelInput, color tint.Encoded) (*Buffer, error)

	// Close releases model resources.
	Close() error
}

// Invoker runs a loaded model and enforces the buffer contract.
type Invoker struct {
	model Model
	side  int
	log   *slog.Logger
}

// NewInvoker loads m. A load failure is returned as *FatalConfigError.
func NewInvoker(m Model, side int, logger *slog.Logger) (*Invoker, error) {
	if side <= 0 {
		return nil, fmt.Errorf("segment: side must be positive, got %d", side)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := m.Load(); err != nil {
		return nil, &FatalConfigError{Model: m.Name(), Err: err}
	}
	logger.Info("segmentation model loaded", "model", m.Name(), "side", side)
	return &Invoker{model: m, side: side, log: logger}, nil
}

// OutputLen is the expected size of every output buffer.
func (i *Invoker) OutputLen() int {
	return i.side * i.side * frame.RGBAChannels
}

// Invoke runs the model once. On error no buffer is returned and any buffer
// the model produced has already been released.
func (i *Invoker) Invoke(in *frame.ModelInput, color tint.Encoded) (*Buffer, error) {
	buf, err := i.model.Process(in, color)
	if err != nil {
		if buf != nil {
			buf.Release()
		}
		return nil, &InvokeError{Err: err}
	}
	if buf == nil {
		return nil, &InvokeError{Err: fmt.Errorf("model %s returned no buffer", i.model.Name())}
	}
	if buf.Len() != i.OutputLen() {
		got := buf.Len()
		buf.Release()
		return nil, &BufferSizeError{Got: got, Want: i.OutputLen()}
	}
	return buf, nil
}

// Close closes the underlying model.
func (i *Invoker) Close() error {
	return i.model.Close()
}
