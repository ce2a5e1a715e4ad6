package segment

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Mock implements Model for testing. Its default Process marks every input
// pixel that matches Key (within Tolerance per channel) as the object class.
type Mock struct {
	// Side is the output side length.
	Side int

	// Key is the RGB color treated as the object.
	Key [3]uint8

	// Tolerance is the per-channel distance still counted as Key.
	Tolerance uint8

	// LoadFunc is called when Load is invoked.
	LoadFunc func() error

	// ProcessFunc overrides the default keyed segmentation.
	ProcessFunc func(in *frame.ModelInput, color tint.Encoded) (*Buffer, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	allocs atomic.Int64
	frees  atomic.Int64

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Color  tint.Encoded
	Time   time.Time
}

// NewMock creates a mock model with the given side and object key color.
func NewMock(side int, key [3]uint8) *Mock {
	return &Mock{Side: side, Key: key}
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Load calls LoadFunc and records the call.
func (m *Mock) Load() error {
	m.record("Load", 0)
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return nil
}

// Process calls ProcessFunc, or runs the keyed segmentation, and records the call.
func (m *Mock) Process(in *frame.ModelInput, color tint.Encoded) (*Buffer, error) {
	m.record("Process", color)
	if m.ProcessFunc != nil {
		return m.ProcessFunc(in, color)
	}
	if in.Side != m.Side || in.Len() != m.Side*m.Side*frame.RGBChannels {
		return nil, ErrInputSize
	}

	mask := make([]uint8, m.Side*m.Side)
	for i := range mask {
		p := in.Pix[i*frame.RGBChannels:]
		if near(p[0], m.Key[0], m.Tolerance) && near(p[1], m.Key[1], m.Tolerance) && near(p[2], m.Key[2], m.Tolerance) {
			mask[i] = 1
		}
	}

	out := make([]byte, m.Side*m.Side*frame.RGBAChannels)
	Colorize(mask, 1, color, out)
	return m.Track(out), nil
}

// Track wraps data in a Buffer counted by Outstanding.
func (m *Mock) Track(data []byte) *Buffer {
	m.allocs.Inc()
	return NewBuffer(data, func() { m.frees.Inc() })
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Allocated returns how many buffers this mock has handed out.
func (m *Mock) Allocated() int64 {
	return m.allocs.Load()
}

// Freed returns how many of those buffers have been released.
func (m *Mock) Freed() int64 {
	return m.frees.Load()
}

// Outstanding returns buffers handed out but not yet released.
func (m *Mock) Outstanding() int64 {
	return m.allocs.Load() - m.frees.Load()
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

func (m *Mock) record(method string, color tint.Encoded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Color: color, Time: time.Now()})
}

func near(a, b, tol uint8) bool {
	if a > b {
		return a-b <= tol
	}
	return b-a <= tol
}

// Verify Mock implements Model at compile time.
var _ Model = (*Mock)(nil)
