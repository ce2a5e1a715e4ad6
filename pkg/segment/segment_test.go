package segment

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

const testSide = 8

func testInput() *frame.ModelInput {
	return &frame.ModelInput{Side: testSide, Pix: make([]byte, testSide*testSide*frame.RGBChannels)}
}

func TestNewInvoker_LoadFailureIsFatal(t *testing.T) {
	loadErr := errors.New("missing weights")
	mock := NewMock(testSide, [3]uint8{})
	mock.LoadFunc = func() error { return loadErr }

	inv, err := NewInvoker(mock, testSide, nil)
	if inv != nil {
		t.Error("expected nil invoker")
	}
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
	if !errors.Is(err, loadErr) {
		t.Errorf("expected wrapped load error, got %v", err)
	}
	var fatal *FatalConfigError
	if !errors.As(err, &fatal) || fatal.Model != "mock" {
		t.Errorf("expected *FatalConfigError for mock, got %T %v", err, err)
	}
}

func TestInvoke_ReleasedExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		process func(m *Mock) func(*frame.ModelInput, tint.Encoded) (*Buffer, error)
		wantErr error
	}{
		{
			name:    "success",
			process: nil,
		},
		{
			name: "model error without buffer",
			process: func(m *Mock) func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
				return func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
					return nil, errors.New("bad input")
				}
			},
			wantErr: ErrInvoke,
		},
		{
			name: "model error with buffer",
			process: func(m *Mock) func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
				return func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
					return m.Track(make([]byte, 16)), errors.New("partial output")
				}
			},
			wantErr: ErrInvoke,
		},
		{
			name: "short buffer",
			process: func(m *Mock) func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
				return func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
					return m.Track(make([]byte, 10)), nil
				}
			},
			wantErr: ErrBufferSize,
		},
		{
			name: "nil buffer",
			process: func(m *Mock) func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
				return func(*frame.ModelInput, tint.Encoded) (*Buffer, error) {
					return nil, nil
				}
			},
			wantErr: ErrInvoke,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := NewMock(testSide, [3]uint8{})
			if tc.process != nil {
				mock.ProcessFunc = tc.process(mock)
			}
			inv, err := NewInvoker(mock, testSide, nil)
			if err != nil {
				t.Fatalf("NewInvoker: %v", err)
			}

			for i := 0; i < 5; i++ {
				buf, err := inv.Invoke(testInput(), 0x0000FFFF)
				if tc.wantErr != nil {
					if !errors.Is(err, tc.wantErr) {
						t.Fatalf("expected %v, got %v", tc.wantErr, err)
					}
					if buf != nil {
						t.Fatal("expected nil buffer on error")
					}
					continue
				}
				if err != nil {
					t.Fatalf("Invoke: %v", err)
				}
				if buf.Len() != inv.OutputLen() {
					t.Fatalf("Len: got %d, want %d", buf.Len(), inv.OutputLen())
				}
				if err := buf.Release(); err != nil {
					t.Fatalf("Release: %v", err)
				}
			}

			if mock.Outstanding() != 0 {
				t.Errorf("leaked %d buffers", mock.Outstanding())
			}
			if mock.Freed() != mock.Allocated() {
				t.Errorf("freed %d of %d", mock.Freed(), mock.Allocated())
			}
		})
	}
}

func TestBuffer_DoubleRelease(t *testing.T) {
	frees := 0
	before := Stats()
	buf := NewBuffer(make([]byte, 4), func() { frees++ })

	if buf.Released() {
		t.Fatal("new buffer reports released")
	}
	if err := buf.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := buf.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release: expected ErrReleased, got %v", err)
	}
	if frees != 1 {
		t.Errorf("release func called %d times, want 1", frees)
	}
	if buf.Bytes() != nil {
		t.Error("Bytes should be nil after release")
	}

	after := Stats()
	if after.Allocated-before.Allocated != 1 || after.Released-before.Released != 1 {
		t.Errorf("stats delta: %+v -> %+v", before, after)
	}
}

func TestColorize(t *testing.T) {
	mask := []uint8{0, 1, 1, 2}
	dst := make([]byte, len(mask)*4)
	for i := range dst {
		dst[i] = 0xAA
	}

	// Pure red at half alpha.
	color, _ := tint.Encode(tint.DefaultColor, 0.5)
	Colorize(mask, 1, color, dst)

	want := []byte{
		0, 0, 0, 0,
		128, 0, 0, 128,
		128, 0, 0, 128,
		0, 0, 0, 0,
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst: got %v, want %v", dst, want)
		}
	}
}

func TestMock_KeyedSegmentation(t *testing.T) {
	mock := NewMock(testSide, [3]uint8{0, 255, 0})
	in := testInput()
	// Mark pixel 3 with the key color.
	in.Pix[3*3+1] = 255

	color, _ := tint.Encode(tint.DefaultColor, 1)
	buf, err := mock.Process(in, color)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	defer buf.Release()

	px := buf.Bytes()
	for i := 0; i < testSide*testSide; i++ {
		got := px[i*4 : i*4+4]
		if i == 3 {
			if got[0] != 255 || got[3] != 255 {
				t.Errorf("object pixel: got %v", got)
			}
		} else if got[3] != 0 {
			t.Errorf("background pixel %d: got %v", i, got)
		}
	}

	if mock.LastCall().Color != color {
		t.Errorf("recorded color: got %s, want %s", mock.LastCall().Color, color)
	}
}

func TestMock_WrongInputSize(t *testing.T) {
	mock := NewMock(testSide, [3]uint8{})
	_, err := mock.Process(&frame.ModelInput{Side: 3, Pix: make([]byte, 27)}, 0)
	if !errors.Is(err, ErrInputSize) {
		t.Errorf("expected ErrInputSize, got %v", err)
	}
}
