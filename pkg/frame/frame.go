// Package frame defines captured frames and converts them into the fixed-size
// input the segmentation model expects.
package frame

import (
	"errors"
	"fmt"
)

// ModelSide is the side length of the square model input and output.
const ModelSide = 257

// Channel counts.
const (
	RGBAChannels = 4
	RGBChannels  = 3
)

// PixelFormat identifies the byte layout of a captured frame.
type PixelFormat int

const (
	// FormatUnknown is the zero value and is never accepted.
	FormatUnknown PixelFormat = iota
	// FormatBGRA is 4 bytes per pixel in B, G, R, A order (32BGRA).
	FormatBGRA
	// FormatRGBA is 4 bytes per pixel in R, G, B, A order.
	FormatRGBA
	// FormatNV12 is planar YUV 4:2:0, not accepted by the normalizer.
	FormatNV12
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "BGRA"
	case FormatRGBA:
		return "RGBA"
	case FormatNV12:
		return "NV12"
	default:
		return "unknown"
	}
}

// Raw is one captured frame. The capture side owns Data; it is only valid for
// the duration of the callback that delivered it.
type Raw struct {
	Width  int
	Height int
	Stride int // bytes per row
	Format PixelFormat
	Data   []byte
}

// ModelInput is a Side×Side RGB image, 3 bytes per pixel, rows packed.
type ModelInput struct {
	Side int
	Pix  []byte
}

// Len returns the number of bytes in the input.
func (m *ModelInput) Len() int {
	return len(m.Pix)
}

// ErrFormat matches every FormatError.
var ErrFormat = errors.New("frame: unexpected pixel format")

// FormatError reports a frame whose layout does not match the expected packed format.
type FormatError struct {
	Format PixelFormat
	Width  int
	Height int
	Stride int
	Len    int
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("frame: %s %dx%d stride %d len %d: %s",
		e.Format, e.Width, e.Height, e.Stride, e.Len, e.Reason)
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Validate checks that r is a well-formed frame in the wanted format.
func (r Raw) Validate(want PixelFormat) error {
	fail := func(reason string) error {
		return &FormatError{
			Format: r.Format,
			Width:  r.Width,
			Height: r.Height,
			Stride: r.Stride,
			Len:    len(r.Data),
			Reason: reason,
		}
	}

	switch {
	case r.Format != want:
		return fail("want " + want.String())
	case r.Width <= 0 || r.Height <= 0:
		return fail("empty dimensions")
	case r.Stride < r.Width*RGBAChannels:
		return fail("stride shorter than row")
	case len(r.Data) < r.Stride*(r.Height-1)+r.Width*RGBAChannels:
		return fail("buffer shorter than frame")
	}
	return nil
}
