// Package render turns model output buffers into displayable images and
// orients them for the active camera.
package render

import (
	"image"
	"sync"

	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/segment"
)

// ColorSpace names the color space of a bitmap.
type ColorSpace string

// DeviceRGB is the only color space produced here.
const DeviceRGB ColorSpace = "DeviceRGB"

// AlphaMode describes where alpha lives and whether color is scaled by it.
type AlphaMode int

const (
	// AlphaPremultipliedLast is R,G,B scaled by A, with A as the last byte.
	AlphaPremultipliedLast AlphaMode = iota + 1
)

func (a AlphaMode) String() string {
	if a == AlphaPremultipliedLast {
		return "premultiplied-last"
	}
	return "unknown"
}

// ByteOrder describes how a pixel's bytes are laid out in memory.
type ByteOrder int

const (
	// ByteOrderDefault stores components in the order named by the alpha mode:
	// R, G, B, A for premultiplied-last.
	ByteOrderDefault ByteOrder = iota
)

// Format describes a bitmap's pixel layout.
type Format struct {
	ColorSpace       ColorSpace
	BitsPerComponent int
	BitsPerPixel     int
	BytesPerRow      int
	ByteOrder        ByteOrder
	Alpha            AlphaMode
}

// CompositeFormat returns the layout of a side×side composite.
func CompositeFormat(side int) Format {
	return Format{
		ColorSpace:       DeviceRGB,
		BitsPerComponent: 8,
		BitsPerPixel:     32,
		BytesPerRow:      side * frame.RGBAChannels,
		ByteOrder:        ByteOrderDefault,
		Alpha:            AlphaPremultipliedLast,
	}
}

// Composite is a zero-copy bitmap view over a model output buffer.
// It owns the buffer until Release.
type Composite struct {
	Image  *image.RGBA
	Format Format

	buf  *segment.Buffer
	once sync.Once
}

// Compose wraps buf as a side×side bitmap without copying. If buf has the
// wrong size it is released and a *segment.BufferSizeError is returned.
func Compose(buf *segment.Buffer, side int) (*Composite, error) {
	want := side * side * frame.RGBAChannels
	if buf.Len() != want {
		got := buf.Len()
		buf.Release()
		return nil, &segment.BufferSizeError{Got: got, Want: want}
	}

	// image.RGBA is premultiplied, 8 bits per component, R,G,B,A in memory.
	img := &image.RGBA{
		Pix:    buf.Bytes(),
		Stride: side * frame.RGBAChannels,
		Rect:   image.Rect(0, 0, side, side),
	}
	return &Composite{Image: img, Format: CompositeFormat(side), buf: buf}, nil
}

// Side returns the bitmap side length.
func (c *Composite) Side() int {
	return c.Image.Rect.Dx()
}

// Release frees the underlying buffer. It runs at most once; the image must
// not be read afterwards.
func (c *Composite) Release() {
	c.once.Do(func() {
		c.Image.Pix = nil
		c.buf.Release()
	})
}
