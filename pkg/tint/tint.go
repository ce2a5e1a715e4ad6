// Package tint converts user-selected overlay colors into the packed value the
// segmentation model expects.
//
// Colors arrive in the application's native red-green-blue-alpha order. The model
// reads a 32-bit value with red and blue swapped:
//
//	native:  R<<24 | G<<16 | B<<8 | A
//	encoded: B<<24 | G<<16 | R<<8 | A
package tint

import (
	"errors"
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned when a channel is outside [0,1] or not a number.
var ErrInvalidColor = errors.New("tint: invalid color")

// Encoded is a color packed in the model's channel order.
type Encoded uint32

// Packed is a color packed in native RGBA order.
type Packed uint32

// Channels returns the 8-bit red, green, blue and alpha channels of an encoded color.
func (e Encoded) Channels() (r, g, b, a uint8) {
	return uint8(e >> 8), uint8(e >> 16), uint8(e >> 24), uint8(e)
}

// Premultiplied returns the channels scaled by alpha, as stored in a
// premultiplied RGBA pixel.
func (e Encoded) Premultiplied() (r, g, b, a uint8) {
	r, g, b, a = e.Channels()
	return premul(r, a), premul(g, a), premul(b, a), a
}

// String formats the value as 0xBBGGRRAA.
func (e Encoded) String() string {
	return fmt.Sprintf("0x%08X", uint32(e))
}

// Encode packs c and alpha into the model's channel order.
func Encode(c colorful.Color, alpha float64) (Encoded, error) {
	r, g, b, a, err := quantize(c, alpha)
	if err != nil {
		return 0, err
	}
	return Encoded(uint32(b)<<24 | uint32(g)<<16 | uint32(r)<<8 | uint32(a)), nil
}

// Pack packs c and alpha in native RGBA order.
func Pack(c colorful.Color, alpha float64) (Packed, error) {
	r, g, b, a, err := quantize(c, alpha)
	if err != nil {
		return 0, err
	}
	return Packed(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)), nil
}

// Decode is the inverse of Encode at 8-bit precision.
func Decode(e Encoded) (colorful.Color, float64) {
	r, g, b, a := e.Channels()
	return colorful.Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
	}, float64(a) / 255
}

// Hex formats an encoded color as #rrggbbaa in native order.
func Hex(e Encoded) string {
	r, g, b, a := e.Channels()
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// ParseHex parses #rgb, #rrggbb or #rrggbbaa. Alpha defaults to 1.
func ParseHex(s string) (colorful.Color, float64, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 4, 7:
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%w: %v", ErrInvalidColor, err)
		}
		return c, 1, nil
	case 9:
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%w: %v", ErrInvalidColor, err)
		}
		var a uint8
		if _, err := fmt.Sscanf(s[7:], "%02x", &a); err != nil {
			return colorful.Color{}, 0, fmt.Errorf("%w: bad alpha %q", ErrInvalidColor, s[7:])
		}
		return c, float64(a) / 255, nil
	default:
		return colorful.Color{}, 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

func quantize(c colorful.Color, alpha float64) (r, g, b, a uint8, err error) {
	for _, v := range [...]float64{c.R, c.G, c.B, alpha} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return 0, 0, 0, 0, fmt.Errorf("%w: channel %v out of [0,1]", ErrInvalidColor, v)
		}
	}
	return to8(c.R), to8(c.G), to8(c.B), to8(alpha), nil
}

func to8(v float64) uint8 {
	return uint8(math.Round(v * 255))
}

func premul(c, a uint8) uint8 {
	return uint8((uint32(c)*uint32(a) + 127) / 255)
}
