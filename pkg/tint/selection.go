package tint

import (
	colorful "github.com/lucasb-eyer/go-colorful"
	"go.uber.org/atomic"
)

// DefaultColor is the overlay used before the user picks one (opaque red).
var DefaultColor = colorful.Color{R: 1, G: 0, B: 0}

// Selection holds the current encoded overlay color.
// One writer (the control side) calls Select; any number of readers call
// Current once per frame. The encoding is computed on Select, never on read.
type Selection struct {
	encoded atomic.Uint32
	version atomic.Uint64
}

// NewSelection returns a selection initialized with c and alpha.
func NewSelection(c colorful.Color, alpha float64) (*Selection, error) {
	s := &Selection{}
	if err := s.Select(c, alpha); err != nil {
		return nil, err
	}
	return s, nil
}

// Select encodes c and publishes it. On error the previous encoding is kept.
func (s *Selection) Select(c colorful.Color, alpha float64) error {
	enc, err := Encode(c, alpha)
	if err != nil {
		return err
	}
	s.encoded.Store(uint32(enc))
	s.version.Inc()
	return nil
}

// SelectHex parses and selects a hex color string.
func (s *Selection) SelectHex(hex string) error {
	c, a, err := ParseHex(hex)
	if err != nil {
		return err
	}
	return s.Select(c, a)
}

// Current returns the most recently selected encoding.
func (s *Selection) Current() Encoded {
	return Encoded(s.encoded.Load())
}

// Version increases by one for every accepted selection.
func (s *Selection) Version() uint64 {
	return s.version.Load()
}
