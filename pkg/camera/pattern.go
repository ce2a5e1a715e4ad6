package camera

import (
	"context"
	"image"
	"time"

	"github.com/teslashibe/go-nailtint/pkg/frame"
)

// PatternSource is a synthetic camera: a solid background with one
// rectangle in a marker color, optionally drifting horizontally. It is used
// for demos without hardware and in tests.
type PatternSource struct {
	Width, Height int
	Background    [3]uint8 // R, G, B
	Marker        [3]uint8 // R, G, B
	Object        image.Rectangle
	Drift         int           // pixels the object moves per frame
	Interval      time.Duration // pause between frames, 0 for none

	buf    []byte
	frames int
	closed bool
}

// NewPatternSource creates a pattern sized by cfg with the object in the
// center third of the frame.
func NewPatternSource(cfg Config, background, marker [3]uint8) *PatternSource {
	w, h := cfg.Width, cfg.Height
	return &PatternSource{
		Width:      w,
		Height:     h,
		Background: background,
		Marker:     marker,
		Object:     image.Rect(w/3, h/3, 2*w/3, 2*h/3),
		Interval:   time.Second / time.Duration(max(cfg.Framerate, 1)),
	}
}

// PatternOpener returns an OpenFunc that opens pattern sources. A facing
// missing from the set is reported as unavailable.
func PatternOpener(background, marker [3]uint8, facings ...Facing) OpenFunc {
	return func(facing Facing, device int, cfg Config) (Source, error) {
		for _, f := range facings {
			if f == facing {
				return NewPatternSource(cfg, background, marker), nil
			}
		}
		return nil, ErrDeviceUnavailable
	}
}

// Read renders the next frame into a reused BGRA buffer and passes it to fn.
func (p *PatternSource) Read(ctx context.Context, fn func(frame.Raw)) error {
	if p.closed {
		return ErrSessionStopped
	}
	if p.Interval > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Interval):
		}
	}

	stride := p.Width * frame.RGBAChannels
	if len(p.buf) != stride*p.Height {
		p.buf = make([]byte, stride*p.Height)
	}

	obj := p.Object
	if p.Drift != 0 && p.Width > 0 {
		dx := (p.frames * p.Drift) % p.Width
		obj = obj.Add(image.Pt(dx, 0))
	}
	p.frames++

	for y := 0; y < p.Height; y++ {
		row := p.buf[y*stride : (y+1)*stride]
		for x := 0; x < p.Width; x++ {
			c := p.Background
			if image.Pt(x, y).In(obj) {
				c = p.Marker
			}
			o := x * frame.RGBAChannels
			row[o+0], row[o+1], row[o+2], row[o+3] = c[2], c[1], c[0], 0xff
		}
	}

	fn(frame.Raw{
		Width:  p.Width,
		Height: p.Height,
		Stride: stride,
		Format: frame.FormatBGRA,
		Data:   p.buf,
	})
	return nil
}

// Close stops the source.
func (p *PatternSource) Close() error {
	p.closed = true
	return nil
}
