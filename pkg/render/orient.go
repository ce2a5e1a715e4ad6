package render

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/teslashibe/go-nailtint/pkg/camera"
)

// Oriented is the per-frame terminal image. It is consumed once by the
// presentation side, which must then call Release.
type Oriented struct {
	Image    *image.RGBA
	Format   Format
	Facing   camera.Facing
	Mirrored bool

	// Preview, if set, is the camera picture under the overlay, in the same
	// orientation. See AttachPreview and Flatten.
	Preview *image.RGBA

	// Seq and Session identify the frame this image came from.
	Seq     uint64
	Session string

	release func()
	once    sync.Once
}

// Release returns the image's memory. Safe to call more than once.
func (o *Oriented) Release() {
	o.once.Do(func() {
		if o.release != nil {
			o.release()
		}
	})
}

var canvasPool sync.Pool // *image.RGBA

// Orient produces the display image for facing.
//
// Front: the composite is used as-is and its ownership moves into the result.
// Back: the composite is drawn into a fresh canvas through the transform
// x' = width - x (translate by width, then scale x by -1) and released.
func Orient(c *Composite, facing camera.Facing) (*Oriented, error) {
	switch facing {
	case camera.Front:
		return &Oriented{
			Image:   c.Image,
			Format:  c.Format,
			Facing:  facing,
			release: c.Release,
		}, nil

	case camera.Back:
		side := c.Side()
		canvas := getCanvas(side)

		w := float64(side)
		// Row-major 2x3 matrix: translate(w, 0) * scale(-1, 1).
		mirror := f64.Aff3{
			-1, 0, w,
			0, 1, 0,
		}
		draw.NearestNeighbor.Transform(canvas, mirror, c.Image, c.Image.Bounds(), draw.Src, nil)
		c.Release()

		return &Oriented{
			Image:    canvas,
			Format:   c.Format,
			Facing:   facing,
			Mirrored: true,
			release:  func() { canvasPool.Put(canvas) },
		}, nil

	default:
		c.Release()
		return nil, fmt.Errorf("render: unknown camera facing %d", facing)
	}
}

func getCanvas(side int) *image.RGBA {
	for {
		v := canvasPool.Get()
		if v == nil {
			break
		}
		img := v.(*image.RGBA)
		if img.Rect.Dx() == side && img.Rect.Dy() == side {
			return img
		}
	}
	return image.NewRGBA(image.Rect(0, 0, side, side))
}
