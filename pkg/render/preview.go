package render

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/teslashibe/go-nailtint/pkg/frame"
)

var previewPool sync.Pool // *image.RGBA

// AttachPreview adds the camera picture the model saw underneath o. in is
// the normalized model input, which covers the same centered square as the
// overlay. The preview is mirrored along with the overlay so the two stay
// aligned, and is returned to its pool when o is released.
//
// Must be called before o is released or handed off.
func AttachPreview(o *Oriented, in *frame.ModelInput) {
	side := o.Image.Bounds().Dx()
	if in == nil || in.Side != side || len(in.Pix) < side*side*frame.RGBChannels {
		return
	}

	pv := getPreview(side)
	if o.Mirrored {
		scratch := getPreview(side)
		fillRGB(scratch, in)
		mirror := f64.Aff3{
			-1, 0, float64(side),
			0, 1, 0,
		}
		draw.NearestNeighbor.Transform(pv, mirror, scratch, scratch.Bounds(), draw.Src, nil)
		previewPool.Put(scratch)
	} else {
		fillRGB(pv, in)
	}

	o.Preview = pv
	prev := o.release
	o.release = func() {
		if prev != nil {
			prev()
		}
		previewPool.Put(pv)
	}
}

// Flatten draws the overlay of o over its preview into dst and returns dst.
// dst is reallocated when nil or the wrong size. Without a preview the
// overlay image itself is returned and dst is untouched.
func Flatten(o *Oriented, dst *image.RGBA) *image.RGBA {
	if o.Preview == nil {
		return o.Image
	}
	b := o.Image.Bounds()
	if dst == nil || dst.Bounds() != b {
		dst = image.NewRGBA(b)
	}
	draw.Copy(dst, b.Min, o.Preview, o.Preview.Bounds(), draw.Src, nil)
	// image.RGBA is premultiplied, which is what Over expects.
	draw.Draw(dst, b, o.Image, b.Min, draw.Over)
	return dst
}

func fillRGB(dst *image.RGBA, in *frame.ModelInput) {
	o := 0
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = in.Pix[o+0]
		dst.Pix[i+1] = in.Pix[o+1]
		dst.Pix[i+2] = in.Pix[o+2]
		dst.Pix[i+3] = 0xff
		o += frame.RGBChannels
	}
}

func getPreview(side int) *image.RGBA {
	for {
		v := previewPool.Get()
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
