package frame

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Config holds normalizer parameters.
type Config struct {
	Side   int                   // output side length
	Format PixelFormat           // accepted capture format
	Filter imaging.ResampleFilter // resampling kernel
}

// DefaultConfig returns the settings used with the bundled model.
func DefaultConfig() Config {
	return Config{
		Side:   ModelSide,
		Format: FormatBGRA,
		Filter: imaging.Linear,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errs []string
	if c.Side <= 0 {
		errs = append(errs, "side must be positive")
	}
	if c.Format != FormatBGRA && c.Format != FormatRGBA {
		errs = append(errs, "format must be BGRA or RGBA")
	}
	if c.Filter.Kernel == nil && c.Filter.Support != 0 {
		errs = append(errs, "filter has support but no kernel")
	}
	return errs
}

// Normalizer crops a captured frame to a centered square, resamples it to
// Side×Side and drops the alpha channel. It never writes to the source frame.
type Normalizer struct {
	cfg     Config
	scratch sync.Pool // *image.NRGBA holding the cropped square
}

// NewNormalizer creates a normalizer.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("frame: invalid config: %v", errs)
	}
	return &Normalizer{cfg: cfg}, nil
}

// Side returns the output side length.
func (n *Normalizer) Side() int {
	return n.cfg.Side
}

// Normalize converts raw into a fresh ModelInput.
// Returns a *FormatError if raw is not in the configured format.
func (n *Normalizer) Normalize(raw Raw) (*ModelInput, error) {
	if err := raw.Validate(n.cfg.Format); err != nil {
		return nil, err
	}

	sq := min(raw.Width, raw.Height)
	x0 := (raw.Width - sq) / 2
	y0 := (raw.Height - sq) / 2

	crop := n.getScratch(sq)
	defer n.scratch.Put(crop)

	swap := raw.Format == FormatBGRA
	for y := 0; y < sq; y++ {
		src := raw.Data[(y0+y)*raw.Stride+x0*RGBAChannels:]
		dst := crop.Pix[y*crop.Stride : y*crop.Stride+sq*RGBAChannels]
		for i := 0; i < len(dst); i += RGBAChannels {
			if swap {
				dst[i+0] = src[i+2]
				dst[i+2] = src[i+0]
			} else {
				dst[i+0] = src[i+0]
				dst[i+2] = src[i+2]
			}
			dst[i+1] = src[i+1]
			dst[i+3] = 0xff // camera frames are opaque
		}
	}

	var scaled *image.NRGBA
	if sq == n.cfg.Side {
		scaled = crop
	} else {
		scaled = imaging.Resize(crop, n.cfg.Side, n.cfg.Side, n.cfg.Filter)
	}

	return toRGB(scaled, n.cfg.Side), nil
}

func (n *Normalizer) getScratch(side int) *image.NRGBA {
	for {
		v := n.scratch.Get()
		if v == nil {
			break
		}
		img := v.(*image.NRGBA)
		if img.Rect.Dx() == side && img.Rect.Dy() == side {
			return img
		}
	}
	return image.NewNRGBA(image.Rect(0, 0, side, side))
}

func toRGB(img *image.NRGBA, side int) *ModelInput {
	out := &ModelInput{Side: side, Pix: make([]byte, side*side*RGBChannels)}
	o := 0
	for y := 0; y < side; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+side*RGBAChannels]
		for i := 0; i < len(row); i += RGBAChannels {
			out.Pix[o+0] = row[i+0]
			out.Pix[o+1] = row[i+1]
			out.Pix[o+2] = row[i+2]
			o += RGBChannels
		}
	}
	return out
}
