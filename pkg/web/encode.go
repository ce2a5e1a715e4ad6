package web

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/disintegration/imaging"
)

// Encoder turns display images into bytes for the wire.
type Encoder struct {
	format  imaging.Format
	options []imaging.EncodeOption
	bufs    sync.Pool // *bytes.Buffer
}

// NewEncoder creates an encoder for "png" or "jpeg". quality applies to JPEG.
// PNG keeps the overlay's alpha so clients can draw it over live video.
func NewEncoder(format string, quality int) (*Encoder, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	var opts []imaging.EncodeOption
	switch f {
	case imaging.JPEG:
		if quality < 1 || quality > 100 {
			return nil, fmt.Errorf("web: jpeg quality must be between 1 and 100, got %d", quality)
		}
		opts = append(opts, imaging.JPEGQuality(quality))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestSpeed))
	default:
		return nil, fmt.Errorf("web: unsupported frame format %s", f)
	}
	return &Encoder{format: f, options: opts}, nil
}

// ContentType returns the MIME type of encoded frames.
func (e *Encoder) ContentType() string {
	if e.format == imaging.JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode encodes img. The returned slice is owned by the caller.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	buf, _ := e.bufs.Get().(*bytes.Buffer)
	if buf == nil {
		buf = new(bytes.Buffer)
	}
	buf.Reset()
	defer e.bufs.Put(buf)

	if err := imaging.Encode(buf, img, e.format, e.options...); err != nil {
		return nil, fmt.Errorf("web: encode %s: %w", e.format, err)
	}
	return bytes.Clone(buf.Bytes()), nil
}
