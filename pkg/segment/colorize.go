package segment

import (
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Colorize writes the overlay for a class mask into dst: premultiplied color
// where mask[i] == class, transparent black elsewhere. dst must hold
// len(mask)*4 bytes.
func Colorize(mask []uint8, class uint8, color tint.Encoded, dst []byte) {
	r, g, b, a := color.Premultiplied()
	for i, m := range mask {
		o := i * frame.RGBAChannels
		if m == class {
			dst[o+0], dst[o+1], dst[o+2], dst[o+3] = r, g, b, a
		} else {
			dst[o+0], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, 0
		}
	}
}
