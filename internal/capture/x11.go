package capture

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// rowPitch returns the padded byte length of one pixel row for the given
// depth, per the server's pixmap format table. ZPixmap data is laid out
// with this pitch, which exceeds width*4 whenever the scanline pad
// demands it. Only 32 bits-per-pixel formats are supported; everything
// downstream assumes four bytes per pixel.
func rowPitch(setup *xproto.SetupInfo, depth byte, width int) (int, error) {
	for _, format := range setup.PixmapFormats {
		if format.Depth != depth {
			continue
		}
		if format.BitsPerPixel != 32 {
			return 0, fmt.Errorf("unsupported bits-per-pixel %d for depth %d", format.BitsPerPixel, depth)
		}
		pad := int(format.ScanlinePad) / 8
		if pad == 0 {
			pad = 4
		}
		return ((width*4 + pad - 1) / pad) * pad, nil
	}
	return 0, fmt.Errorf("no pixmap format for depth %d", depth)
}
