package capture

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/kbinani/screenshot"

	"github.com/snapgrab/snapgrab/internal/logger"
)

// blitBackend captures the screen without MIT-SHM. Each frame is blitted
// into a server-side pixmap and read back over the wire. Slower than the
// shared memory path but works against any X server, remote displays
// included.
type blitBackend struct {
	display string

	conn    *xgb.Conn
	screen  *xproto.ScreenInfo
	originX int16
	originY int16
	width   uint16
	height  uint16
	pitch   int
	dims    Dimensions
}

func newBlitBackend(display string) *blitBackend {
	return &blitBackend{display: display}
}

func (b *blitBackend) Name() string { return "pixmap-blit" }

// Initialize resolves the primary display's bounds and opens the
// backend's own X connection.
func (b *blitBackend) Initialize() (Dimensions, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return Dimensions{}, &ResourceError{Resource: "display", Err: errors.New("no active displays found")}
	}
	bounds := screenshot.GetDisplayBounds(0)
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Dimensions{}, &ResourceError{Resource: "display", Err: fmt.Errorf("primary display reports empty bounds %v", bounds)}
	}

	conn, err := xgb.NewConnDisplay(b.display)
	if err != nil {
		return Dimensions{}, &ResourceError{Resource: "display connection", Err: err}
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	pitch, err := rowPitch(setup, screen.RootDepth, bounds.Dx())
	if err != nil {
		conn.Close()
		return Dimensions{}, &ResourceError{Resource: "pixmap format", Err: err}
	}

	b.conn = conn
	b.screen = screen
	b.originX = int16(bounds.Min.X)
	b.originY = int16(bounds.Min.Y)
	b.width = uint16(bounds.Dx())
	b.height = uint16(bounds.Dy())
	b.pitch = pitch
	b.dims = Dimensions{Width: uint32(bounds.Dx()), Height: uint32(bounds.Dy())}

	logger.WithComponent("capture").Debug().
		Uint32("width", b.dims.Width).
		Uint32("height", b.dims.Height).
		Int("pitch", pitch).
		Msg("pixmap blit backend initialized")

	return b.dims, nil
}

// AcquireFrame blits the primary display into a fresh off-screen pixmap
// and reads the pixels back. The pixmap and graphics context are released
// on every exit path.
func (b *blitBackend) AcquireFrame() (*Frame, error) {
	if b.conn == nil {
		return nil, &CaptureFailedError{Op: "blit acquire", Err: errors.New("backend not initialized")}
	}

	pixmap, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		return nil, &CaptureFailedError{Op: "pixmap id", Err: err}
	}
	gc, err := xproto.NewGcontextId(b.conn)
	if err != nil {
		return nil, &CaptureFailedError{Op: "gcontext id", Err: err}
	}

	err = xproto.CreatePixmapChecked(b.conn, b.screen.RootDepth, pixmap,
		xproto.Drawable(b.screen.Root), b.width, b.height).Check()
	if err != nil {
		return nil, &CaptureFailedError{Op: "create pixmap", Err: err}
	}
	defer xproto.FreePixmap(b.conn, pixmap)

	err = xproto.CreateGCChecked(b.conn, gc, xproto.Drawable(pixmap), 0, nil).Check()
	if err != nil {
		return nil, &CaptureFailedError{Op: "create gcontext", Err: err}
	}
	defer xproto.FreeGC(b.conn, gc)

	err = xproto.CopyAreaChecked(b.conn, xproto.Drawable(b.screen.Root), xproto.Drawable(pixmap), gc,
		b.originX, b.originY, 0, 0, b.width, b.height).Check()
	if err != nil {
		return nil, &CaptureFailedError{Op: "blit", Err: err}
	}

	reply, err := xproto.GetImage(b.conn, xproto.ImageFormatZPixmap, xproto.Drawable(pixmap),
		0, 0, b.width, b.height, 0xffffffff).Reply()
	if err != nil {
		return nil, &CaptureFailedError{Op: "pixmap readback", Err: err}
	}
	if want := b.pitch * int(b.height); len(reply.Data) < want {
		return nil, &CaptureFailedError{Op: "pixmap readback", Err: fmt.Errorf("short image data: %d bytes, want %d", len(reply.Data), want)}
	}

	return &Frame{
		Data:   reply.Data,
		Width:  b.dims.Width,
		Height: b.dims.Height,
		Stride: b.pitch,
		Order:  OrderBGRA,
	}, nil
}

// Close drops the X connection. Safe to call repeatedly.
func (b *blitBackend) Close() error {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}
