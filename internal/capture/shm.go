package capture

import (
	"errors"
	"time"

	"github.com/BurntSushi/xgb"
	mshm "github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/gen2brain/shm"

	"github.com/snapgrab/snapgrab/internal/logger"
)

// shmBackend grabs full frames through the MIT-SHM extension. The server
// writes each frame straight into a shared SysV memory segment, so the
// per-frame cost is one request round trip plus one copy out of the
// segment. Requires a local X server with the extension present.
type shmBackend struct {
	display string
	timeout time.Duration

	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	seg    mshm.Seg
	data   []byte
	pitch  int
	dims   Dimensions
}

func newSHMBackend(display string, timeout time.Duration) *shmBackend {
	return &shmBackend{display: display, timeout: timeout}
}

func (b *shmBackend) Name() string { return "mit-shm" }

// Initialize connects to the X server, probes the MIT-SHM extension, and
// attaches a segment large enough for one full-screen frame. Every
// failure releases whatever was acquired before it.
func (b *shmBackend) Initialize() (Dimensions, error) {
	conn, err := xgb.NewConnDisplay(b.display)
	if err != nil {
		return Dimensions{}, &InitError{Stage: "display connection", Err: err}
	}

	if err := mshm.Init(conn); err != nil {
		conn.Close()
		return Dimensions{}, &InitError{Stage: "MIT-SHM extension", Err: err}
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	width := int(screen.WidthInPixels)
	height := int(screen.HeightInPixels)

	pitch, err := rowPitch(setup, screen.RootDepth, width)
	if err != nil {
		conn.Close()
		return Dimensions{}, &InitError{Stage: "pixmap format", Err: err}
	}

	shmID, err := shm.Get(shm.IPC_PRIVATE, pitch*height, shm.IPC_CREAT|0600)
	if err != nil {
		conn.Close()
		return Dimensions{}, &InitError{Stage: "shared memory segment", Err: err}
	}

	data, err := shm.At(shmID, 0, 0)
	if err != nil {
		shm.Rm(shmID)
		conn.Close()
		return Dimensions{}, &InitError{Stage: "segment mapping", Err: err}
	}

	seg, err := mshm.NewSegId(conn)
	if err != nil {
		shm.Dt(data)
		shm.Rm(shmID)
		conn.Close()
		return Dimensions{}, &InitError{Stage: "segment id", Err: err}
	}

	if err := mshm.AttachChecked(conn, seg, uint32(shmID), false).Check(); err != nil {
		shm.Dt(data)
		shm.Rm(shmID)
		conn.Close()
		return Dimensions{}, &InitError{Stage: "segment attach", Err: err}
	}

	// Mark the segment for removal now. It stays mapped until both sides
	// detach, and cannot outlive the process.
	shm.Rm(shmID)

	b.conn = conn
	b.screen = screen
	b.seg = seg
	b.data = data
	b.pitch = pitch
	b.dims = Dimensions{Width: uint32(width), Height: uint32(height)}

	logger.WithComponent("capture").Debug().
		Uint32("width", b.dims.Width).
		Uint32("height", b.dims.Height).
		Int("pitch", pitch).
		Msg("MIT-SHM backend initialized")

	return b.dims, nil
}

// AcquireFrame asks the server to write the current root window contents
// into the shared segment and waits up to the configured timeout for the
// reply. The frame is copied out of the segment so the returned buffer
// stays valid across later acquisitions.
func (b *shmBackend) AcquireFrame() (*Frame, error) {
	if b.conn == nil {
		return nil, &CaptureFailedError{Op: "shm acquire", Err: errors.New("backend not initialized")}
	}

	cookie := mshm.GetImage(
		b.conn,
		xproto.Drawable(b.screen.Root),
		0, 0,
		b.screen.WidthInPixels, b.screen.HeightInPixels,
		0xffffffff,
		byte(xproto.ImageFormatZPixmap),
		b.seg, 0,
	)

	type imageReply struct {
		reply *mshm.GetImageReply
		err   error
	}
	done := make(chan imageReply, 1)
	go func() {
		reply, err := cookie.Reply()
		done <- imageReply{reply, err}
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		// The reply goroutine stays blocked until Close drops the
		// connection; the buffered channel lets it exit then.
		return nil, &CaptureFailedError{Op: "frame wait", Err: ErrFrameTimeout}
	case r := <-done:
		if r.err != nil {
			return nil, &CaptureFailedError{Op: "shm image", Err: r.err}
		}
	}

	size := b.pitch * int(b.dims.Height)
	if size > len(b.data) {
		size = len(b.data)
	}
	out := make([]byte, size)
	copy(out, b.data[:size])

	return &Frame{
		Data:   out,
		Width:  b.dims.Width,
		Height: b.dims.Height,
		Stride: b.pitch,
		Order:  OrderBGRA,
	}, nil
}

// Close detaches the segment on both sides and drops the connection.
// Release failures are ignored; the kernel reaps the segment once the
// last mapping is gone. Safe to call repeatedly and after a partial
// initialization.
func (b *shmBackend) Close() error {
	if b.conn != nil {
		mshm.Detach(b.conn, b.seg)
		b.conn.Close()
		b.conn = nil
	}
	if b.data != nil {
		shm.Dt(b.data)
		b.data = nil
	}
	return nil
}
