// Package capture grabs pixel data from an X11 display on demand.
//
// Two backends produce full-screen frames: an accelerated MIT-SHM path that
// has the server write frames straight into shared memory, and a fallback
// path that blits the screen into a server-side pixmap and reads it back.
// The Engine owns backend selection and lifecycle, extracts caller-requested
// sub-regions, and normalizes pixels to RGBA. AsyncEngine makes one engine
// safe to share between goroutines.
package capture

// PixelOrder identifies the per-pixel channel layout a backend emits.
type PixelOrder int

const (
	// OrderRGBA is the canonical order handed to callers: R, G, B, A.
	OrderRGBA PixelOrder = iota
	// OrderBGRA is the native order of X11 ZPixmap data on depth-24/32
	// little-endian visuals. The fourth byte is undefined on depth 24.
	OrderBGRA
)

// Dimensions is a display's full resolution in pixels.
type Dimensions struct {
	Width  uint32
	Height uint32
}

// Frame is one full-screen grab as produced by a backend. Stride is the
// byte length of one pixel row and can exceed Width*4 when the server pads
// scanlines; rows must be indexed by Stride, never by Width.
type Frame struct {
	Data   []byte
	Width  uint32
	Height uint32
	Stride int
	Order  PixelOrder
}

// Backend produces full-screen frames for the Engine. Implementations are
// not safe for concurrent use.
type Backend interface {
	// Initialize acquires the backend's display resources and returns the
	// full-screen dimensions.
	Initialize() (Dimensions, error)

	// AcquireFrame returns the current screen contents. After a failure the
	// backend's resources are presumed stale; the engine closes and
	// reinitializes rather than retrying on the same handles.
	AcquireFrame() (*Frame, error)

	// Name returns a human-readable backend name.
	Name() string

	// Close releases all backend resources. It is safe to call repeatedly.
	Close() error
}
