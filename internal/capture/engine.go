package capture

import (
	"time"

	"github.com/snapgrab/snapgrab/internal/encoder"
	"github.com/snapgrab/snapgrab/internal/logger"
)

// Frame wait bounds for the accelerated path. Configured timeouts are
// clamped into [MinFrameTimeout, MaxFrameTimeout].
const (
	DefaultFrameTimeout = 500 * time.Millisecond
	MinFrameTimeout     = 100 * time.Millisecond
	MaxFrameTimeout     = 5 * time.Second
)

// Config controls engine construction. The zero value is usable: default
// frame timeout, automatic backend selection, persistence to files with
// the format picked by extension.
type Config struct {
	// Display selects the X display. Empty means $DISPLAY.
	Display string
	// FrameTimeout bounds the wait for a new accelerated frame.
	FrameTimeout time.Duration
	// ForceFallback skips the accelerated backend entirely.
	ForceFallback bool
	// JPEGQuality applies when a save path ends in .jpg or .jpeg.
	JPEGQuality int
	// Saver persists captures when a save path is given. Nil selects
	// the file encoder.
	Saver Saver
}

// Saver persists one normalized RGBA capture to a path.
type Saver interface {
	Save(path string, pixels []byte, width, height uint32) error
}

// CaptureData is one successful capture. The pixel buffer is owned by
// the caller and always holds Width*Height*4 bytes of RGBA with opaque
// alpha.
type CaptureData struct {
	Pixels    []byte
	Width     uint32
	Height    uint32
	Timestamp time.Time
}

type backendKind int

const (
	backendNone backendKind = iota
	backendAccelerated
	backendFallback
)

// Engine orchestrates backend selection and lifecycle, extracts requested
// regions from full frames, and normalizes pixels to RGBA. It is not safe
// for concurrent use; wrap it in an AsyncEngine to share it between
// goroutines.
type Engine struct {
	cfg   Config
	saver Saver

	initialized bool
	active      backendKind
	demoted     bool
	backend     Backend
	dims        Dimensions

	newAccelerated func() Backend
	newFallback    func() Backend
}

// NewEngine returns an engine that initializes lazily on first use.
func NewEngine(cfg Config) *Engine {
	if cfg.FrameTimeout == 0 {
		cfg.FrameTimeout = DefaultFrameTimeout
	} else if cfg.FrameTimeout < MinFrameTimeout {
		cfg.FrameTimeout = MinFrameTimeout
	} else if cfg.FrameTimeout > MaxFrameTimeout {
		cfg.FrameTimeout = MaxFrameTimeout
	}
	saver := cfg.Saver
	if saver == nil {
		saver = encoder.NewFileSaver(cfg.JPEGQuality)
	}

	e := &Engine{cfg: cfg, saver: saver}
	e.newAccelerated = func() Backend { return newSHMBackend(cfg.Display, cfg.FrameTimeout) }
	e.newFallback = func() Backend { return newBlitBackend(cfg.Display) }
	return e
}

// Init brings up a backend and caches the display dimensions. It is
// idempotent while a backend is live. The accelerated path is tried
// first unless the engine is configured fallback-only or was demoted;
// demotion is permanent for the engine's lifetime.
func (e *Engine) Init() error {
	if e.initialized {
		return nil
	}

	log := logger.WithComponent("capture")

	if !e.cfg.ForceFallback && !e.demoted {
		accel := e.newAccelerated()
		dims, err := accel.Initialize()
		if err == nil {
			e.backend = accel
			e.active = backendAccelerated
			e.dims = dims
			e.initialized = true
			log.Info().
				Str("backend", accel.Name()).
				Uint32("width", dims.Width).
				Uint32("height", dims.Height).
				Msg("capture engine initialized")
			return nil
		}
		accel.Close()
		e.demoted = true
		log.Warn().Err(err).Msg("accelerated backend unavailable, falling back")
	}

	fallback := e.newFallback()
	dims, err := fallback.Initialize()
	if err != nil {
		fallback.Close()
		return err
	}
	e.backend = fallback
	e.active = backendFallback
	e.dims = dims
	e.initialized = true
	log.Info().
		Str("backend", fallback.Name()).
		Uint32("width", dims.Width).
		Uint32("height", dims.Height).
		Msg("capture engine initialized")
	return nil
}

// Capture grabs the given region of the display and returns it as
// canonical RGBA. The engine initializes itself if needed. When savePath
// is non-empty the capture is also persisted through the engine's Saver,
// and a persistence failure fails the whole call even though the frame
// itself was acquired. An accelerated acquisition failure demotes the
// engine to the fallback backend for good and the capture is retried
// there once.
func (e *Engine) Capture(region Region, savePath string) (*CaptureData, error) {
	if err := e.Init(); err != nil {
		return nil, err
	}
	if err := region.Validate(e.dims); err != nil {
		return nil, err
	}

	frame, err := e.acquire()
	if err != nil {
		return nil, err
	}

	pixels := extractRegion(frame, region)
	normalizeRGBA(pixels, frame.Order)

	data := &CaptureData{
		Pixels:    pixels,
		Width:     region.Width,
		Height:    region.Height,
		Timestamp: time.Now(),
	}

	if savePath != "" {
		if err := e.saver.Save(savePath, data.Pixels, data.Width, data.Height); err != nil {
			return nil, &CaptureFailedError{Op: "save image", Err: err}
		}
	}
	return data, nil
}

// acquire obtains a full frame from the active backend. An accelerated
// failure demotes to the fallback and retries once; any failed
// acquisition tears the backend down so the next call reinitializes
// from scratch.
func (e *Engine) acquire() (*Frame, error) {
	frame, err := e.backend.AcquireFrame()
	if err == nil {
		return frame, nil
	}

	wasAccelerated := e.active == backendAccelerated
	e.teardown()

	if !wasAccelerated {
		return nil, err
	}

	e.demoted = true
	logger.WithComponent("capture").Warn().Err(err).
		Msg("accelerated acquisition failed, demoting to fallback")

	if err := e.Init(); err != nil {
		return nil, err
	}
	frame, err = e.backend.AcquireFrame()
	if err != nil {
		e.teardown()
		return nil, err
	}
	return frame, nil
}

// teardown releases the active backend. Release failures are ignored;
// they cannot affect the next initialization.
func (e *Engine) teardown() {
	if e.backend != nil {
		e.backend.Close()
		e.backend = nil
	}
	e.active = backendNone
	e.initialized = false
}

// Close releases all backend resources. The engine stays usable; the
// next call initializes lazily again.
func (e *Engine) Close() error {
	e.teardown()
	return nil
}

// Initialized reports whether a backend is currently live.
func (e *Engine) Initialized() bool { return e.initialized }

// ActiveBackend returns the name of the live backend, or "none".
func (e *Engine) ActiveBackend() string {
	if !e.initialized {
		return "none"
	}
	return e.backend.Name()
}

// DisplayDimensions returns the cached full display size. Meaningful
// once the engine has initialized.
func (e *Engine) DisplayDimensions() Dimensions { return e.dims }

// extractRegion copies one rectangle out of a full frame, indexing
// source rows by the frame's stride. Rows or columns that fall outside
// the frame, as happens when a cached display size disagrees with the
// actual grab, stay zero and read back as opaque black after
// normalization.
func extractRegion(frame *Frame, region Region) []byte {
	width := int(region.Width)
	height := int(region.Height)
	out := make([]byte, width*height*4)

	if int(region.X) >= int(frame.Width) {
		return out
	}
	cols := int(frame.Width) - int(region.X)
	if cols > width {
		cols = width
	}

	for y := 0; y < height; y++ {
		srcY := int(region.Y) + y
		if srcY >= int(frame.Height) {
			break
		}
		src := srcY*frame.Stride + int(region.X)*4
		if src >= len(frame.Data) {
			break
		}
		end := src + cols*4
		if end > len(frame.Data) {
			end = len(frame.Data)
		}
		copy(out[y*width*4:], frame.Data[src:end])
	}
	return out
}

// normalizeRGBA rewrites pixels in place into R,G,B,A byte order and
// forces alpha opaque. Both X paths produce BGRX where the fourth byte
// is undefined.
func normalizeRGBA(pixels []byte, order PixelOrder) {
	switch order {
	case OrderBGRA:
		for i := 0; i+3 < len(pixels); i += 4 {
			pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
			pixels[i+3] = 0xff
		}
	default:
		for i := 3; i < len(pixels); i += 4 {
			pixels[i] = 0xff
		}
	}
}

// Init constructs an engine from cfg and brings a backend up
// immediately.
func Init(cfg Config) (*Engine, error) {
	e := NewEngine(cfg)
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}

// InitAsync constructs a goroutine-safe engine from cfg and brings a
// backend up immediately.
func InitAsync(cfg Config) (*AsyncEngine, error) {
	a := NewAsyncEngine(NewEngine(cfg))
	if err := <-a.Init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
