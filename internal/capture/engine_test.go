package capture

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend is a scriptable backend for engine tests.
type fakeBackend struct {
	name       string
	dims       Dimensions
	initErr    error
	acquireErr error
	frame      func() *Frame
	acquire    func() (*Frame, error)

	initCalls    int
	acquireCalls int
	closeCalls   int
}

func (f *fakeBackend) Initialize() (Dimensions, error) {
	f.initCalls++
	if f.initErr != nil {
		return Dimensions{}, f.initErr
	}
	return f.dims, nil
}

func (f *fakeBackend) AcquireFrame() (*Frame, error) {
	f.acquireCalls++
	if f.acquire != nil {
		return f.acquire()
	}
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return f.frame(), nil
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Close() error {
	f.closeCalls++
	return nil
}

// solidFrame builds BGRX frames filled with one pixel value, with pad
// extra stride bytes per row. The fourth byte is garbage on purpose;
// normalization must overwrite it.
func solidFrame(width, height uint32, pad int, b, g, r byte) func() *Frame {
	return func() *Frame {
		stride := int(width)*4 + pad
		data := make([]byte, stride*int(height))
		for y := 0; y < int(height); y++ {
			row := data[y*stride:]
			for x := 0; x < int(width); x++ {
				row[x*4] = b
				row[x*4+1] = g
				row[x*4+2] = r
				row[x*4+3] = 7
			}
		}
		return &Frame{Data: data, Width: width, Height: height, Stride: stride, Order: OrderBGRA}
	}
}

// coordFrame builds BGRX frames where each pixel encodes its own
// coordinates: B carries x, G carries y.
func coordFrame(width, height uint32, pad int) func() *Frame {
	return func() *Frame {
		stride := int(width)*4 + pad
		data := make([]byte, stride*int(height))
		for y := 0; y < int(height); y++ {
			row := data[y*stride:]
			for x := 0; x < int(width); x++ {
				row[x*4] = byte(x)
				row[x*4+1] = byte(y)
				row[x*4+2] = 0x5a
				row[x*4+3] = 7
			}
		}
		return &Frame{Data: data, Width: width, Height: height, Stride: stride, Order: OrderBGRA}
	}
}

type recordSaver struct {
	path   string
	width  uint32
	height uint32
	pixels []byte
	err    error
	calls  int
}

func (s *recordSaver) Save(path string, pixels []byte, width, height uint32) error {
	s.calls++
	s.path = path
	s.width = width
	s.height = height
	s.pixels = append([]byte(nil), pixels...)
	return s.err
}

func newTestEngine(accel, fallback *fakeBackend, cfg Config) *Engine {
	e := NewEngine(cfg)
	e.newAccelerated = func() Backend { return accel }
	e.newFallback = func() Backend { return fallback }
	return e
}

func hdBackend(name string) *fakeBackend {
	return &fakeBackend{
		name:  name,
		dims:  Dimensions{Width: 1920, Height: 1080},
		frame: solidFrame(1920, 1080, 0, 0x10, 0x20, 0x30),
	}
}

func TestEngineInitIdempotent(t *testing.T) {
	accel := hdBackend("accel")
	fallback := hdBackend("fallback")
	e := newTestEngine(accel, fallback, Config{})

	require.NoError(t, e.Init())
	require.NoError(t, e.Init())
	require.NoError(t, e.Init())

	require.Equal(t, 1, accel.initCalls)
	require.Equal(t, 0, fallback.initCalls)
	require.True(t, e.Initialized())
	require.Equal(t, "accel", e.ActiveBackend())
	require.Equal(t, Dimensions{Width: 1920, Height: 1080}, e.DisplayDimensions())
}

func TestEngineCaptureSelfInitializes(t *testing.T) {
	accel := hdBackend("accel")
	e := newTestEngine(accel, hdBackend("fallback"), Config{})

	require.False(t, e.Initialized())
	require.Equal(t, "none", e.ActiveBackend())

	data, err := e.Capture(Region{X: 0, Y: 0, Width: 64, Height: 64}, "")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.True(t, e.Initialized())
	require.Equal(t, 1, accel.initCalls)
}

func TestEngineCaptureInvalidRegion(t *testing.T) {
	accel := hdBackend("accel")
	e := newTestEngine(accel, hdBackend("fallback"), Config{})
	require.NoError(t, e.Init())

	cases := []struct {
		name   string
		region Region
	}{
		{"negative origin", Region{X: -1, Y: 0, Width: 100, Height: 100}},
		{"zero size", Region{X: 0, Y: 0, Width: 0, Height: 0}},
		{"past right edge", Region{X: 1900, Y: 0, Width: 100, Height: 100}},
		{"past bottom edge", Region{X: 0, Y: 1000, Width: 100, Height: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := e.Capture(tc.region, "")
			require.ErrorIs(t, err, ErrInvalidRegion)
			require.Nil(t, data)
		})
	}

	// Rejected regions never reach the backend and leave the engine
	// initialized.
	require.Equal(t, 0, accel.acquireCalls)
	require.True(t, e.Initialized())
	require.Equal(t, "accel", e.ActiveBackend())
}

func TestEngineCaptureNormalizesPixels(t *testing.T) {
	// Source rows carry 64 bytes of stride padding; pixels are BGRX
	// with garbage in the fourth byte.
	accel := &fakeBackend{
		name:  "accel",
		dims:  Dimensions{Width: 1920, Height: 1080},
		frame: solidFrame(1920, 1080, 64, 0x10, 0x20, 0x30),
	}
	e := newTestEngine(accel, hdBackend("fallback"), Config{})

	data, err := e.Capture(Region{X: 0, Y: 0, Width: 800, Height: 600}, "")
	require.NoError(t, err)
	require.Equal(t, uint32(800), data.Width)
	require.Equal(t, uint32(600), data.Height)
	require.Len(t, data.Pixels, 800*600*4)
	require.False(t, data.Timestamp.IsZero())

	for i := 0; i < len(data.Pixels); i += 4 {
		if data.Pixels[i] != 0x30 || data.Pixels[i+1] != 0x20 || data.Pixels[i+2] != 0x10 || data.Pixels[i+3] != 0xff {
			t.Fatalf("pixel %d = %v, want [0x30 0x20 0x10 0xff]", i/4, data.Pixels[i:i+4])
		}
	}
}

func TestEngineCaptureRegionOffsets(t *testing.T) {
	accel := &fakeBackend{
		name:  "accel",
		dims:  Dimensions{Width: 300, Height: 200},
		frame: coordFrame(300, 200, 12),
	}
	e := newTestEngine(accel, hdBackend("fallback"), Config{})

	region := Region{X: 100, Y: 50, Width: 16, Height: 8}
	data, err := e.Capture(region, "")
	require.NoError(t, err)

	for py := 0; py < int(region.Height); py++ {
		for px := 0; px < int(region.Width); px++ {
			i := (py*int(region.Width) + px) * 4
			wantB := byte(100 + px)
			wantG := byte(50 + py)
			if data.Pixels[i] != 0x5a || data.Pixels[i+1] != wantG || data.Pixels[i+2] != wantB || data.Pixels[i+3] != 0xff {
				t.Fatalf("pixel (%d,%d) = %v, want [0x5a %#x %#x 0xff]", px, py, data.Pixels[i:i+4], wantG, wantB)
			}
		}
	}
}

func TestExtractRegionClipsToFrame(t *testing.T) {
	// A region validated against a stale display size can hang past the
	// frame the backend actually delivered. Out of frame pixels stay
	// zero and come back opaque black after normalization.
	frame := solidFrame(100, 100, 0, 9, 8, 7)()
	region := Region{X: 90, Y: 95, Width: 20, Height: 10}

	pixels := extractRegion(frame, region)
	normalizeRGBA(pixels, frame.Order)
	require.Len(t, pixels, 20*10*4)

	at := func(x, y int) []byte {
		i := (y*20 + x) * 4
		return pixels[i : i+4]
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			inFrame := x < 10 && y < 5
			px := at(x, y)
			if inFrame {
				require.Equal(t, []byte{7, 8, 9, 0xff}, px, "pixel (%d,%d)", x, y)
			} else {
				require.Equal(t, []byte{0, 0, 0, 0xff}, px, "pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestEngineFallsBackWhenAcceleratedInitFails(t *testing.T) {
	accel := &fakeBackend{
		name:    "accel",
		initErr: &InitError{Stage: "MIT-SHM extension", Err: errors.New("not present")},
	}
	fallback := &fakeBackend{
		name:  "fallback",
		dims:  Dimensions{Width: 1280, Height: 720},
		frame: solidFrame(1280, 720, 0, 1, 2, 3),
	}
	e := newTestEngine(accel, fallback, Config{})

	data, err := e.Capture(Region{X: 0, Y: 0, Width: 640, Height: 480}, "")
	require.NoError(t, err)
	require.Len(t, data.Pixels, 640*480*4)
	require.Equal(t, "fallback", e.ActiveBackend())
	require.Equal(t, 1, accel.initCalls)
	require.Equal(t, 1, accel.closeCalls)

	// Demotion is permanent: the accelerated path is never probed again.
	_, err = e.Capture(Region{X: 0, Y: 0, Width: 100, Height: 100}, "")
	require.NoError(t, err)
	require.Equal(t, 1, accel.initCalls)
}

func TestEngineDemotesOnAcquireFailure(t *testing.T) {
	accel := &fakeBackend{
		name:       "accel",
		dims:       Dimensions{Width: 1920, Height: 1080},
		acquireErr: &CaptureFailedError{Op: "frame wait", Err: ErrFrameTimeout},
	}
	fallback := hdBackend("fallback")
	e := newTestEngine(accel, fallback, Config{})

	require.NoError(t, e.Init())
	require.Equal(t, "accel", e.ActiveBackend())

	// The failed accelerated acquisition is retried on the fallback
	// within the same call.
	data, err := e.Capture(Region{X: 0, Y: 0, Width: 800, Height: 600}, "")
	require.NoError(t, err)
	require.Len(t, data.Pixels, 800*600*4)
	require.Equal(t, "fallback", e.ActiveBackend())
	require.Equal(t, 1, accel.acquireCalls)
	require.Equal(t, 1, accel.closeCalls)
	require.Equal(t, 1, fallback.initCalls)

	_, err = e.Capture(Region{X: 0, Y: 0, Width: 100, Height: 100}, "")
	require.NoError(t, err)
	require.Equal(t, 1, accel.acquireCalls)
	require.Equal(t, 1, accel.initCalls)
}

func TestEngineFallbackFailureIsTerminalForCall(t *testing.T) {
	accel := &fakeBackend{
		name:    "accel",
		initErr: &InitError{Stage: "display connection", Err: errors.New("refused")},
	}
	fallback := &fakeBackend{
		name:       "fallback",
		dims:       Dimensions{Width: 1280, Height: 720},
		acquireErr: &CaptureFailedError{Op: "blit", Err: errors.New("bad drawable")},
	}
	e := newTestEngine(accel, fallback, Config{})

	data, err := e.Capture(Region{X: 0, Y: 0, Width: 100, Height: 100}, "")
	require.Nil(t, data)
	var capErr *CaptureFailedError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, "blit", capErr.Op)

	// The engine tears down and reinitializes lazily on the next call.
	require.False(t, e.Initialized())
	require.Equal(t, "none", e.ActiveBackend())
	require.Equal(t, 1, fallback.closeCalls)

	fallback.acquireErr = nil
	fallback.frame = solidFrame(1280, 720, 0, 1, 2, 3)
	data, err = e.Capture(Region{X: 0, Y: 0, Width: 100, Height: 100}, "")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Equal(t, 2, fallback.initCalls)
}

func TestEngineForceFallback(t *testing.T) {
	accelConstructed := 0
	fallback := hdBackend("fallback")

	e := NewEngine(Config{ForceFallback: true})
	e.newAccelerated = func() Backend {
		accelConstructed++
		return hdBackend("accel")
	}
	e.newFallback = func() Backend { return fallback }

	require.NoError(t, e.Init())
	require.Equal(t, 0, accelConstructed)
	require.Equal(t, "fallback", e.ActiveBackend())
}

func TestEngineTimeoutClamping(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero takes default", 0, DefaultFrameTimeout},
		{"below minimum", time.Millisecond, MinFrameTimeout},
		{"above maximum", time.Minute, MaxFrameTimeout},
		{"in range", 250 * time.Millisecond, 250 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(Config{FrameTimeout: tc.in})
			require.Equal(t, tc.want, e.cfg.FrameTimeout)
		})
	}
}

func TestEngineSaveDelegatesToSaver(t *testing.T) {
	saver := &recordSaver{}
	accel := hdBackend("accel")
	e := newTestEngine(accel, hdBackend("fallback"), Config{Saver: saver})

	path := filepath.Join(t.TempDir(), "shot.png")
	data, err := e.Capture(Region{X: 10, Y: 20, Width: 100, Height: 50}, path)
	require.NoError(t, err)

	require.Equal(t, 1, saver.calls)
	require.Equal(t, path, saver.path)
	require.Equal(t, uint32(100), saver.width)
	require.Equal(t, uint32(50), saver.height)
	require.Equal(t, data.Pixels, saver.pixels)
}

func TestEngineCaptureWithoutPathSkipsSaver(t *testing.T) {
	saver := &recordSaver{}
	e := newTestEngine(hdBackend("accel"), hdBackend("fallback"), Config{Saver: saver})

	_, err := e.Capture(Region{X: 0, Y: 0, Width: 10, Height: 10}, "")
	require.NoError(t, err)
	require.Equal(t, 0, saver.calls)
}

func TestEngineSaveFailureSurfaces(t *testing.T) {
	saver := &recordSaver{err: errors.New("disk full")}
	accel := hdBackend("accel")
	e := newTestEngine(accel, hdBackend("fallback"), Config{Saver: saver})

	data, err := e.Capture(Region{X: 0, Y: 0, Width: 10, Height: 10}, "shot.png")
	require.Nil(t, data)
	var capErr *CaptureFailedError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, "save image", capErr.Op)
	require.ErrorContains(t, err, "disk full")

	// A persistence failure does not poison the engine.
	require.True(t, e.Initialized())
	saver.err = nil
	_, err = e.Capture(Region{X: 0, Y: 0, Width: 10, Height: 10}, "shot.png")
	require.NoError(t, err)
}

func TestEngineCloseReleasesBackend(t *testing.T) {
	accel := hdBackend("accel")
	e := newTestEngine(accel, hdBackend("fallback"), Config{})

	require.NoError(t, e.Init())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	require.False(t, e.Initialized())
	require.Equal(t, "none", e.ActiveBackend())
	require.Equal(t, 1, accel.closeCalls)

	// Close does not demote; the next use tries acceleration again.
	_, err := e.Capture(Region{X: 0, Y: 0, Width: 10, Height: 10}, "")
	require.NoError(t, err)
	require.Equal(t, 2, accel.initCalls)
	require.Equal(t, "accel", e.ActiveBackend())
}
