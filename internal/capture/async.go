package capture

import "sync"

// Result is the outcome of one asynchronous capture call.
type Result struct {
	Data *CaptureData
	Err  error
}

// AsyncEngine shares one Engine between goroutines. Each call runs on
// its own goroutine and serializes on an internal lock, so at most one
// operation touches the engine at a time while callers stay unblocked.
// Every call delivers exactly one value on its returned channel.
type AsyncEngine struct {
	mu     sync.Mutex
	engine *Engine
	closed bool
}

// NewAsyncEngine wraps engine. The engine must not be used directly once
// wrapped.
func NewAsyncEngine(engine *Engine) *AsyncEngine {
	return &AsyncEngine{engine: engine}
}

// Init initializes the underlying engine off the calling goroutine.
func (a *AsyncEngine) Init() <-chan error {
	out := make(chan error, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed {
			out <- &ResourceError{Resource: "capture engine", Err: ErrEngineClosed}
			return
		}
		out <- a.engine.Init()
	}()
	return out
}

// Capture schedules one capture of region, persisted to savePath when
// non-empty. The channel receives the complete result once the call has
// had its turn on the engine.
func (a *AsyncEngine) Capture(region Region, savePath string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed {
			out <- Result{Err: &ResourceError{Resource: "capture engine", Err: ErrEngineClosed}}
			return
		}
		data, err := a.engine.Capture(region, savePath)
		out <- Result{Data: data, Err: err}
	}()
	return out
}

// Close waits for any in-flight call, releases the engine, and makes
// every later call fail with a ResourceError. The facade cannot be
// reopened.
func (a *AsyncEngine) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.engine.Close()
}
