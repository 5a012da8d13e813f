package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors callers can match with errors.Is.
var (
	// ErrInvalidRegion reports a capture rectangle that is empty, has a
	// negative origin, or does not lie fully inside the display bounds.
	ErrInvalidRegion = errors.New("invalid capture region")

	// ErrFrameTimeout reports that the accelerated backend produced no
	// frame within the configured wait. The condition is transient and
	// the call may be retried.
	ErrFrameTimeout = errors.New("timed out waiting for frame")

	// ErrEngineClosed reports a call against a facade that has been shut
	// down.
	ErrEngineClosed = errors.New("capture engine closed")
)

// InitError reports that a backend could not bring up its display
// resources. Stage names the step that failed.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialization error: %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// CaptureFailedError reports that a single capture attempt failed. Op
// names the operation that failed.
type CaptureFailedError struct {
	Op  string
	Err error
}

func (e *CaptureFailedError) Error() string {
	return fmt.Sprintf("capture error: %s: %v", e.Op, e.Err)
}

func (e *CaptureFailedError) Unwrap() error { return e.Err }

// ResourceError reports an OS handle or synchronization failure outside
// of a specific capture attempt.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error: %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
