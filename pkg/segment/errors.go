package segment

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelLoad matches every FatalConfigError.
	ErrModelLoad = errors.New("segment: model failed to load")

	// ErrBufferSize matches every BufferSizeError.
	ErrBufferSize = errors.New("segment: output buffer size mismatch")

	// ErrInvoke matches every InvokeError.
	ErrInvoke = errors.New("segment: model invocation failed")

	// ErrReleased is returned when a buffer is released twice.
	ErrReleased = errors.New("segment: buffer already released")

	// ErrNotLoaded is returned by models used before Load.
	ErrNotLoaded = errors.New("segment: model not loaded")

	// ErrInputSize is returned by models given an input of the wrong shape.
	ErrInputSize = errors.New("segment: model input size mismatch")
)

// FatalConfigError reports a model that could not be loaded. The process must
// not continue without a model.
type FatalConfigError struct {
	Model string
	Err   error
}

// Error implements the error interface.
func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("segment [%s]: fatal: model load: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrModelLoad.
func (e *FatalConfigError) Is(target error) bool {
	return target == ErrModelLoad
}

// BufferSizeError reports a model output whose size is not Side×Side×4.
type BufferSizeError struct {
	Got  int
	Want int
}

// Error implements the error interface.
func (e *BufferSizeError) Error() string {
	return fmt.Sprintf("segment: output buffer is %d bytes, want %d", e.Got, e.Want)
}

// Is reports whether target is ErrBufferSize.
func (e *BufferSizeError) Is(target error) bool {
	return target == ErrBufferSize
}

// InvokeError wraps a per-frame model failure.
type InvokeError struct {
	Err error
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	return fmt.Sprintf("segment: invoke: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *InvokeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvoke.
func (e *InvokeError) Is(target error) bool {
	return target == ErrInvoke
}
