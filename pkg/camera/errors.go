package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrDeviceUnavailable matches every DeviceUnavailableError.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrSessionStopped is returned by sources read after Stop.
	ErrSessionStopped = errors.New("camera: session stopped")

	// ErrNotRunning is returned when no session is active.
	ErrNotRunning = errors.New("camera: no active session")
)

// DeviceUnavailableError reports that the camera for a facing is not present
// or could not be opened. The session is not started.
type DeviceUnavailableError struct {
	Facing Facing
	Device int
	Err    error
}

// Error implements the error interface.
func (e *DeviceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera: %s camera (device %d) unavailable: %v", e.Facing, e.Device, e.Err)
	}
	return fmt.Sprintf("camera: %s camera (device %d) unavailable", e.Facing, e.Device)
}

// Unwrap returns the underlying error.
func (e *DeviceUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDeviceUnavailable.
func (e *DeviceUnavailableError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}
