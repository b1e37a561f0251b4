// Package capture defines the video source boundary of the heart-rate
// pipeline: a Source hands out at most one live Device at a time and the
// Device yields decoded frames until it is released.
package capture

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable is returned by Acquire when the capture device cannot
// be opened, permission is denied, or it is already held by another session.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrDeviceReleased is returned by CurrentFrame after Release.
var ErrDeviceReleased = errors.New("capture device released")

// Source acquires the capture device.
type Source interface {
	// Acquire opens the device. Errors wrap ErrDeviceUnavailable.
	Acquire(ctx context.Context) (Device, error)
	// Name identifies the source in logs and status output.
	Name() string
}

// Device is a live, exclusively held capture device.
type Device interface {
	// CurrentFrame returns the most recent decoded frame.
	CurrentFrame() (Frame, error)
	// Release gives the device back to its Source. It is idempotent; only the
	// first call releases the underlying resource.
	Release() error
}
