package capture

import (
	"context"
	"fmt"
)

// DisabledSource is used when no camera is configured. Every Acquire fails
// with ErrDeviceUnavailable so the API can still serve history and manual
// entries.
type DisabledSource struct{}

// NewDisabledSource returns a Source that never yields a device.
func NewDisabledSource() DisabledSource { return DisabledSource{} }

// Name implements Source.
func (DisabledSource) Name() string { return "disabled" }

// Acquire implements Source.
func (DisabledSource) Acquire(context.Context) (Device, error) {
	return nil, fmt.Errorf("capture disabled: %w", ErrDeviceUnavailable)
}
