package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches an ID or unique ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID or unique
	// ID is already stored.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a seed fails validation.
	ErrInvalidDevice = errors.New("device: invalid")
)
