package dynalite

import "errors"

// Domain errors for the Dynalite bridge package.
var (
	// ErrNotReady is returned by Setup when the protocol client could not be
	// started. The caller may retry Setup later.
	ErrNotReady = errors.New("dynalite: bridge not ready")

	// ErrAlreadySetup is returned when Setup is called on a bridge that is
	// connecting or connected.
	ErrAlreadySetup = errors.New("dynalite: bridge already set up")

	// ErrTornDown is returned when a bridge is unloaded while Setup is still
	// in progress.
	ErrTornDown = errors.New("dynalite: bridge torn down")

	// ErrHostMismatch is returned when a reloaded configuration targets a
	// different host than the running bridge.
	ErrHostMismatch = errors.New("dynalite: configuration host does not match bridge")

	// ErrRegistriesRequired is returned when the area policy needs the area
	// and device registries but they were not supplied.
	ErrRegistriesRequired = errors.New("dynalite: area and device registries required")

	// ErrUnknownCategory is returned for an entity category outside
	// light, switch and cover.
	ErrUnknownCategory = errors.New("dynalite: unknown entity category")

	// ErrNilCallback is returned when registering a nil add-entities callback.
	ErrNilCallback = errors.New("dynalite: nil add-entities callback")

	// ErrQueueReset is returned when an entity is offered to a registration
	// queue that has been reset since the entity was discovered.
	ErrQueueReset = errors.New("dynalite: registration queue was reset")

	// ErrDuplicateEntity is returned when an entity with the same key is
	// already present in the lookup table.
	ErrDuplicateEntity = errors.New("dynalite: duplicate entity")

	// ErrUnknownEventType is returned when decoding an event type the bridge
	// does not handle.
	ErrUnknownEventType = errors.New("dynalite: unknown event type")

	// ErrMalformedEvent is returned when an event is missing a required
	// attribute or carries one of the wrong type.
	ErrMalformedEvent = errors.New("dynalite: malformed event")

	// ErrTiltUnsupported is returned for tilt operations on a cover without
	// tilt.
	ErrTiltUnsupported = errors.New("dynalite: cover does not support tilt")

	// ErrUnsupportedCommand is returned when a device handle cannot perform
	// the requested operation.
	ErrUnsupportedCommand = errors.New("dynalite: unsupported command")

	// ErrGatewayUnavailable is returned when the gateway transport is not
	// connected.
	ErrGatewayUnavailable = errors.New("dynalite: gateway unavailable")
)
