package dynalite

import (
	"context"
	"fmt"
	"strings"
)

// AreaPolicy controls how entities are linked to house areas.
type AreaPolicy string

// Area policies.
const (
	// AreaManual leaves area assignment to the user.
	AreaManual AreaPolicy = "manual"
	// AreaAssign links entities to areas that already exist.
	AreaAssign AreaPolicy = "assign"
	// AreaAuto links entities and creates missing areas.
	AreaAuto AreaPolicy = "auto"
)

// ParseAreaPolicy parses a policy name, case-insensitively.
func ParseAreaPolicy(s string) (AreaPolicy, error) {
	switch p := AreaPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AreaManual, AreaAssign, AreaAuto:
		return p, nil
	default:
		return "", fmt.Errorf("must be one of manual, assign, auto; got %q", s)
	}
}

// AreaRegistry is the host's registry of house areas.
type AreaRegistry interface {
	// LookupArea finds an area by name. found is false if it does not exist.
	LookupArea(ctx context.Context, name string) (id string, found bool, err error)
	// CreateArea creates an area and returns its ID.
	CreateArea(ctx context.Context, name string) (id string, err error)
}

// DeviceRegistry is the host's registry of physical devices.
type DeviceRegistry interface {
	// LookupDevice finds the device backing an entity unique ID.
	LookupDevice(ctx context.Context, uniqueID string) (id string, found bool, err error)
	// SetDeviceArea links a device to an area.
	SetDeviceArea(ctx context.Context, deviceID, areaID string) error
}

// AssignResult describes what EntityAdded did.
type AssignResult int

// Assignment outcomes.
const (
	AssignSkippedManual AssignResult = iota
	AssignSkippedNoTarget
	AssignSkippedNoDevice
	AssignSkippedNoArea
	AssignLinked
	AssignLinkedCreated
	AssignFailed
)

func (r AssignResult) String() string {
	switch r {
	case AssignSkippedManual:
		return "skipped_manual"
	case AssignSkippedNoTarget:
		return "skipped_no_target"
	case AssignSkippedNoDevice:
		return "skipped_no_device"
	case AssignSkippedNoArea:
		return "skipped_no_area"
	case AssignLinked:
		return "linked"
	case AssignLinkedCreated:
		return "linked_created"
	default:
		return "failed"
	}
}

// EntityAdded links a newly adopted entity to its house area according to
// the bridge's area policy. The host calls it once per entity.
//
// A missing device is logged and skipped; it does not fail the bridge.
// Lookup and creation are serialized so that concurrent calls for the same
// area name create it once.
//
// Parameters:
//   - ctx: Bounds the registry calls
//   - e: The entity the host just adopted
//
// Returns:
//   - AssignResult: The outcome
//   - error: Non-nil only when a registry call failed
func (b *Bridge) EntityAdded(ctx context.Context, e Entity) (AssignResult, error) {
	b.mu.Lock()
	policy := b.cfg.AreaCreate
	b.mu.Unlock()

	if policy == AreaManual || policy == "" {
		return AssignSkippedManual, nil
	}

	target := strings.TrimSpace(e.HouseArea())
	if target == "" {
		return AssignSkippedNoTarget, nil
	}

	deviceID, found, err := b.devices.LookupDevice(ctx, e.UniqueID())
	if err != nil {
		return AssignFailed, fmt.Errorf("looking up device for %s: %w", e.UniqueID(), err)
	}
	if !found {
		b.logError("no device for entity, skipping area assignment", nil,
			"unique_id", e.UniqueID(),
			"area", target,
		)
		return AssignSkippedNoDevice, nil
	}

	b.areaMu.Lock()
	defer b.areaMu.Unlock()

	areaID, found, err := b.areas.LookupArea(ctx, target)
	if err != nil {
		return AssignFailed, fmt.Errorf("looking up area %q: %w", target, err)
	}

	result := AssignLinked
	if !found {
		if policy != AreaAuto {
			b.logDebug("area does not exist, not assigning",
				"unique_id", e.UniqueID(),
				"area", target,
			)
			return AssignSkippedNoArea, nil
		}
		areaID, err = b.areas.CreateArea(ctx, target)
		if err != nil {
			return AssignFailed, fmt.Errorf("creating area %q: %w", target, err)
		}
		result = AssignLinkedCreated
		b.logInfo("created area", "area", target, "area_id", areaID)
	}

	if err := b.devices.SetDeviceArea(ctx, deviceID, areaID); err != nil {
		return AssignFailed, fmt.Errorf("linking device %s to area %q: %w", deviceID, target, err)
	}

	b.logDebug("entity assigned to area",
		"unique_id", e.UniqueID(),
		"area", target,
		"result", result.String(),
	)
	return result, nil
}
