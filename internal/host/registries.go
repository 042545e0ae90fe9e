package host

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-dynalite/internal/device"
	"github.com/nerrad567/gray-logic-dynalite/internal/location"
)

// AreaRegistry adapts a location.Repository to dynalite.AreaRegistry.
type AreaRegistry struct {
	repo location.Repository
}

// NewAreaRegistry wraps repo.
func NewAreaRegistry(repo location.Repository) *AreaRegistry {
	return &AreaRegistry{repo: repo}
}

// LookupArea finds an area by name, ignoring case.
func (a *AreaRegistry) LookupArea(ctx context.Context, name string) (string, bool, error) {
	area, err := a.repo.GetAreaByName(ctx, name)
	if errors.Is(err, location.ErrAreaNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return area.ID, true, nil
}

// CreateArea creates an area and returns its ID. If another bridge created
// the same name first, the existing area is returned.
func (a *AreaRegistry) CreateArea(ctx context.Context, name string) (string, error) {
	area, err := a.repo.CreateArea(ctx, name)
	if errors.Is(err, location.ErrAreaExists) {
		area, err = a.repo.GetAreaByName(ctx, name)
	}
	if err != nil {
		return "", err
	}
	return area.ID, nil
}

// DeviceRegistry adapts a device.Registry to dynalite.DeviceRegistry.
type DeviceRegistry struct {
	reg *device.Registry
}

// NewDeviceRegistry wraps reg.
func NewDeviceRegistry(reg *device.Registry) *DeviceRegistry {
	return &DeviceRegistry{reg: reg}
}

// LookupDevice finds the device backing an entity unique ID.
func (d *DeviceRegistry) LookupDevice(ctx context.Context, uniqueID string) (string, bool, error) {
	id, err := d.reg.DeviceIDForEntity(ctx, uniqueID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SetDeviceArea links a device to an area.
func (d *DeviceRegistry) SetDeviceArea(ctx context.Context, deviceID, areaID string) error {
	return d.reg.SetDeviceArea(ctx, deviceID, areaID)
}
