package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device lookups with caching and thread safety.
//
// The cache is keyed by unique ID, populated on startup via RefreshCache and
// kept in sync by the registry's own writes. Callers always receive copies.
type Registry struct {
	repo Repository

	cacheMu sync.RWMutex
	cache   map[string]*Device // by unique ID

	// ensureMu serialises EnsureDevice so two callers racing on the same
	// unique ID create one row.
	ensureMu sync.Mutex

	logger Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		cache[devices[i].UniqueID] = devices[i].Clone()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// EnsureDevice returns the device for seed.UniqueID, creating it first if
// it doesn't exist. created reports whether a row was inserted.
//
// Parameters:
//   - ctx: Context for cancellation
//   - seed: Identity, name and category of the entity
//
// Returns:
//   - *Device: The stored device (a copy)
//   - bool: true if the device was created by this call
//   - error: ErrInvalidDevice or a repository failure
func (r *Registry) EnsureDevice(ctx context.Context, seed Seed) (*Device, bool, error) {
	if err := seed.Validate(); err != nil {
		return nil, false, err
	}

	r.ensureMu.Lock()
	defer r.ensureMu.Unlock()

	existing, err := r.lookup(ctx, seed.UniqueID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, false, err
	}

	dev := &Device{
		ID:       GenerateID(),
		UniqueID: seed.UniqueID,
		Bridge:   seed.Bridge,
		Name:     seed.Name,
		Category: seed.Category,
	}
	if err := r.repo.Create(ctx, dev); err != nil {
		return nil, false, err
	}
	r.store(dev)

	r.logger.Info("device created", "id", dev.ID, "unique_id", dev.UniqueID, "name", dev.Name)
	return dev.Clone(), true, nil
}

// GetDeviceByUniqueID returns the device for an entity unique ID.
// Returns ErrDeviceNotFound if none exists.
func (r *Registry) GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*Device, error) {
	return r.lookup(ctx, uniqueID)
}

// DeviceIDForEntity returns the device ID backing an entity unique ID.
// Returns ErrDeviceNotFound if none exists.
func (r *Registry) DeviceIDForEntity(ctx context.Context, uniqueID string) (string, error) {
	dev, err := r.lookup(ctx, uniqueID)
	if err != nil {
		return "", err
	}
	return dev.ID, nil
}

// SetDeviceArea links the device with ID id to areaID.
func (r *Registry) SetDeviceArea(ctx context.Context, id, areaID string) error {
	if err := r.repo.SetArea(ctx, id, areaID); err != nil {
		return err
	}

	dev, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reloading device %s: %w", id, err)
	}
	r.store(dev)

	r.logger.Debug("device area set", "id", id, "area_id", areaID)
	return nil
}

// ListDevices returns every device ordered by unique ID.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.Clone())
		}
		r.cacheMu.RUnlock()
		sort.Slice(devices, func(i, j int) bool { return devices[i].UniqueID < devices[j].UniqueID })
		return devices, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.List(ctx)
}

// lookup serves from the cache, falling back to the repository for devices
// created by another process.
func (r *Registry) lookup(ctx context.Context, uniqueID string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[uniqueID]
	r.cacheMu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	dev, err := r.repo.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	r.store(dev)
	return dev.Clone(), nil
}

func (r *Registry) store(dev *Device) {
	r.cacheMu.Lock()
	r.cache[dev.UniqueID] = dev.Clone()
	r.cacheMu.Unlock()
}
