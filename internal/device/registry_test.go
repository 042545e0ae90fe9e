package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mockRepository implements Repository for registry tests.
type mockRepository struct {
	mu          sync.Mutex
	devices     map[string]*Device // by ID
	createCalls int
	listErr     error
}

func newMockRepository() *mockRepository {
	return &mockRepository{devices: make(map[string]*Device)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.Clone(), nil
}

func (m *mockRepository) GetByUniqueID(_ context.Context, uniqueID string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.UniqueID == uniqueID {
			return d.Clone(), nil
		}
	}
	return nil, ErrDeviceNotFound
}

func (m *mockRepository) List(context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Device
	for _, d := range m.devices {
		out = append(out, *d.Clone())
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, existing := range m.devices {
		if existing.UniqueID == d.UniqueID {
			return ErrDeviceExists
		}
	}
	m.devices[d.ID] = d.Clone()
	return nil
}

func (m *mockRepository) SetArea(_ context.Context, id, areaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	if areaID == "" {
		d.AreaID = nil
	} else {
		d.AreaID = &areaID
	}
	return nil
}

func lightSeed(uniqueID string) Seed {
	return Seed{UniqueID: uniqueID, Bridge: "home", Name: "Ceiling", Category: "light"}
}

func TestRegistry_EnsureDevice(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	dev, created, err := reg.EnsureDevice(ctx, lightSeed("dynalite_home_a2_c1"))
	if err != nil {
		t.Fatalf("EnsureDevice() error = %v", err)
	}
	if !created || dev.ID == "" {
		t.Fatalf("EnsureDevice() = %+v, created %v", dev, created)
	}

	again, created, err := reg.EnsureDevice(ctx, lightSeed("dynalite_home_a2_c1"))
	if err != nil {
		t.Fatalf("second EnsureDevice() error = %v", err)
	}
	if created {
		t.Error("second EnsureDevice() reported created")
	}
	if again.ID != dev.ID {
		t.Errorf("second EnsureDevice().ID = %q, want %q", again.ID, dev.ID)
	}
	if repo.createCalls != 1 {
		t.Errorf("Create called %d times, want 1", repo.createCalls)
	}
}

func TestRegistry_EnsureDeviceInvalid(t *testing.T) {
	reg := NewRegistry(newMockRepository())

	tests := []struct {
		name string
		seed Seed
	}{
		{"no unique id", Seed{Bridge: "home", Category: "light"}},
		{"no bridge", Seed{UniqueID: "x", Category: "light"}},
		{"bad category", Seed{UniqueID: "x", Bridge: "home", Category: "fan"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := reg.EnsureDevice(context.Background(), tt.seed)
			if !errors.Is(err, ErrInvalidDevice) {
				t.Errorf("EnsureDevice() error = %v, want ErrInvalidDevice", err)
			}
		})
	}
}

func TestRegistry_EnsureDeviceConcurrent(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dev, _, err := reg.EnsureDevice(context.Background(), lightSeed("dynalite_home_a5_c1"))
			if err != nil {
				t.Errorf("EnsureDevice() error = %v", err)
				return
			}
			ids[i] = dev.ID
		}(i)
	}
	wg.Wait()

	if repo.createCalls != 1 {
		t.Errorf("Create called %d times, want 1", repo.createCalls)
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("goroutines saw different IDs: %v", ids)
		}
	}
}

func TestRegistry_DeviceIDForEntity(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if _, err := reg.DeviceIDForEntity(ctx, "dynalite_home_a2_c1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("DeviceIDForEntity(missing) error = %v, want ErrDeviceNotFound", err)
	}

	// Created behind the registry's back: found through the repository.
	external := &Device{ID: "dev-ext", UniqueID: "dynalite_home_a2_c1", Bridge: "home", Category: "light"}
	if err := repo.Create(ctx, external); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	id, err := reg.DeviceIDForEntity(ctx, "dynalite_home_a2_c1")
	if err != nil {
		t.Fatalf("DeviceIDForEntity() error = %v", err)
	}
	if id != "dev-ext" {
		t.Errorf("DeviceIDForEntity() = %q, want dev-ext", id)
	}
}

func TestRegistry_SetDeviceArea(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	dev, _, err := reg.EnsureDevice(ctx, lightSeed("dynalite_home_a2_c1"))
	if err != nil {
		t.Fatalf("EnsureDevice() error = %v", err)
	}

	if err := reg.SetDeviceArea(ctx, dev.ID, "area-bed"); err != nil {
		t.Fatalf("SetDeviceArea() error = %v", err)
	}
	got, err := reg.GetDeviceByUniqueID(ctx, dev.UniqueID)
	if err != nil {
		t.Fatalf("GetDeviceByUniqueID() error = %v", err)
	}
	if got.AreaID == nil || *got.AreaID != "area-bed" {
		t.Errorf("cached AreaID = %v, want area-bed", got.AreaID)
	}

	if err := reg.SetDeviceArea(ctx, "dev-missing", "area-bed"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetDeviceArea(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	dev, _, err := reg.EnsureDevice(ctx, lightSeed("dynalite_home_a2_c1"))
	if err != nil {
		t.Fatalf("EnsureDevice() error = %v", err)
	}
	dev.Name = "mutated"

	got, err := reg.GetDeviceByUniqueID(ctx, "dynalite_home_a2_c1")
	if err != nil {
		t.Fatalf("GetDeviceByUniqueID() error = %v", err)
	}
	if got.Name != "Ceiling" {
		t.Errorf("cache was mutated through a returned device: %q", got.Name)
	}
}

func TestRegistry_RefreshAndList(t *testing.T) {
	repo := newMockRepository()
	ctx := context.Background()
	for _, d := range []*Device{
		{ID: "d2", UniqueID: "dynalite_home_a3_room", Bridge: "home", Category: "switch"},
		{ID: "d1", UniqueID: "dynalite_home_a2_c1", Bridge: "home", Category: "light"},
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	devices, err := reg.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	var got []string
	for _, d := range devices {
		got = append(got, d.ID)
	}
	if diff := cmp.Diff([]string{"d1", "d2"}, got); diff != "" {
		t.Errorf("ListDevices() IDs mismatch (-want +got):\n%s", diff)
	}

	repo.listErr = errors.New("disk on fire")
	if err := reg.RefreshCache(ctx); err == nil {
		t.Error("RefreshCache() should surface repository errors")
	}
}
