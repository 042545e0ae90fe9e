package dynalite

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func newAreaTestBridge(t *testing.T, policy AreaPolicy, areas *mockAreaRegistry, devices *mockDeviceRegistry) *Bridge {
	t.Helper()
	b, err := NewBridge(BridgeOptions{
		Config:  &BridgeConfig{Host: "h", AreaCreate: policy},
		Client:  newMockProtocolClient(),
		Areas:   areas,
		Devices: devices,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b
}

func areaEntity(channel int, houseArea string) Entity {
	return newLight(entitySpec{host: "h", key: ChannelKey(1, channel), houseArea: houseArea}, &mockDevice{})
}

func TestEntityAddedManualNeverTouchesRegistries(t *testing.T) {
	areas := newMockAreaRegistry("Kitchen")
	devices := newMockDeviceRegistry()
	devices.add("dynalite_h_a1_c1", "dev-1")
	b := newAreaTestBridge(t, AreaManual, areas, devices)

	got, err := b.EntityAdded(context.Background(), areaEntity(1, "Kitchen"))
	if err != nil {
		t.Fatalf("EntityAdded() error = %v", err)
	}
	if got != AssignSkippedManual {
		t.Errorf("result = %v, want %v", got, AssignSkippedManual)
	}
	if lookups, creates := areas.counts(); lookups != 0 || creates != 0 {
		t.Errorf("area registry calls = %d lookups, %d creates; want none", lookups, creates)
	}
	if devices.lookups != 0 {
		t.Errorf("device registry lookups = %d, want 0", devices.lookups)
	}
}

func TestEntityAdded(t *testing.T) {
	tests := []struct {
		name        string
		policy      AreaPolicy
		existing    []string
		houseArea   string
		hasDevice   bool
		want        AssignResult
		wantLink    string
		wantCreates int
	}{
		{
			name:      "assign links existing area",
			policy:    AreaAssign,
			existing:  []string{"Kitchen"},
			houseArea: "Kitchen",
			hasDevice: true,
			want:      AssignLinked,
			wantLink:  "area-kitchen",
		},
		{
			name:      "assign matches area name case-insensitively",
			policy:    AreaAssign,
			existing:  []string{"kitchen"},
			houseArea: "KITCHEN",
			hasDevice: true,
			want:      AssignLinked,
			wantLink:  "area-kitchen",
		},
		{
			name:      "assign never creates",
			policy:    AreaAssign,
			houseArea: "Garage",
			hasDevice: true,
			want:      AssignSkippedNoArea,
		},
		{
			name:        "auto creates missing area",
			policy:      AreaAuto,
			houseArea:   "Garage",
			hasDevice:   true,
			want:        AssignLinkedCreated,
			wantLink:    "area-garage",
			wantCreates: 1,
		},
		{
			name:      "auto reuses existing area",
			policy:    AreaAuto,
			existing:  []string{"Garage"},
			houseArea: "Garage",
			hasDevice: true,
			want:      AssignLinked,
			wantLink:  "area-garage",
		},
		{
			name:      "empty override skips",
			policy:    AreaAuto,
			houseArea: "",
			hasDevice: true,
			want:      AssignSkippedNoTarget,
		},
		{
			name:      "missing device skips",
			policy:    AreaAuto,
			houseArea: "Garage",
			want:      AssignSkippedNoDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			areas := newMockAreaRegistry(tt.existing...)
			devices := newMockDeviceRegistry()
			if tt.hasDevice {
				devices.add("dynalite_h_a1_c1", "dev-1")
			}
			b := newAreaTestBridge(t, tt.policy, areas, devices)

			got, err := b.EntityAdded(context.Background(), areaEntity(1, tt.houseArea))
			if err != nil {
				t.Fatalf("EntityAdded() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
			if link := devices.link("dev-1"); link != tt.wantLink {
				t.Errorf("device linked to %q, want %q", link, tt.wantLink)
			}
			if _, creates := areas.counts(); creates != tt.wantCreates {
				t.Errorf("creates = %d, want %d", creates, tt.wantCreates)
			}
		})
	}
}

func TestEntityAddedAutoCreatesOnceUnderConcurrency(t *testing.T) {
	areas := newMockAreaRegistry()
	devices := newMockDeviceRegistry()
	const n = 20
	for ch := 1; ch <= n; ch++ {
		devices.add(fmt.Sprintf("dynalite_h_a1_c%d", ch), fmt.Sprintf("dev-%d", ch))
	}
	b := newAreaTestBridge(t, AreaAuto, areas, devices)

	var wg sync.WaitGroup
	results := make([]AssignResult, n)
	for ch := 1; ch <= n; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			r, err := b.EntityAdded(context.Background(), areaEntity(ch, "Garden"))
			if err != nil {
				t.Errorf("EntityAdded(%d) error = %v", ch, err)
			}
			results[ch-1] = r
		}(ch)
	}
	wg.Wait()

	if _, creates := areas.counts(); creates != 1 {
		t.Errorf("creates = %d, want 1", creates)
	}
	created := 0
	for _, r := range results {
		if r == AssignLinkedCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("%d calls reported a created area, want 1", created)
	}
	for ch := 1; ch <= n; ch++ {
		if link := devices.link(fmt.Sprintf("dev-%d", ch)); link != "area-garden" {
			t.Errorf("dev-%d linked to %q, want area-garden", ch, link)
		}
	}
}

func TestAssignResultString(t *testing.T) {
	if AssignLinkedCreated.String() != "linked_created" {
		t.Errorf("String() = %q", AssignLinkedCreated.String())
	}
	if AssignFailed.String() != "failed" {
		t.Errorf("String() = %q", AssignFailed.String())
	}
}
