package dynalite

import (
	"errors"
	"testing"
)

func testLight(host string, key EntityKey) *Light {
	return newLight(entitySpec{host: host, key: key}, &mockDevice{})
}

func TestEntityTableInsertLookup(t *testing.T) {
	table := NewEntityTable()
	light := testLight("h", ChannelKey(3, 5))

	if err := table.Insert(light); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, ok := table.Lookup(ChannelKey(3, 5))
	if !ok || got != Entity(light) {
		t.Fatalf("Lookup() = %v, %v; want the inserted light", got, ok)
	}
	if _, ok := table.Lookup(PresetKey(3, 5)); ok {
		t.Error("Lookup(PresetKey(3,5)) should miss: kinds are distinct")
	}
	if _, ok := table.Lookup(ChannelKey(4, 5)); ok {
		t.Error("Lookup(ChannelKey(4,5)) should miss")
	}

	byID, ok := table.LookupUniqueID("dynalite_h_a3_c5")
	if !ok || byID != Entity(light) {
		t.Errorf("LookupUniqueID() = %v, %v; want the inserted light", byID, ok)
	}
}

func TestEntityTableRejectsDuplicates(t *testing.T) {
	table := NewEntityTable()
	if err := table.Insert(testLight("h", ChannelKey(1, 1))); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	err := table.Insert(testLight("h", ChannelKey(1, 1)))
	if !errors.Is(err, ErrDuplicateEntity) {
		t.Fatalf("second Insert() error = %v, want ErrDuplicateEntity", err)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestEntityTableRemove(t *testing.T) {
	table := NewEntityTable()
	_ = table.Insert(testLight("h", ChannelKey(2, 1)))
	_ = table.Insert(newPresetSwitch(entitySpec{host: "h", key: PresetKey(2, 1)}, 1, &mockDevice{}))

	if !table.Remove(ChannelKey(2, 1)) {
		t.Fatal("Remove() = false, want true")
	}
	if table.Remove(ChannelKey(2, 1)) {
		t.Error("second Remove() = true, want false")
	}
	if _, ok := table.LookupUniqueID("dynalite_h_a2_c1"); ok {
		t.Error("unique ID index not cleaned up")
	}
	if _, ok := table.Lookup(PresetKey(2, 1)); !ok {
		t.Error("preset in the same area should survive")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestEntityTableAreaPresetReceivers(t *testing.T) {
	table := NewEntityTable()
	for _, p := range []int{4, 1, 10} {
		_ = table.Insert(newPresetSwitch(entitySpec{host: "h", key: PresetKey(3, p)}, p, &mockDevice{}))
	}
	_ = table.Insert(newRoomSwitch(entitySpec{host: "h", key: RoomKey(3)}, 1, 4, &mockDevice{}, &mockDevice{}))
	_ = table.Insert(newPresetSwitch(entitySpec{host: "h", key: PresetKey(5, 1)}, 1, &mockDevice{}))
	_ = table.Insert(testLight("h", ChannelKey(3, 1)))

	got := table.AreaPresetReceivers(3)
	want := []string{"dynalite_h_a3_p1", "dynalite_h_a3_p4", "dynalite_h_a3_p10", "dynalite_h_a3_room"}
	if len(got) != len(want) {
		t.Fatalf("AreaPresetReceivers(3) returned %d entities, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.UniqueID() != want[i] {
			t.Errorf("AreaPresetReceivers(3)[%d] = %s, want %s", i, e.UniqueID(), want[i])
		}
	}

	if got := table.AreaPresetReceivers(9); got != nil {
		t.Errorf("AreaPresetReceivers(9) = %v, want nil", got)
	}
}

func TestEntityTableAllNaturalOrder(t *testing.T) {
	table := NewEntityTable()
	for _, ch := range []int{10, 2, 1} {
		_ = table.Insert(testLight("h", ChannelKey(3, ch)))
	}

	all := table.All()
	want := []string{"dynalite_h_a3_c1", "dynalite_h_a3_c2", "dynalite_h_a3_c10"}
	for i, e := range all {
		if e.UniqueID() != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, e.UniqueID(), want[i])
		}
	}
}

func TestEntityKeyString(t *testing.T) {
	tests := []struct {
		key  EntityKey
		want string
	}{
		{ChannelKey(3, 5), "a3_c5"},
		{PresetKey(1, 4), "a1_p4"},
		{RoomKey(7), "a7_room"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := UniqueID("10.0.0.5", ChannelKey(3, 5)); got != "dynalite_10.0.0.5_a3_c5" {
		t.Errorf("UniqueID() = %q", got)
	}
}
