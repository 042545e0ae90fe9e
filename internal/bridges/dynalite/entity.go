package dynalite

import (
	"context"
	"fmt"
	"sync"
)

// Category is the host entity platform an entity belongs to.
type Category string

// Entity categories.
const (
	CategoryLight  Category = "light"
	CategorySwitch Category = "switch"
	CategoryCover  Category = "cover"
)

// Categories lists every category the bridge produces.
var Categories = []Category{CategoryLight, CategorySwitch, CategoryCover}

func (c Category) valid() bool {
	switch c {
	case CategoryLight, CategorySwitch, CategoryCover:
		return true
	}
	return false
}

// KeyKind discriminates the three kinds of entity address.
type KeyKind int

// Key kinds.
const (
	KindChannel KeyKind = iota
	KindPreset
	KindRoom
)

// EntityKey is the composite address of an entity within a bridge.
// Index is the channel or preset number and is zero for room switches.
type EntityKey struct {
	Kind  KeyKind
	Area  int
	Index int
}

// ChannelKey addresses a channel entity.
func ChannelKey(area, channel int) EntityKey {
	return EntityKey{Kind: KindChannel, Area: area, Index: channel}
}

// PresetKey addresses a preset switch.
func PresetKey(area, preset int) EntityKey {
	return EntityKey{Kind: KindPreset, Area: area, Index: preset}
}

// RoomKey addresses the room switch of an area.
func RoomKey(area int) EntityKey {
	return EntityKey{Kind: KindRoom, Area: area}
}

// String returns the suffix used in unique IDs, e.g. "a3_c5".
func (k EntityKey) String() string {
	switch k.Kind {
	case KindChannel:
		return fmt.Sprintf("a%d_c%d", k.Area, k.Index)
	case KindPreset:
		return fmt.Sprintf("a%d_p%d", k.Area, k.Index)
	default:
		return fmt.Sprintf("a%d_room", k.Area)
	}
}

// UniqueID builds the stable identifier for an entity on a bridge host.
func UniqueID(host string, key EntityKey) string {
	return fmt.Sprintf("dynalite_%s_%s", host, key)
}

// Device is the protocol-level handle an entity sends commands through.
// For a preset, TurnOn selects the preset.
type Device interface {
	TurnOn(ctx context.Context, brightness *float64) error
	TurnOff(ctx context.Context) error
	StopFade(ctx context.Context) error
}

// HostHandle is what the host attaches to an entity once it has adopted
// it. The bridge uses it to request a state refresh.
type HostHandle interface {
	RequestRefresh(e Entity)
}

// Entity is a light, switch or cover exposed to the host.
type Entity interface {
	UniqueID() string
	Name() string
	Category() Category
	Key() EntityKey
	Hidden() bool
	Available() bool

	// HouseArea is the area the entity should be linked to. An empty
	// string means no assignment.
	HouseArea() string

	// State returns a snapshot of the entity's state for publication.
	State() map[string]any

	// Attach stores the host handle. Refresh requests are dropped until an
	// entity is attached.
	Attach(h HostHandle)

	base() *entityBase
}

// entityBase holds what every entity shares. Mutable fields are guarded by mu.
type entityBase struct {
	mu sync.RWMutex

	uniqueID  string
	name      string
	key       EntityKey
	category  Category
	hidden    bool
	houseArea string

	available func() bool
	handle    HostHandle
}

type entitySpec struct {
	host      string
	key       EntityKey
	name      string
	category  Category
	hidden    bool
	houseArea string
	available func() bool
}

func newEntityBase(s entitySpec) entityBase {
	return entityBase{
		uniqueID:  UniqueID(s.host, s.key),
		name:      s.name,
		key:       s.key,
		category:  s.category,
		hidden:    s.hidden,
		houseArea: s.houseArea,
		available: s.available,
	}
}

func (b *entityBase) UniqueID() string   { return b.uniqueID }
func (b *entityBase) Name() string       { return b.name }
func (b *entityBase) Category() Category { return b.category }
func (b *entityBase) Key() EntityKey     { return b.key }
func (b *entityBase) Hidden() bool       { return b.hidden }
func (b *entityBase) HouseArea() string  { return b.houseArea }
func (b *entityBase) base() *entityBase  { return b }

// Available reports whether the bridge is connected to the network.
func (b *entityBase) Available() bool {
	if b.available == nil {
		return true
	}
	return b.available()
}

func (b *entityBase) Attach(h HostHandle) {
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()
}

func (b *entityBase) detach() {
	b.mu.Lock()
	b.handle = nil
	b.mu.Unlock()
}

// Attached reports whether the host has adopted the entity.
func (b *entityBase) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle != nil
}

// refresh asks the host to republish state. It is a no-op before Attach.
func (b *entityBase) refresh(e Entity) {
	b.mu.RLock()
	h := b.handle
	b.mu.RUnlock()
	if h != nil {
		h.RequestRefresh(e)
	}
}

// levelReceiver is implemented by entities driven by channel reports.
type levelReceiver interface {
	Entity
	applyReport(actual, target float64)
	applyCommand(target float64)
	applyStop()
}

// presetReceiver is implemented by entities driven by preset selection.
type presetReceiver interface {
	Entity
	applyPreset(area, preset int) bool
}

func baseState(e Entity) map[string]any {
	return map[string]any{
		"available": e.Available(),
	}
}
