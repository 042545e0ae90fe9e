package dynalite

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"
)

// EntityTable indexes a bridge's entities by composite key and unique ID.
// It enforces at most one entity per key.
//
// EntityTable is not safe for concurrent use; the bridge guards it.
type EntityTable struct {
	areas map[int]*areaEntities
	byID  map[string]Entity
}

type areaEntities struct {
	channels map[int]Entity
	presets  map[int]Entity
	room     Entity
}

// NewEntityTable returns an empty table.
func NewEntityTable() *EntityTable {
	return &EntityTable{
		areas: make(map[int]*areaEntities),
		byID:  make(map[string]Entity),
	}
}

// Insert adds e under e.Key(). It returns ErrDuplicateEntity if the key or
// unique ID is already taken.
func (t *EntityTable) Insert(e Entity) error {
	key := e.Key()
	if _, ok := t.Lookup(key); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, key)
	}
	if _, ok := t.byID[e.UniqueID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, e.UniqueID())
	}

	a := t.areas[key.Area]
	if a == nil {
		a = &areaEntities{
			channels: make(map[int]Entity),
			presets:  make(map[int]Entity),
		}
		t.areas[key.Area] = a
	}

	switch key.Kind {
	case KindChannel:
		a.channels[key.Index] = e
	case KindPreset:
		a.presets[key.Index] = e
	case KindRoom:
		a.room = e
	}
	t.byID[e.UniqueID()] = e
	return nil
}

// Lookup returns the entity at key.
func (t *EntityTable) Lookup(key EntityKey) (Entity, bool) {
	a := t.areas[key.Area]
	if a == nil {
		return nil, false
	}
	var e Entity
	switch key.Kind {
	case KindChannel:
		e = a.channels[key.Index]
	case KindPreset:
		e = a.presets[key.Index]
	case KindRoom:
		e = a.room
	}
	return e, e != nil
}

// LookupUniqueID returns the entity with the given unique ID.
func (t *EntityTable) LookupUniqueID(id string) (Entity, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// Remove deletes the entity at key and reports whether one was present.
func (t *EntityTable) Remove(key EntityKey) bool {
	e, ok := t.Lookup(key)
	if !ok {
		return false
	}
	a := t.areas[key.Area]
	switch key.Kind {
	case KindChannel:
		delete(a.channels, key.Index)
	case KindPreset:
		delete(a.presets, key.Index)
	case KindRoom:
		a.room = nil
	}
	if len(a.channels) == 0 && len(a.presets) == 0 && a.room == nil {
		delete(t.areas, key.Area)
	}
	delete(t.byID, e.UniqueID())
	return true
}

// AreaPresetReceivers returns the preset and room switches of an area,
// ordered by preset number with the room switch last.
func (t *EntityTable) AreaPresetReceivers(area int) []Entity {
	a := t.areas[area]
	if a == nil {
		return nil
	}
	presets := make([]int, 0, len(a.presets))
	for p := range a.presets {
		presets = append(presets, p)
	}
	sort.Ints(presets)

	out := make([]Entity, 0, len(presets)+1)
	for _, p := range presets {
		out = append(out, a.presets[p])
	}
	if a.room != nil {
		out = append(out, a.room)
	}
	return out
}

// All returns every entity ordered naturally by unique ID, so that
// a3_c5 sorts before a3_c10.
func (t *EntityTable) All() []Entity {
	out := make([]Entity, 0, len(t.byID))
	for _, e := range t.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return natural.Less(out[i].UniqueID(), out[j].UniqueID())
	})
	return out
}

// Len returns the number of entities.
func (t *EntityTable) Len() int {
	return len(t.byID)
}
