package dynalite

import (
	"errors"
	"fmt"
	"strconv"
)

// outbound collects host calls made while the bridge lock is held, to be
// issued after it is released.
type outbound struct {
	added   []Entity
	refresh []Entity
}

// HandleEvent routes one protocol event.
//
// new-* events create an entity the first time a key is seen. *-changed
// events update the entity at their key; events for unknown keys are
// dropped and counted. A connectivity event flips availability and
// refreshes every entity.
func (b *Bridge) HandleEvent(ev Event) {
	var out outbound

	b.mu.Lock()
	if b.state != StateConnected && b.state != StateConnecting {
		b.mu.Unlock()
		return
	}
	// Unload resets the queue after releasing mu; entities found here must
	// not leak into the next setup's queue.
	gen := b.queue.Generation()
	switch e := ev.(type) {
	case NewChannelEvent:
		b.handleNewChannel(e, &out)
	case NewPresetEvent:
		b.handleNewPreset(e, &out)
	case ChannelChangedEvent:
		b.handleChannelChanged(e, &out)
	case PresetChangedEvent:
		b.handlePresetChanged(e, &out)
	case ConnectionEvent:
		b.handleConnection(e, &out)
	}
	b.mu.Unlock()

	b.deliver(gen, &out)
}

// deliver hands new entities to the queue and refreshes changed ones. It
// runs without b.mu held.
func (b *Bridge) deliver(gen uint64, out *outbound) {
	for _, e := range out.added {
		_, err := b.queue.AddEntityForGeneration(gen, e.Category(), e)
		switch {
		case errors.Is(err, ErrQueueReset):
			b.logDebug("dropping entity discovered before unload", "unique_id", e.UniqueID())
		case err != nil:
			b.logError("queueing entity", err, "unique_id", e.UniqueID())
		}
	}
	for _, e := range out.refresh {
		e.base().refresh(e)
	}
}

func (b *Bridge) handleNewChannel(ev NewChannelEvent, out *outbound) {
	key := ChannelKey(ev.Area, ev.Channel)
	if _, exists := b.table.Lookup(key); exists {
		return
	}

	area, areaKnown := b.cfg.Area[strconv.Itoa(ev.Area)]
	ch, chKnown := area.Channel[strconv.Itoa(ev.Channel)]
	if !b.cfg.AutodiscoverEnabled() && !(areaKnown && chKnown) {
		b.countIgnored(IgnoredNotConfigured)
		b.logDebug("ignoring undeclared channel", "area", ev.Area, "channel", ev.Channel)
		return
	}

	name := firstNonEmpty(ch.Name, ev.Name, fmt.Sprintf("Channel %d", ev.Channel))
	spec := b.entitySpec(key, ev.Area, area, name, ch.Hidden)
	device := b.client.ChannelDevice(ev.Area, ev.Channel)

	var ent Entity
	switch ch.Type {
	case ChannelTypeSwitch:
		ent = newChannelSwitch(spec, device)
	case ChannelTypeCover:
		factor := DefaultCoverFactor
		if ch.Factor != nil {
			factor = *ch.Factor
		}
		ent = newCover(spec, device, firstNonEmpty(ch.Class, DefaultCoverClass), factor, ch.Tilt)
	default:
		ent = newLight(spec, device)
	}

	b.insert(ent, out)
}

func (b *Bridge) handleNewPreset(ev NewPresetEvent, out *outbound) {
	key := PresetKey(ev.Area, ev.Preset)
	if _, exists := b.table.Lookup(key); exists {
		return
	}

	area, areaKnown := b.cfg.Area[strconv.Itoa(ev.Area)]
	p, presetKnown := area.Preset[strconv.Itoa(ev.Preset)]
	if !b.cfg.AutodiscoverEnabled() && !(areaKnown && presetKnown) {
		b.countIgnored(IgnoredNotConfigured)
		b.logDebug("ignoring undeclared preset", "area", ev.Area, "preset", ev.Preset)
		return
	}

	name := firstNonEmpty(p.Name, ev.Name, fmt.Sprintf("Preset %d", ev.Preset))
	spec := b.entitySpec(key, ev.Area, area, name, p.Hidden)
	b.insert(newPresetSwitch(spec, ev.Preset, b.client.PresetDevice(ev.Area, ev.Preset)), out)

	if areaKnown && area.Template == TemplateRoom {
		b.ensureRoomSwitch(ev.Area, area, out)
	}
}

// ensureRoomSwitch creates the room switch of a room-template area once
// one of its presets has been seen.
func (b *Bridge) ensureRoomSwitch(areaNum int, area AreaConfig, out *outbound) {
	key := RoomKey(areaNum)
	if _, exists := b.table.Lookup(key); exists {
		return
	}
	onPreset, errOn := parseIndex(area.RoomOn)
	offPreset, errOff := parseIndex(area.RoomOff)
	if errOn != nil || errOff != nil {
		return
	}

	spec := b.entitySpec(key, areaNum, area, "", false)
	spec.name = areaName(areaNum, area)
	room := newRoomSwitch(spec, onPreset, offPreset,
		b.client.PresetDevice(areaNum, onPreset),
		b.client.PresetDevice(areaNum, offPreset),
	)
	b.insert(room, out)
}

func (b *Bridge) handleChannelChanged(ev ChannelChangedEvent, out *outbound) {
	ent, ok := b.table.Lookup(ChannelKey(ev.Area, ev.Channel))
	if !ok {
		b.countIgnored(IgnoredUnknownKey)
		return
	}
	recv, ok := ent.(levelReceiver)
	if !ok {
		b.countIgnored(IgnoredUnknownKey)
		return
	}

	switch ev.Action {
	case ActionCommand:
		recv.applyCommand(NormalizeLevel(ev.TargetLevel))
	case ActionStop:
		recv.applyStop()
	default:
		recv.applyReport(NormalizeLevel(ev.ActualLevel), NormalizeLevel(ev.TargetLevel))
	}
	out.refresh = append(out.refresh, ent)
}

// handlePresetChanged marks the selected preset on, every other preset in
// the area off, and moves the room switch if the preset is its on or off
// preset. The selected preset itself need not have an entity; the event
// is only dropped when nothing in the area tracks presets.
func (b *Bridge) handlePresetChanged(ev PresetChangedEvent, out *outbound) {
	receivers := b.table.AreaPresetReceivers(ev.Area)
	if len(receivers) == 0 {
		b.countIgnored(IgnoredUnknownKey)
		return
	}

	for _, ent := range receivers {
		recv, ok := ent.(presetReceiver)
		if !ok {
			continue
		}
		if recv.applyPreset(ev.Area, ev.Preset) {
			out.refresh = append(out.refresh, ent)
		}
	}
}

func (b *Bridge) handleConnection(ev ConnectionEvent, out *outbound) {
	prev := b.available.Swap(ev.Connected)
	if prev != ev.Connected {
		if ev.Connected {
			b.logInfo("connected to dynalite network", "host", b.cfg.Host)
		} else {
			b.logInfo("disconnected from dynalite network", "host", b.cfg.Host)
		}
	}
	out.refresh = append(out.refresh, b.table.All()...)
}

func (b *Bridge) insert(ent Entity, out *outbound) {
	if err := b.table.Insert(ent); err != nil {
		b.logError("registering entity", err, "unique_id", ent.UniqueID())
		return
	}
	b.logDebug("entity created",
		"unique_id", ent.UniqueID(),
		"name", ent.Name(),
		"category", string(ent.Category()),
	)
	out.added = append(out.added, ent)
}

func (b *Bridge) entitySpec(key EntityKey, areaNum int, area AreaConfig, itemName string, hidden bool) entitySpec {
	aName := areaName(areaNum, area)
	name := aName + " " + itemName
	if itemName == aName {
		name = aName
	}

	houseArea := aName
	if area.AreaOverride != nil {
		houseArea = *area.AreaOverride
	}

	return entitySpec{
		host:      b.cfg.Host,
		key:       key,
		name:      name,
		hidden:    hidden,
		houseArea: houseArea,
		available: b.available.Load,
	}
}

func areaName(areaNum int, area AreaConfig) string {
	return firstNonEmpty(area.Name, fmt.Sprintf("Area %d", areaNum))
}
