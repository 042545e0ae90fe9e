package dynalite

import "context"

// ChannelSwitch is a channel declared as an on/off switch.
type ChannelSwitch struct {
	entityBase
	device Device
	level  float64
}

func newChannelSwitch(spec entitySpec, device Device) *ChannelSwitch {
	spec.category = CategorySwitch
	return &ChannelSwitch{entityBase: newEntityBase(spec), device: device}
}

// IsOn reports whether the channel level is above zero.
func (s *ChannelSwitch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level > 0
}

func (s *ChannelSwitch) TurnOn(ctx context.Context) error {
	return s.device.TurnOn(ctx, nil)
}

func (s *ChannelSwitch) TurnOff(ctx context.Context) error {
	return s.device.TurnOff(ctx)
}

func (s *ChannelSwitch) State() map[string]any {
	st := baseState(s)
	st["on"] = s.IsOn()
	return st
}

func (s *ChannelSwitch) applyReport(actual, _ float64) {
	s.mu.Lock()
	s.level = actual
	s.mu.Unlock()
}

func (s *ChannelSwitch) applyCommand(target float64) {
	s.mu.Lock()
	s.level = target
	s.mu.Unlock()
}

func (s *ChannelSwitch) applyStop() {}

// PresetSwitch exposes a preset as a switch. It is on while its preset is
// the active one in the area.
type PresetSwitch struct {
	entityBase
	device Device
	preset int
	on     bool
}

func newPresetSwitch(spec entitySpec, preset int, device Device) *PresetSwitch {
	spec.category = CategorySwitch
	return &PresetSwitch{entityBase: newEntityBase(spec), device: device, preset: preset}
}

func (s *PresetSwitch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.on
}

// TurnOn selects the preset on the bus.
func (s *PresetSwitch) TurnOn(ctx context.Context) error {
	return s.device.TurnOn(ctx, nil)
}

// TurnOff only clears the local state; a Dynalite preset cannot be
// deselected without selecting another one.
func (s *PresetSwitch) TurnOff(_ context.Context) error {
	s.mu.Lock()
	changed := s.on
	s.on = false
	s.mu.Unlock()
	if changed {
		s.refresh(s)
	}
	return nil
}

func (s *PresetSwitch) State() map[string]any {
	st := baseState(s)
	st["on"] = s.IsOn()
	st["preset"] = s.preset
	return st
}

func (s *PresetSwitch) applyPreset(_, preset int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := preset == s.preset
	changed := on != s.on
	s.on = on
	return changed
}

// RoomSwitch turns a whole area on or off through two designated presets.
type RoomSwitch struct {
	entityBase
	onDevice  Device
	offDevice Device
	onPreset  int
	offPreset int
	on        bool
}

func newRoomSwitch(spec entitySpec, onPreset, offPreset int, onDevice, offDevice Device) *RoomSwitch {
	spec.category = CategorySwitch
	return &RoomSwitch{
		entityBase: newEntityBase(spec),
		onDevice:   onDevice,
		offDevice:  offDevice,
		onPreset:   onPreset,
		offPreset:  offPreset,
	}
}

func (s *RoomSwitch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.on
}

// TurnOn selects the room's on preset.
func (s *RoomSwitch) TurnOn(ctx context.Context) error {
	return s.onDevice.TurnOn(ctx, nil)
}

// TurnOff selects the room's off preset.
func (s *RoomSwitch) TurnOff(ctx context.Context) error {
	return s.offDevice.TurnOn(ctx, nil)
}

func (s *RoomSwitch) State() map[string]any {
	st := baseState(s)
	st["on"] = s.IsOn()
	return st
}

// applyPreset follows the on and off presets and ignores the rest.
func (s *RoomSwitch) applyPreset(_, preset int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var on bool
	switch preset {
	case s.onPreset:
		on = true
	case s.offPreset:
		on = false
	default:
		return false
	}
	changed := on != s.on
	s.on = on
	return changed
}
