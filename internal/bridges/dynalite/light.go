package dynalite

import (
	"context"
	"math"
)

// Light is a dimmable channel.
type Light struct {
	entityBase
	device Device
	level  float64
}

func newLight(spec entitySpec, device Device) *Light {
	spec.category = CategoryLight
	return &Light{entityBase: newEntityBase(spec), device: device}
}

// Level returns the current level, 0.0 to 1.0.
func (l *Light) Level() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// IsOn reports whether the level is above zero.
func (l *Light) IsOn() bool {
	return l.Level() > 0
}

// Brightness returns the level on the 0-255 host scale.
func (l *Light) Brightness() int {
	return int(math.Round(l.Level() * 255))
}

// TurnOn switches the light on, optionally at brightness (0.0 to 1.0).
func (l *Light) TurnOn(ctx context.Context, brightness *float64) error {
	if brightness != nil {
		b := clampUnit(*brightness)
		brightness = &b
	}
	return l.device.TurnOn(ctx, brightness)
}

// TurnOff switches the light off.
func (l *Light) TurnOff(ctx context.Context) error {
	return l.device.TurnOff(ctx)
}

// StopFade halts a running fade at the current level.
func (l *Light) StopFade(ctx context.Context) error {
	return l.device.StopFade(ctx)
}

func (l *Light) State() map[string]any {
	s := baseState(l)
	l.mu.RLock()
	s["on"] = l.level > 0
	s["level"] = percent(l.level)
	s["brightness"] = int(math.Round(l.level * 255))
	l.mu.RUnlock()
	return s
}

func (l *Light) applyReport(actual, _ float64) {
	l.mu.Lock()
	l.level = actual
	l.mu.Unlock()
}

func (l *Light) applyCommand(target float64) {
	l.mu.Lock()
	l.level = target
	l.mu.Unlock()
}

func (l *Light) applyStop() {}
