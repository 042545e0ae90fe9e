package dynalite

import (
	"context"
	"fmt"
)

// CoverKind decides at construction whether a cover supports tilt.
type CoverKind int

// Cover kinds.
const (
	CoverPlain CoverKind = iota
	CoverWithTilt
)

func (k CoverKind) String() string {
	if k == CoverWithTilt {
		return "cover_with_tilt"
	}
	return "cover"
}

// Cover is a channel driving a motorised blind, shutter or similar.
//
// Dynalite reports no position, so the position is estimated. Every actual
// level report moves the position by the level delta divided by the
// factor. A factor of 1.0 means a full 0→1 level swing moves the cover
// from closed to open. Tilt is tracked the same way with its own factor.
type Cover struct {
	entityBase
	device Device

	kind       CoverKind
	class      string
	factor     float64
	tiltFactor float64

	level    float64 // last actual level
	target   float64 // last target level
	position float64
	tilt     float64
}

func newCover(spec entitySpec, device Device, class string, factor float64, tilt *float64) *Cover {
	spec.category = CategoryCover
	if factor <= 0 {
		factor = DefaultCoverFactor
	}
	c := &Cover{
		entityBase: newEntityBase(spec),
		device:     device,
		kind:       CoverPlain,
		class:      class,
		factor:     factor,
	}
	if tilt != nil && *tilt > 0 {
		c.kind = CoverWithTilt
		c.tiltFactor = *tilt
	}
	return c
}

// Kind reports whether the cover supports tilt.
func (c *Cover) Kind() CoverKind { return c.kind }

// DeviceClass is the configured cover class, e.g. "shutter".
func (c *Cover) DeviceClass() string { return c.class }

// Position returns the estimated position, 0.0 closed to 1.0 open.
func (c *Cover) Position() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// TiltPosition returns the estimated tilt. ok is false for plain covers.
func (c *Cover) TiltPosition() (tilt float64, ok bool) {
	if c.kind != CoverWithTilt {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tilt, true
}

// IsOpening reports whether the channel is fading up.
func (c *Cover) IsOpening() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target > c.level+levelEpsilon
}

// IsClosing reports whether the channel is fading down.
func (c *Cover) IsClosing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target < c.level-levelEpsilon
}

// IsClosed reports whether the estimated position is fully closed.
func (c *Cover) IsClosed() bool {
	return c.Position() == 0
}

// Open drives the cover fully open.
func (c *Cover) Open(ctx context.Context) error {
	return c.device.TurnOn(ctx, nil)
}

// Close drives the cover fully closed.
func (c *Cover) Close(ctx context.Context) error {
	return c.device.TurnOff(ctx)
}

// Stop halts the cover where it is.
func (c *Cover) Stop(ctx context.Context) error {
	return c.device.StopFade(ctx)
}

// SetPosition moves the cover to position (0.0 to 1.0).
func (c *Cover) SetPosition(ctx context.Context, position float64) error {
	c.mu.RLock()
	target := clampUnit(c.level + (clampUnit(position)-c.position)*c.factor)
	c.mu.RUnlock()
	return c.device.TurnOn(ctx, &target)
}

// OpenTilt tilts fully open.
func (c *Cover) OpenTilt(ctx context.Context) error {
	return c.moveTilt(ctx, 1)
}

// CloseTilt tilts fully closed.
func (c *Cover) CloseTilt(ctx context.Context) error {
	return c.moveTilt(ctx, 0)
}

// SetTilt moves the tilt to tilt (0.0 to 1.0).
func (c *Cover) SetTilt(ctx context.Context, tilt float64) error {
	return c.moveTilt(ctx, clampUnit(tilt))
}

// StopTilt halts a tilt movement.
func (c *Cover) StopTilt(ctx context.Context) error {
	if c.kind != CoverWithTilt {
		return fmt.Errorf("%s: %w", c.uniqueID, ErrTiltUnsupported)
	}
	return c.device.StopFade(ctx)
}

func (c *Cover) moveTilt(ctx context.Context, want float64) error {
	if c.kind != CoverWithTilt {
		return fmt.Errorf("%s: %w", c.uniqueID, ErrTiltUnsupported)
	}
	c.mu.RLock()
	target := clampUnit(c.level + (want-c.tilt)*c.tiltFactor)
	c.mu.RUnlock()
	return c.device.TurnOn(ctx, &target)
}

func (c *Cover) State() map[string]any {
	s := baseState(c)
	c.mu.RLock()
	s["position"] = percent(c.position)
	s["is_opening"] = c.target > c.level+levelEpsilon
	s["is_closing"] = c.target < c.level-levelEpsilon
	s["is_closed"] = c.position == 0
	s["device_class"] = c.class
	if c.kind == CoverWithTilt {
		s["tilt"] = percent(c.tilt)
	}
	c.mu.RUnlock()
	return s
}

func (c *Cover) applyReport(actual, target float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delta := actual - c.level
	c.level = actual
	c.target = target
	c.position = accumulate(c.position, delta, c.factor)
	if c.kind == CoverWithTilt {
		c.tilt = accumulate(c.tilt, delta, c.tiltFactor)
	}
}

func (c *Cover) applyCommand(target float64) {
	c.mu.Lock()
	c.target = target
	c.mu.Unlock()
}

func (c *Cover) applyStop() {
	c.mu.Lock()
	c.target = c.level
	c.mu.Unlock()
}
