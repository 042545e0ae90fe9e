package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Device is one Dynalite entity known to the host.
type Device struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
	Bridge   string `json:"bridge"`
	Name     string `json:"name"`
	Category string `json:"category"`

	// AreaID links the device to a location.Area. Nil until assigned.
	AreaID *string `json:"area_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with d.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.AreaID != nil {
		area := *d.AreaID
		cpy.AreaID = &area
	}
	return &cpy
}

// Seed describes a device to create if it doesn't exist yet.
type Seed struct {
	UniqueID string
	Bridge   string
	Name     string
	Category string
}

var validCategories = map[string]bool{
	"light":  true,
	"switch": true,
	"cover":  true,
}

// Validate checks the seed has an identity and a known category.
func (s Seed) Validate() error {
	if strings.TrimSpace(s.UniqueID) == "" {
		return fmt.Errorf("%w: unique_id is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(s.Bridge) == "" {
		return fmt.Errorf("%w: bridge is required", ErrInvalidDevice)
	}
	if !validCategories[s.Category] {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidDevice, s.Category)
	}
	return nil
}

// GenerateID creates a new device ID.
func GenerateID() string {
	return "dev-" + uuid.NewString()
}
