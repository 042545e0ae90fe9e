package location

import "time"

// Area is a named part of the house (room, floor, zone) that devices can
// be linked to.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
