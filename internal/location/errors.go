package location

import "errors"

var (
	// ErrAreaNotFound is returned when an area ID or name does not exist.
	ErrAreaNotFound = errors.New("area not found")

	// ErrAreaExists is returned when creating an area whose name is taken.
	ErrAreaExists = errors.New("area already exists")

	// ErrInvalidName is returned when an area name is empty or too long.
	ErrInvalidName = errors.New("invalid name")
)
