package location

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	maxNameLength = 100
	maxSlugLength = 50
)

// ValidateName checks that an area name is non-blank and not too long.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// GenerateSlug derives a URL-safe slug from an area name.
// "Living Room" becomes "living-room". Names with no ASCII letters or
// digits fall back to "area".
func GenerateSlug(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			hyphen = false
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "area"
	}
	return slug
}

// GenerateID creates a new area ID.
func GenerateID() string {
	return "area-" + uuid.NewString()
}
