package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for area persistence operations.
type Repository interface {
	// CreateArea inserts a new area with a generated ID and slug.
	// Returns ErrAreaExists if the name is already taken (case-insensitive).
	CreateArea(ctx context.Context, name string) (*Area, error)
	// GetArea returns an area by ID, or ErrAreaNotFound.
	GetArea(ctx context.Context, id string) (*Area, error)
	// GetAreaByName returns an area by name, ignoring case, or ErrAreaNotFound.
	GetAreaByName(ctx context.Context, name string) (*Area, error)
	ListAreas(ctx context.Context) ([]Area, error)
	DeleteArea(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed area repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const areaColumns = `id, name, slug, created_at, updated_at`

// CreateArea inserts a new area.
func (r *SQLiteRepository) CreateArea(ctx context.Context, name string) (*Area, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	area := &Area{
		ID:   GenerateID(),
		Name: name,
		Slug: GenerateSlug(name),
	}
	now := time.Now().UTC().Truncate(time.Second)
	area.CreatedAt, area.UpdatedAt = now, now

	const query = `INSERT INTO areas (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		area.ID, area.Name, area.Slug, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrAreaExists, name)
		}
		return nil, fmt.Errorf("inserting area %s: %w", name, err)
	}
	return area, nil
}

// GetArea returns a single area by ID.
func (r *SQLiteRepository) GetArea(ctx context.Context, id string) (*Area, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas WHERE id = ?`, id)
	return scanArea(row)
}

// GetAreaByName returns a single area by name. The name column is
// COLLATE NOCASE so the match ignores case.
func (r *SQLiteRepository) GetAreaByName(ctx context.Context, name string) (*Area, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+areaColumns+` FROM areas WHERE name = ?`, strings.TrimSpace(name))
	return scanArea(row)
}

// ListAreas returns all areas ordered by name.
func (r *SQLiteRepository) ListAreas(ctx context.Context) ([]Area, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+areaColumns+` FROM areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	var areas []Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating area rows: %w", err)
	}
	return areas, nil
}

// DeleteArea removes an area. Devices linked to it keep existing with no
// area (ON DELETE SET NULL).
func (r *SQLiteRepository) DeleteArea(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM areas WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting area %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArea(s scanner) (*Area, error) {
	var a Area
	var createdAt, updatedAt string
	if err := s.Scan(&a.ID, &a.Name, &a.Slug, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("scanning area: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
