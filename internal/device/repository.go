package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByUniqueID looks a device up by entity unique ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByUniqueID(ctx context.Context, uniqueID string) (*Device, error)

	// List returns all devices ordered by unique ID.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the ID or unique ID is taken.
	Create(ctx context.Context, device *Device) error

	// SetArea links a device to an area, or unlinks it when areaID is empty.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetArea(ctx context.Context, id, areaID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, unique_id, bridge, name, category, area_id, created_at, updated_at`

// GetByID retrieves a device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM dynalite_devices WHERE id = ?`, id)
	return scanDevice(row)
}

// GetByUniqueID retrieves a device by entity unique ID.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM dynalite_devices WHERE unique_id = ?`, uniqueID)
	return scanDevice(row)
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM dynalite_devices ORDER BY unique_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device. CreatedAt and UpdatedAt are set on device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC().Truncate(time.Second)
	device.CreatedAt, device.UpdatedAt = now, now

	const query = `INSERT INTO dynalite_devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.UniqueID, device.Bridge, device.Name, device.Category,
		nullString(device.AreaID), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", ErrDeviceExists, device.UniqueID)
		}
		return fmt.Errorf("inserting device %s: %w", device.UniqueID, err)
	}
	return nil
}

// SetArea updates the device's area link.
func (r *SQLiteRepository) SetArea(ctx context.Context, id, areaID string) error {
	var area *string
	if areaID != "" {
		area = &areaID
	}

	const query = `UPDATE dynalite_devices SET area_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, nullString(area), id)
	if err != nil {
		return fmt.Errorf("updating area of device %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var areaID sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.UniqueID, &d.Bridge, &d.Name, &d.Category, &areaID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	if areaID.Valid {
		d.AreaID = &areaID.String
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Written by us
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Written by us
	return &d, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isConstraintViolation reports UNIQUE and PRIMARY KEY failures.
func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
