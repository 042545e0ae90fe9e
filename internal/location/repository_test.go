package location

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dynalite/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateArea(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	area, err := repo.CreateArea(ctx, "  Living Room ")
	if err != nil {
		t.Fatalf("CreateArea() error = %v", err)
	}
	if !strings.HasPrefix(area.ID, "area-") {
		t.Errorf("ID = %q, want area- prefix", area.ID)
	}
	if area.Name != "Living Room" || area.Slug != "living-room" {
		t.Errorf("area = %+v", area)
	}

	got, err := repo.GetArea(ctx, area.ID)
	if err != nil {
		t.Fatalf("GetArea() error = %v", err)
	}
	if got.Name != "Living Room" || got.CreatedAt.IsZero() {
		t.Errorf("GetArea() = %+v", got)
	}
}

func TestCreateArea_Duplicate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateArea(ctx, "Kitchen"); err != nil {
		t.Fatalf("CreateArea() error = %v", err)
	}
	_, err := repo.CreateArea(ctx, "KITCHEN")
	if !errors.Is(err, ErrAreaExists) {
		t.Errorf("CreateArea(duplicate) error = %v, want ErrAreaExists", err)
	}
}

func TestCreateArea_InvalidName(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.CreateArea(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("CreateArea(blank) error = %v, want ErrInvalidName", err)
	}
}

func TestGetAreaByName(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateArea(ctx, "Master Bedroom")
	if err != nil {
		t.Fatalf("CreateArea() error = %v", err)
	}

	for _, name := range []string{"Master Bedroom", "master bedroom", "MASTER BEDROOM"} {
		got, err := repo.GetAreaByName(ctx, name)
		if err != nil {
			t.Fatalf("GetAreaByName(%q) error = %v", name, err)
		}
		if got.ID != created.ID {
			t.Errorf("GetAreaByName(%q).ID = %q, want %q", name, got.ID, created.ID)
		}
	}

	if _, err := repo.GetAreaByName(ctx, "Garage"); !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("GetAreaByName(missing) error = %v, want ErrAreaNotFound", err)
	}
}

func TestListAreas(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	areas, err := repo.ListAreas(ctx)
	if err != nil {
		t.Fatalf("ListAreas() error = %v", err)
	}
	if len(areas) != 0 {
		t.Fatalf("ListAreas() on empty db = %d areas", len(areas))
	}

	for _, name := range []string{"Kitchen", "Bedroom", "Hall"} {
		if _, err := repo.CreateArea(ctx, name); err != nil {
			t.Fatalf("CreateArea(%q) error = %v", name, err)
		}
	}

	areas, err = repo.ListAreas(ctx)
	if err != nil {
		t.Fatalf("ListAreas() error = %v", err)
	}
	var names []string
	for _, a := range areas {
		names = append(names, a.Name)
	}
	if strings.Join(names, ",") != "Bedroom,Hall,Kitchen" {
		t.Errorf("ListAreas() names = %v", names)
	}
}

func TestDeleteArea(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	area, err := repo.CreateArea(ctx, "Cellar")
	if err != nil {
		t.Fatalf("CreateArea() error = %v", err)
	}
	if err := repo.DeleteArea(ctx, area.ID); err != nil {
		t.Fatalf("DeleteArea() error = %v", err)
	}
	if _, err := repo.GetArea(ctx, area.ID); !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("GetArea() after delete error = %v", err)
	}
	if err := repo.DeleteArea(ctx, area.ID); !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("DeleteArea() twice error = %v, want ErrAreaNotFound", err)
	}
}
