package dynalite

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcherReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynalite.yaml")
	if err := os.WriteFile(path, []byte("bridges:\n  - host: h\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	changes := make(chan *Config, 4)
	w, err := NewConfigWatcher(path, func(cfg *Config) { changes <- cfg }, nil)
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	w.debounce = 20 * time.Millisecond
	w.Start()
	defer w.Stop()

	// Invalid content is ignored.
	if err := os.WriteFile(path, []byte("bridges: []\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	select {
	case cfg := <-changes:
		t.Fatalf("invalid config delivered: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("bridges:\n  - host: h\n    name: Upstairs\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	select {
	case cfg := <-changes:
		if cfg.Bridges[0].Name != "Upstairs" {
			t.Errorf("reloaded name = %q, want Upstairs", cfg.Bridges[0].Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change not delivered")
	}

	// Other files in the directory are ignored.
	drain := time.After(150 * time.Millisecond)
	for draining := true; draining; {
		select {
		case <-changes:
		case <-drain:
			draining = false
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600); err != nil {
		t.Fatalf("writing other file: %v", err)
	}
	select {
	case cfg := <-changes:
		t.Errorf("unrelated file triggered reload: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConfigWatcherRequiresCallback(t *testing.T) {
	if _, err := NewConfigWatcher(filepath.Join(t.TempDir(), "x.yaml"), nil, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestConfigWatcherStopIdempotent(t *testing.T) {
	w, err := NewConfigWatcher(filepath.Join(t.TempDir(), "x.yaml"), func(*Config) {}, nil)
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}
