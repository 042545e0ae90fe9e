package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/logging"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != defaultConfigPath {
		t.Errorf("configPath = %q, want %q", opts.configPath, defaultConfigPath)
	}
	if opts.dynaliteConfig != "" || opts.logLevel != "" {
		t.Errorf("unexpected overrides: %+v", opts)
	}
}

func TestParseFlags_FlagsAndEnv(t *testing.T) {
	t.Setenv("GRAYLOGIC_DYNALITE_CONFIG", "/etc/graylogic/dynalite.yaml")

	opts, err := parseFlags([]string{"-config", "/tmp/core.yaml", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != "/tmp/core.yaml" {
		t.Errorf("configPath = %q", opts.configPath)
	}
	if opts.logLevel != "debug" {
		t.Errorf("logLevel = %q", opts.logLevel)
	}
	if opts.dynaliteConfig != "/etc/graylogic/dynalite.yaml" {
		t.Errorf("dynaliteConfig = %q, want value from environment", opts.dynaliteConfig)
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := parseFlags([]string{"-nope"}); err == nil {
		t.Error("parseFlags() with unknown flag expected error")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	opts := options{
		configPath:     filepath.Join(t.TempDir(), "missing.yaml"),
		dynaliteConfig: "/srv/dynalite.yaml",
		logLevel:       "warn",
	}

	cfg, err := loadConfig(opts, logging.Default())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Dynalite.ConfigFile != "/srv/dynalite.yaml" {
		t.Errorf("Dynalite.ConfigFile = %q", cfg.Dynalite.ConfigFile)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 8092 {
		t.Errorf("API.Port = %d, want default 8092", cfg.API.Port)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  qos: 7\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := loadConfig(options{configPath: path}, logging.Default()); err == nil {
		t.Error("loadConfig() with invalid qos expected error")
	}
}

// TestRun_MissingDynaliteConfig verifies run fails before opening the
// database or broker when the bridge configuration cannot be read.
func TestRun_MissingDynaliteConfig(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		configPath:     filepath.Join(dir, "missing.yaml"),
		dynaliteConfig: filepath.Join(dir, "dynalite.yaml"),
		logLevel:       "error",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, opts)
	if err == nil {
		t.Fatal("run() should fail without a dynalite config")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("run() error = %v, want not-exist", err)
	}
}

// flakyProtocol fails Start a fixed number of times.
type flakyProtocol struct {
	failures atomic.Int32
	starts   atomic.Int32
}

func (p *flakyProtocol) Configure(*dynalite.BridgeConfig) error               { return nil }
func (p *flakyProtocol) AddListener(string, func(dynalite.Attributes)) func() { return func() {} }
func (p *flakyProtocol) Stop() error                                          { return nil }
func (p *flakyProtocol) Connected() bool                                      { return true }
func (p *flakyProtocol) ChannelDevice(int, int) dynalite.Device               { return nil }
func (p *flakyProtocol) PresetDevice(int, int) dynalite.Device                { return nil }

func (p *flakyProtocol) Start(context.Context) error {
	p.starts.Add(1)
	if p.failures.Add(-1) >= 0 {
		return errors.New("gateway offline")
	}
	return nil
}

func newTestBridge(t *testing.T, host string, client dynalite.ProtocolClient) *dynalite.Bridge {
	t.Helper()
	b, err := dynalite.NewBridge(dynalite.BridgeOptions{
		Config: &dynalite.BridgeConfig{Name: "home", Host: host, AreaCreate: dynalite.AreaManual},
		Client: client,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b
}

func TestSetupWithRetry_RetriesNotReady(t *testing.T) {
	proto := &flakyProtocol{}
	proto.failures.Store(1)
	b := newTestBridge(t, "10.0.0.5", proto)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	setupWithRetry(ctx, b, logging.Default())

	if got := b.State(); got != dynalite.StateConnected {
		t.Errorf("State() = %v, want connected", got)
	}
	if got := proto.starts.Load(); got != 2 {
		t.Errorf("Start calls = %d, want 2", got)
	}
}

func TestSetupWithRetry_StopsOnCancel(t *testing.T) {
	proto := &flakyProtocol{}
	proto.failures.Store(1000)
	b := newTestBridge(t, "10.0.0.5", proto)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		setupWithRetry(ctx, b, logging.Default())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("setupWithRetry did not return after cancel")
	}
	if b.State() == dynalite.StateConnected {
		t.Error("bridge connected despite gateway failures")
	}
}

func TestService_Reload(t *testing.T) {
	svc := newService(context.Background(), logging.Default())
	b := newTestBridge(t, "10.0.0.5", &flakyProtocol{})
	svc.bridges = append(svc.bridges, &runningBridge{bridge: b})

	svc.reload(&dynalite.Config{Bridges: []dynalite.BridgeConfig{
		{Name: "renamed", Host: "10.0.0.5"},
		{Name: "new", Host: "10.0.0.9"},
	}})

	if got := b.Config().Name; got != "renamed" {
		t.Errorf("bridge name after reload = %q, want %q", got, "renamed")
	}
}
