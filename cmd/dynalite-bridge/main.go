// Gray Logic Dynalite Bridge
//
// This is the entry point for the Dynalite bridge service. It connects one
// or more Dynalite networks (reached through a gateway daemon on MQTT) to
// Gray Logic:
//   - Lights, switches and covers are exposed as entities over MQTT
//   - Entities are recorded in the device registry and linked to areas
//   - Levels are optionally written to InfluxDB
//   - A local HTTP API serves health and diagnostics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"

	"github.com/nerrad567/gray-logic-dynalite/internal/api"
	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
	"github.com/nerrad567/gray-logic-dynalite/internal/device"
	"github.com/nerrad567/gray-logic-dynalite/internal/host"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dynalite/internal/location"
	"github.com/nerrad567/gray-logic-dynalite/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Setup retry bounds while the gateway is unreachable.
const (
	setupInitialBackoff = time.Second
	setupMaxBackoff     = 30 * time.Second
)

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the command-line settings. Each flag can also be set with
// a GRAYLOGIC_ environment variable (GRAYLOGIC_CONFIG,
// GRAYLOGIC_DYNALITE_CONFIG, GRAYLOGIC_LOG_LEVEL).
type options struct {
	configPath     string
	dynaliteConfig string
	logLevel       string
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := flag.NewFlagSet("dynalite-bridge", flag.ContinueOnError)
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "service configuration file")
	flags.StringVar(&opts.dynaliteConfig, "dynalite-config", "", "Dynalite bridge configuration file (overrides dynalite.config_file)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides logging.level)")

	if err := ff.Parse(flags, args, ff.WithEnvVarPrefix("GRAYLOGIC")); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

// loadConfig reads the service configuration and applies flag overrides.
// A missing file falls back to the built-in defaults.
func loadConfig(opts options, log *logging.Logger) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("config file not found, using defaults", "path", opts.configPath)
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.dynaliteConfig != "" {
		cfg.Dynalite.ConfigFile = opts.dynaliteConfig
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Dynalite bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts, log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Flushes the rotating log file on exit
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"output", cfg.Logging.Output,
	)

	if !cfg.Dynalite.Enabled {
		return fmt.Errorf("dynalite is disabled in %s", opts.configPath)
	}

	dynCfg, err := dynalite.LoadConfig(cfg.Dynalite.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading dynalite config: %w", err)
	}
	log.Info("dynalite config loaded",
		"path", cfg.Dynalite.ConfigFile,
		"bridges", len(dynCfg.Bridges),
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Registries
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	areaRepo := location.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	var mqttOpts []mqtt.Option
	if len(dynCfg.Bridges) == 1 {
		// A single bridge can use its own health topic as the Last Will.
		name := dynCfg.Bridges[0].DisplayName()
		payload, marshalErr := json.Marshal(dynalite.NewLWTMessage(name))
		if marshalErr != nil {
			return fmt.Errorf("building last will: %w", marshalErr)
		}
		mqttOpts = append(mqttOpts, mqtt.WithWill(dynalite.HealthTopic(name), payload))
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqttOpts...)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var levels host.LevelWriter
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		levels = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	prefix := dynCfg.Gateway.Prefix
	if cfg.Dynalite.GatewayPrefix != "" {
		prefix = cfg.Dynalite.GatewayPrefix
	}
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2

	svc := newService(ctx, log)
	defer svc.stop(context.Background())

	for i := range dynCfg.Bridges {
		bc := &dynCfg.Bridges[i]
		if startErr := svc.startBridge(bridgeDeps{
			cfg:      bc,
			prefix:   prefix,
			mqtt:     mqttClient,
			devices:  deviceRegistry,
			areas:    areaRepo,
			levels:   levels,
			qos:      qos,
			interval: cfg.GetHealthInterval(),
		}); startErr != nil {
			return fmt.Errorf("starting bridge %s: %w", bc.DisplayName(), startErr)
		}
	}

	// Hot reload of the bridge configuration file
	if cfg.Dynalite.WatchConfig {
		watcher, watchErr := dynalite.NewConfigWatcher(cfg.Dynalite.ConfigFile, svc.reload, log)
		if watchErr != nil {
			log.Warn("config watch unavailable", "error", watchErr)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	// Diagnostics API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			DB:      db,
			MQTT:    mqttClient,
			Devices: deviceRegistry,
			Areas:   areaRepo,
			Bridges: svc.handles(),
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, watcher, bridges,
	// InfluxDB, MQTT, database.
	return nil
}

// bridgeDeps carries what startBridge needs for one configured bridge.
type bridgeDeps struct {
	cfg      *dynalite.BridgeConfig
	prefix   string
	mqtt     *mqtt.Client
	devices  *device.Registry
	areas    location.Repository
	levels   host.LevelWriter
	qos      byte
	interval time.Duration
}

// runningBridge is one started bridge and its platform.
type runningBridge struct {
	bridge   *dynalite.Bridge
	platform *host.Platform
}

// service owns the running bridges. Its context ends background setup
// before the bridges are unloaded.
type service struct {
	log     *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	bridges []*runningBridge
	wg      sync.WaitGroup
}

func newService(parent context.Context, log *logging.Logger) *service {
	ctx, cancel := context.WithCancel(parent)
	return &service{log: log, ctx: ctx, cancel: cancel}
}

// startBridge wires the gateway client, health reporter, bridge and
// platform for one bridge entry. Setup runs in the background and is
// retried while the gateway is not ready.
func (s *service) startBridge(d bridgeDeps) error {
	name := d.cfg.DisplayName()
	log := s.log.With("bridge", name)
	if d.cfg.LogLevel != "" {
		log = log.WithLevel(d.cfg.LogLevel)
	}

	gateway, err := dynalite.NewGatewayClient(dynalite.GatewayOptions{
		Prefix: d.prefix,
		Host:   d.cfg.Host,
		MQTT:   d.mqtt,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway client: %w", err)
	}

	health := dynalite.NewHealthReporter(dynalite.HealthReporterConfig{
		Bridge:    name,
		Version:   version,
		Interval:  d.interval,
		Publisher: d.mqtt,
	})
	health.SetLogger(log)

	bridge, err := dynalite.NewBridge(dynalite.BridgeOptions{
		Config:  d.cfg,
		Client:  gateway,
		Areas:   host.NewAreaRegistry(d.areas),
		Devices: host.NewDeviceRegistry(d.devices),
		Health:  health,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	platform, err := host.NewPlatform(host.PlatformOptions{
		Bridge:  bridge,
		MQTT:    d.mqtt,
		Devices: d.devices,
		Levels:  d.levels,
		QoS:     &d.qos,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	if err := platform.Start(s.ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}

	if err := health.PublishStarting(); err != nil {
		log.Warn("publishing starting status", "error", err)
	}

	s.bridges = append(s.bridges, &runningBridge{bridge: bridge, platform: platform})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		setupWithRetry(s.ctx, bridge, log)
	}()
	return nil
}

// setupWithRetry calls Setup until it succeeds, fails permanently or ctx
// ends. ErrNotReady is retried with exponential backoff.
func setupWithRetry(ctx context.Context, b *dynalite.Bridge, log *logging.Logger) {
	backoff := setupInitialBackoff
	for attempt := 1; ; attempt++ {
		err := b.Setup(ctx)
		if err == nil {
			return
		}
		if !errors.Is(err, dynalite.ErrNotReady) {
			log.Error("bridge setup failed", "error", err)
			return
		}

		log.Warn("gateway not ready, retrying", "attempt", attempt, "backoff", backoff.String(), "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > setupMaxBackoff {
			backoff = setupMaxBackoff
		}
	}
}

// reload applies a changed configuration file to the running bridges,
// matched by host. Bridges added or removed in the file need a restart.
func (s *service) reload(cfg *dynalite.Config) {
	byHost := make(map[string]*dynalite.BridgeConfig, len(cfg.Bridges))
	for i := range cfg.Bridges {
		byHost[cfg.Bridges[i].Host] = &cfg.Bridges[i]
	}

	for _, rb := range s.bridges {
		bc, ok := byHost[rb.bridge.Host()]
		if !ok {
			s.log.Warn("bridge removed from config; restart to unload", "host", rb.bridge.Host())
			continue
		}
		if err := rb.bridge.ReloadConfig(bc); err != nil {
			s.log.Error("reloading bridge config", "host", rb.bridge.Host(), "error", err)
			continue
		}
		delete(byHost, rb.bridge.Host())
	}
	for h := range byHost {
		s.log.Warn("bridge added to config; restart to load", "host", h)
	}
}

// handles exposes the bridges to the API.
func (s *service) handles() []api.BridgeHandle {
	out := make([]api.BridgeHandle, 0, len(s.bridges))
	for _, rb := range s.bridges {
		out = append(out, api.BridgeHandle{Bridge: rb.bridge, Platform: rb.platform})
	}
	return out
}

// stop ends pending setup retries, then unloads every bridge in reverse
// start order.
func (s *service) stop(ctx context.Context) {
	s.cancel()
	s.wg.Wait()

	for i := len(s.bridges) - 1; i >= 0; i-- {
		rb := s.bridges[i]
		s.log.Info("stopping dynalite bridge", "bridge", rb.bridge.Name())
		rb.platform.Stop()
		if err := rb.bridge.Unload(ctx); err != nil {
			s.log.Error("unloading bridge", "bridge", rb.bridge.Name(), "error", err)
		}
	}
}
