package dynalite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// commandTimeout bounds a single outbound device command.
const commandTimeout = 5 * time.Second

// Ignore reasons counted in BridgeMetrics.Ignored.
const (
	IgnoredUnknownKey    = "unknown_key"
	IgnoredMalformed     = "malformed"
	IgnoredNotConfigured = "not_configured"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ProtocolClient is the Dynalite protocol client the bridge drives.
// GatewayClient is the production implementation.
type ProtocolClient interface {
	// Configure hands the expanded bridge configuration to the client.
	Configure(cfg *BridgeConfig) error
	// AddListener registers fn for an event type (EventNewPreset, ...,
	// EventAll). The returned function removes it.
	AddListener(eventType string, fn func(Attributes)) (remove func())
	Start(ctx context.Context) error
	Stop() error
	Connected() bool
	ChannelDevice(area, channel int) Device
	PresetDevice(area, preset int) Device
}

// State is the bridge lifecycle state.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// BridgeOptions contains configuration for creating a new Bridge.
type BridgeOptions struct {
	// Config is the bridge entry from the configuration file. It is expanded
	// on Setup; the caller's copy is not modified.
	Config *BridgeConfig

	// Client is the protocol client for this bridge's network.
	Client ProtocolClient

	// Areas and Devices are required unless the policy is manual.
	Areas   AreaRegistry
	Devices DeviceRegistry

	// Health is optional. When set it is started on Setup and stopped on
	// Unload.
	Health *HealthReporter

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge coordinates one Dynalite network: it owns the protocol client,
// the entity table and the registration queue.
type Bridge struct {
	client  ProtocolClient
	areas   AreaRegistry
	devices DeviceRegistry
	health  *HealthReporter
	queue   *RegistrationQueue

	// mu guards the fields below.
	mu        sync.Mutex
	rawCfg    *BridgeConfig
	cfg       *BridgeConfig
	table     *EntityTable
	state     State
	listeners []func()

	// areaMu serializes area lookup and creation in EntityAdded.
	areaMu sync.Mutex

	available atomic.Bool
	eventsRx  atomic.Uint64

	statsMu sync.Mutex
	ignored map[string]uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Setup to connect it.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("protocol client is required")
	}
	if opts.Config.Host == "" {
		return nil, fmt.Errorf("config host is required")
	}

	raw := opts.Config.Clone()
	b := &Bridge{
		client:  opts.Client,
		areas:   opts.Areas,
		devices: opts.Devices,
		health:  opts.Health,
		queue:   NewRegistrationQueue(),
		rawCfg:  raw,
		cfg:     ExpandTemplates(raw),
		table:   NewEntityTable(),
		ignored: make(map[string]uint64),
		logger:  opts.Logger,
	}
	if b.health != nil && b.health.getSource() == nil {
		b.health.SetSource(b)
	}
	return b, nil
}

// SetLogger replaces the bridge logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// Host returns the Dynalite host this bridge talks to.
func (b *Bridge) Host() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Host
}

// Name returns the configured bridge name.
func (b *Bridge) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.DisplayName()
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Available reports whether the gateway is connected to the network.
func (b *Bridge) Available() bool {
	return b.available.Load()
}

// Config returns a copy of the expanded configuration in use.
func (b *Bridge) Config() *BridgeConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Clone()
}

// Setup expands the configuration, subscribes to protocol events and
// starts the client.
//
// Parameters:
//   - ctx: Bounds the client start
//
// Returns:
//   - error: ErrNotReady wrapping the client error if the client could not
//     start (retryable), ErrAlreadySetup, or ErrRegistriesRequired
func (b *Bridge) Setup(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateConnecting || b.state == StateConnected {
		b.mu.Unlock()
		return ErrAlreadySetup
	}
	if b.rawCfg.AreaCreate != AreaManual && b.rawCfg.AreaCreate != "" && (b.areas == nil || b.devices == nil) {
		b.mu.Unlock()
		return ErrRegistriesRequired
	}
	b.state = StateConnecting
	b.cfg = ExpandTemplates(b.rawCfg)
	b.table = NewEntityTable()
	cfg := b.cfg
	b.mu.Unlock()

	b.logInfo("setting up dynalite bridge", "host", cfg.Host, "port", cfg.Port)

	if err := b.client.Configure(cfg); err != nil {
		b.setState(StateUninitialized)
		return fmt.Errorf("%w: configuring client: %w", ErrNotReady, err)
	}

	listeners := make([]func(), 0, 5)
	for _, eventType := range []string{EventNewPreset, EventPreset, EventNewChannel, EventChannel, EventAll} {
		listeners = append(listeners, b.client.AddListener(eventType, b.listenerFor(eventType)))
	}

	if err := b.client.Start(ctx); err != nil {
		for _, remove := range listeners {
			remove()
		}
		b.setState(StateUninitialized)
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	b.mu.Lock()
	if b.state != StateConnecting {
		// Unloaded while the client was starting.
		b.mu.Unlock()
		for _, remove := range listeners {
			remove()
		}
		if err := b.client.Stop(); err != nil {
			b.logError("stopping client after teardown", err)
		}
		return ErrTornDown
	}
	b.listeners = listeners
	b.state = StateConnected
	b.mu.Unlock()

	b.available.Store(b.client.Connected())

	if b.health != nil {
		b.health.Start()
	}

	b.logInfo("dynalite bridge set up", "host", cfg.Host, "connected", b.available.Load())
	return nil
}

// Unload tears the bridge down: listeners are removed, the client is
// stopped, host callbacks and queued entities are dropped, entities are
// detached from the host and the lookup tables are cleared.
//
// Unload is idempotent. Setup may be called again afterwards.
func (b *Bridge) Unload(_ context.Context) error {
	b.mu.Lock()
	if b.state == StateUninitialized || b.state == StateTornDown {
		b.mu.Unlock()
		return nil
	}
	wasConnected := b.state == StateConnected
	listeners := b.listeners
	b.listeners = nil
	entities := b.table.All()
	b.table = NewEntityTable()
	b.state = StateTornDown
	b.mu.Unlock()

	for _, remove := range listeners {
		remove()
	}

	var stopErr error
	if wasConnected {
		stopErr = b.client.Stop()
	}

	b.queue.Reset()
	for _, e := range entities {
		e.base().detach()
	}
	b.available.Store(false)

	if b.health != nil {
		b.health.Stop()
	}

	b.logInfo("dynalite bridge unloaded", "entities", len(entities))

	if stopErr != nil {
		return fmt.Errorf("stopping protocol client: %w", stopErr)
	}
	return nil
}

// ReloadConfig replaces the configuration and re-configures the client.
// Existing entities are kept; later discoveries use the new configuration.
func (b *Bridge) ReloadConfig(cfg *BridgeConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	b.mu.Lock()
	if cfg.Host != b.rawCfg.Host {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q != %q", ErrHostMismatch, cfg.Host, b.rawCfg.Host)
	}
	b.rawCfg = cfg.Clone()
	b.cfg = ExpandTemplates(b.rawCfg)
	expanded := b.cfg
	connected := b.state == StateConnected
	b.mu.Unlock()

	if connected {
		if err := b.client.Configure(expanded); err != nil {
			return fmt.Errorf("reconfiguring client: %w", err)
		}
	}

	b.logInfo("dynalite configuration reloaded", "host", expanded.Host, "areas", len(expanded.Area))
	return nil
}

// RegisterAddEntities records the host callback for category and flushes
// any entities waiting for it.
func (b *Bridge) RegisterAddEntities(category Category, fn AddEntitiesFunc) error {
	return b.queue.RegisterAddEntities(category, fn)
}

// Entities returns every known entity, naturally sorted by unique ID.
func (b *Bridge) Entities() []Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.All()
}

// EntityByUniqueID returns the entity with the given unique ID.
func (b *Bridge) EntityByUniqueID(id string) (Entity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.LookupUniqueID(id)
}

// EntityCount returns the number of known entities.
func (b *Bridge) EntityCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.Len()
}

// CommandContext derives a context bounded by the device command timeout.
func CommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, commandTimeout)
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Bridge) listenerFor(eventType string) func(Attributes) {
	return func(attrs Attributes) {
		b.eventsRx.Add(1)
		ev, err := DecodeEvent(eventType, attrs)
		if err != nil {
			b.countIgnored(IgnoredMalformed)
			b.logDebug("dropping malformed event",
				"type", eventType,
				"payload", attrs.Raw(),
				"error", err,
			)
			return
		}
		b.HandleEvent(ev)
	}
}

func (b *Bridge) countIgnored(reason string) {
	b.statsMu.Lock()
	b.ignored[reason]++
	b.statsMu.Unlock()
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Name           string            `json:"name"`
	Host           string            `json:"host"`
	State          string            `json:"state"`
	Connected      bool              `json:"connected"`
	Entities       int               `json:"entities"`
	EventsReceived uint64            `json:"events_received"`
	Ignored        map[string]uint64 `json:"ignored"`
	Pending        map[string]int    `json:"pending"`
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	b.mu.Lock()
	m := BridgeMetrics{
		Name:     b.cfg.DisplayName(),
		Host:     b.cfg.Host,
		State:    b.state.String(),
		Entities: b.table.Len(),
	}
	b.mu.Unlock()

	m.Connected = b.available.Load()
	m.EventsReceived = b.eventsRx.Load()

	b.statsMu.Lock()
	m.Ignored = make(map[string]uint64, len(b.ignored))
	for reason, n := range b.ignored {
		m.Ignored[reason] = n
	}
	b.statsMu.Unlock()

	m.Pending = make(map[string]int, len(Categories))
	for _, c := range Categories {
		m.Pending[string(c)] = b.queue.Pending(c)
	}
	return m
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		if err != nil {
			keysAndValues = append(keysAndValues, "error", err)
		}
		logger.Error(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
