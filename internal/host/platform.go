package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
	"github.com/nerrad567/gray-logic-dynalite/internal/device"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge is the part of *dynalite.Bridge a platform drives.
type Bridge interface {
	Name() string
	RegisterAddEntities(category dynalite.Category, fn dynalite.AddEntitiesFunc) error
	EntityAdded(ctx context.Context, e dynalite.Entity) (dynalite.AssignResult, error)
}

// DeviceSeeder creates the device record backing an entity.
// *device.Registry implements it.
type DeviceSeeder interface {
	EnsureDevice(ctx context.Context, seed device.Seed) (*device.Device, bool, error)
}

// LevelWriter records entity levels as telemetry.
// *influxdb.Client implements it.
type LevelWriter interface {
	WriteEntityLevel(uniqueID, category string, level float64)
}

// PlatformOptions contains configuration for creating a Platform.
type PlatformOptions struct {
	// Bridge is the Dynalite bridge whose entities are adopted.
	Bridge Bridge

	// MQTT publishes discovery, state and acks and receives commands.
	MQTT dynalite.MQTTClient

	// Devices is seeded with one device per adopted entity.
	Devices DeviceSeeder

	// Levels is optional. When set, every state refresh writes the level.
	Levels LevelWriter

	// QoS for state, discovery and ack messages. Default: 1.
	QoS *byte

	// Logger is optional structured logger.
	Logger Logger
}

// Metrics contains platform counters for the API metrics endpoint.
type Metrics struct {
	Adopted         int    `json:"adopted"`
	StatesPublished uint64 `json:"states_published"`
	CommandsRx      uint64 `json:"commands_received"`
	CommandsFailed  uint64 `json:"commands_failed"`
	Dropped         uint64 `json:"entities_dropped"`
}

// Platform adopts the entities of one bridge and serves their commands.
type Platform struct {
	bridge  Bridge
	name    string
	mqtt    dynalite.MQTTClient
	devices DeviceSeeder
	levels  LevelWriter
	qos     byte
	logger  Logger

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	adopted map[string]dynalite.Entity
	topic   string

	statesTx   atomic.Uint64
	commandsRx atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
}

// NewPlatform creates a platform for opts.Bridge. Call Start to register it.
func NewPlatform(opts PlatformOptions) (*Platform, error) {
	if opts.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	qos := byte(1)
	if opts.QoS != nil {
		qos = *opts.QoS
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Platform{
		bridge:  opts.Bridge,
		name:    opts.Bridge.Name(),
		mqtt:    opts.MQTT,
		devices: opts.Devices,
		levels:  opts.Levels,
		qos:     qos,
		logger:  logger,
		adopted: make(map[string]dynalite.Entity),
	}, nil
}

// Start subscribes to the bridge's command topic and registers the
// add-entities callback for every category. Entities the bridge queued
// before Start are adopted before it returns.
//
// Parameters:
//   - ctx: Parent context for registry calls and commands; cancelling it
//     has the same effect on in-flight work as Stop
//
// Returns:
//   - error: If the subscription or a registration failed
func (p *Platform) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("platform %s already started", p.name)
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.topic = dynalite.CommandSubscribeTopic(p.name)
	topic := p.topic
	p.mu.Unlock()

	if err := p.mqtt.Subscribe(topic, p.qos, p.handleCommand); err != nil {
		p.Stop()
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	for _, category := range dynalite.Categories {
		if err := p.bridge.RegisterAddEntities(category, p.addEntities); err != nil {
			p.Stop()
			return fmt.Errorf("registering %s platform: %w", category, err)
		}
	}

	p.logger.Info("dynalite platform started", "bridge", p.name, "topic", topic)
	return nil
}

// Stop unsubscribes from commands and cancels in-flight work. Adopted
// entities are forgotten. Stop is idempotent.
func (p *Platform) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	topic := p.topic
	p.cancel = nil
	p.topic = ""
	p.adopted = make(map[string]dynalite.Entity)
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if topic != "" {
		if err := p.mqtt.Unsubscribe(topic); err != nil {
			p.logger.Warn("unsubscribing platform", "bridge", p.name, "error", err)
		}
	}
	p.logger.Info("dynalite platform stopped", "bridge", p.name)
}

// Adopted returns the adopted entity with uniqueID.
func (p *Platform) Adopted(uniqueID string) (dynalite.Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.adopted[uniqueID]
	return e, ok
}

// GetMetrics returns current platform counters.
func (p *Platform) GetMetrics() Metrics {
	p.mu.RLock()
	adopted := len(p.adopted)
	p.mu.RUnlock()

	return Metrics{
		Adopted:         adopted,
		StatesPublished: p.statesTx.Load(),
		CommandsRx:      p.commandsRx.Load(),
		CommandsFailed:  p.failed.Load(),
		Dropped:         p.dropped.Load(),
	}
}

// addEntities is the add-entities callback handed to the bridge. The
// bridge does not redeliver a batch, so one arriving after Stop is lost;
// it is logged and counted.
func (p *Platform) addEntities(entities []dynalite.Entity) {
	ctx := p.context()
	if ctx == nil {
		ids := make([]string, 0, len(entities))
		for _, e := range entities {
			ids = append(ids, e.UniqueID())
		}
		p.dropped.Add(uint64(len(entities)))
		p.logger.Warn("platform stopped, dropping entities",
			"bridge", p.name,
			"count", len(entities),
			"unique_ids", ids,
		)
		return
	}

	for _, e := range entities {
		if err := p.adopt(ctx, e); err != nil {
			p.logger.Error("adopting entity", "bridge", p.name, "unique_id", e.UniqueID(), "error", err)
		}
	}
}

// adopt seeds the device, announces the entity, attaches the platform as
// its host handle, publishes the initial state and lets the bridge link
// it to its house area.
func (p *Platform) adopt(ctx context.Context, e dynalite.Entity) error {
	_, created, err := p.devices.EnsureDevice(ctx, device.Seed{
		UniqueID: e.UniqueID(),
		Bridge:   p.name,
		Name:     e.Name(),
		Category: string(e.Category()),
	})
	if err != nil {
		return fmt.Errorf("seeding device: %w", err)
	}

	if err := p.publishJSON(dynalite.DiscoveryTopic(p.name, e.UniqueID()),
		dynalite.NewDiscoveryMessage(p.name, e), true); err != nil {
		p.logger.Warn("publishing discovery", "unique_id", e.UniqueID(), "error", err)
	}

	p.mu.Lock()
	p.adopted[e.UniqueID()] = e
	p.mu.Unlock()

	e.Attach(p)
	p.RequestRefresh(e)

	result, err := p.bridge.EntityAdded(ctx, e)
	if err != nil {
		return fmt.Errorf("assigning area: %w", err)
	}

	p.logger.Debug("entity adopted",
		"bridge", p.name,
		"unique_id", e.UniqueID(),
		"category", e.Category(),
		"device_created", created,
		"area", result.String(),
	)
	return nil
}

// RequestRefresh publishes the entity's current state and records its
// level. It implements dynalite.HostHandle.
func (p *Platform) RequestRefresh(e dynalite.Entity) {
	if p.context() == nil {
		return
	}

	msg := dynalite.NewStateMessage(p.name, e)
	if err := p.publishJSON(dynalite.StateTopic(p.name, e.UniqueID()), msg, true); err != nil {
		p.logger.Warn("publishing state", "unique_id", e.UniqueID(), "error", err)
	} else {
		p.statesTx.Add(1)
	}

	if p.levels != nil {
		if level, ok := entityLevel(e); ok {
			p.levels.WriteEntityLevel(e.UniqueID(), string(e.Category()), level)
		}
	}
}

// entityLevel returns the level recorded as telemetry: brightness for
// lights, position for covers and 0 or 1 for switches.
func entityLevel(e dynalite.Entity) (float64, bool) {
	switch v := e.(type) {
	case *dynalite.Light:
		return v.Level(), true
	case *dynalite.Cover:
		return v.Position(), true
	case interface{ IsOn() bool }:
		if v.IsOn() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (p *Platform) publishJSON(topic string, msg any, retained bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling %T: %w", msg, err)
	}
	return p.mqtt.Publish(topic, payload, p.qos, retained)
}

// context returns the platform context, or nil when stopped.
func (p *Platform) context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cancel == nil {
		return nil
	}
	return p.ctx
}
