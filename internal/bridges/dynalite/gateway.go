package dynalite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MQTTClient is the subset of the MQTT client the gateway and host
// platform need.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Gateway command actions.
const (
	GatewaySetLevel     = "set_level"
	GatewaySelectPreset = "select_preset"
	GatewayStopFade     = "stop_fade"
)

// GatewayCommand is published to <root>/command.
type GatewayCommand struct {
	Action    string    `json:"action"`
	Area      int       `json:"area"`
	Channel   int       `json:"channel,omitempty"`
	Preset    int       `json:"preset,omitempty"`
	Level     *float64  `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GatewayOptions configures a GatewayClient.
type GatewayOptions struct {
	// Prefix is the gateway's MQTT topic root. Default: "dynalite".
	Prefix string

	// Host is the Dynalite host the gateway serves; it scopes the topics.
	Host string

	// MQTT is the connected MQTT client.
	MQTT MQTTClient

	// Logger is optional structured logger.
	Logger Logger
}

// GatewayStats contains gateway traffic counters.
type GatewayStats struct {
	EventsRx   uint64
	CommandsTx uint64
	Errors     uint64
}

// GatewayClient implements ProtocolClient against a Dynalite gateway
// daemon reached over MQTT. Topics live under {prefix}/{host}:
//
//	<root>/event/<TYPE>  inbound JSON attribute bag
//	<root>/status        inbound "online"/"offline" or {"connected":bool}
//	<root>/command       outbound GatewayCommand
//	<root>/config        outbound retained bridge configuration
type GatewayClient struct {
	root string
	mqtt MQTTClient

	mu        sync.RWMutex
	listeners map[string]map[uint64]func(Attributes)
	nextID    uint64
	config    []byte
	started   bool

	connected  atomic.Bool
	eventsRx   atomic.Uint64
	commandsTx atomic.Uint64
	errors     atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewGatewayClient creates a gateway client. Call Start to subscribe.
func NewGatewayClient(opts GatewayOptions) (*GatewayClient, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	if prefix == "" {
		prefix = DefaultGatewayPrefix
	}

	return &GatewayClient{
		root:      prefix + "/" + TopicSegment(opts.Host),
		mqtt:      opts.MQTT,
		listeners: make(map[string]map[uint64]func(Attributes)),
		logger:    opts.Logger,
	}, nil
}

// Root returns the topic root for this gateway.
func (g *GatewayClient) Root() string { return g.root }

// EventTopic returns the topic a given event type arrives on.
func (g *GatewayClient) EventTopic(eventType string) string { return g.root + "/event/" + eventType }

// StatusTopic returns the gateway status topic.
func (g *GatewayClient) StatusTopic() string { return g.root + "/status" }

// CommandTopic returns the topic commands are published to.
func (g *GatewayClient) CommandTopic() string { return g.root + "/command" }

// ConfigTopic returns the retained configuration topic.
func (g *GatewayClient) ConfigTopic() string { return g.root + "/config" }

// Configure serializes the expanded configuration. It is published when
// the client starts, or immediately if it already has.
func (g *GatewayClient) Configure(cfg *BridgeConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling gateway config: %w", err)
	}

	g.mu.Lock()
	g.config = payload
	started := g.started
	g.mu.Unlock()

	if started {
		return g.publishConfig(payload)
	}
	return nil
}

// AddListener registers fn for eventType. The returned function removes
// the listener and may be called more than once.
func (g *GatewayClient) AddListener(eventType string, fn func(Attributes)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	if g.listeners[eventType] == nil {
		g.listeners[eventType] = make(map[uint64]func(Attributes))
	}
	g.listeners[eventType][id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners[eventType], id)
			if len(g.listeners[eventType]) == 0 {
				delete(g.listeners, eventType)
			}
			g.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (g *GatewayClient) ListenerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, l := range g.listeners {
		n += len(l)
	}
	return n
}

// Start subscribes to the gateway topics and publishes the configuration.
//
// Returns:
//   - error: ErrGatewayUnavailable if MQTT is not connected, or the
//     subscribe/publish error
func (g *GatewayClient) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.mqtt.IsConnected() {
		return ErrGatewayUnavailable
	}

	if err := g.mqtt.Subscribe(g.root+"/event/+", 1, g.handleEvent); err != nil {
		return fmt.Errorf("subscribing to gateway events: %w", err)
	}
	if err := g.mqtt.Subscribe(g.StatusTopic(), 1, g.handleStatus); err != nil {
		//nolint:errcheck // Best-effort rollback
		g.mqtt.Unsubscribe(g.root + "/event/+")
		return fmt.Errorf("subscribing to gateway status: %w", err)
	}

	g.mu.Lock()
	g.started = true
	payload := g.config
	g.mu.Unlock()

	if payload != nil {
		if err := g.publishConfig(payload); err != nil {
			g.logError("failed to publish gateway config", err)
		}
	}

	g.logInfo("gateway client started", "root", g.root)
	return nil
}

// Stop unsubscribes from the gateway topics.
func (g *GatewayClient) Stop() error {
	g.mu.Lock()
	wasStarted := g.started
	g.started = false
	g.mu.Unlock()

	g.connected.Store(false)
	if !wasStarted {
		return nil
	}

	var firstErr error
	for _, topic := range []string{g.root + "/event/+", g.StatusTopic()} {
		if err := g.mqtt.Unsubscribe(topic); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unsubscribing %s: %w", topic, err)
		}
	}
	g.logInfo("gateway client stopped", "root", g.root)
	return firstErr
}

// Connected reports whether the gateway has said it is connected to the
// Dynalite network.
func (g *GatewayClient) Connected() bool {
	return g.connected.Load()
}

// Stats returns traffic counters.
func (g *GatewayClient) Stats() GatewayStats {
	return GatewayStats{
		EventsRx:   g.eventsRx.Load(),
		CommandsTx: g.commandsTx.Load(),
		Errors:     g.errors.Load(),
	}
}

// ChannelDevice returns the command handle for a channel.
func (g *GatewayClient) ChannelDevice(area, channel int) Device {
	return &gatewayDevice{gw: g, area: area, channel: channel}
}

// PresetDevice returns the command handle for a preset.
func (g *GatewayClient) PresetDevice(area, preset int) Device {
	return &gatewayDevice{gw: g, area: area, preset: preset}
}

func (g *GatewayClient) handleEvent(topic string, payload []byte) error {
	eventType := topic[strings.LastIndex(topic, "/")+1:]
	g.eventsRx.Add(1)

	attrs, err := ParseAttributes(payload)
	if err != nil {
		g.errors.Add(1)
		return fmt.Errorf("gateway event %s: %w", eventType, err)
	}
	g.dispatch(eventType, attrs)
	return nil
}

// handleStatus accepts "online"/"offline" or {"connected": bool}.
func (g *GatewayClient) handleStatus(_ string, payload []byte) error {
	var connected bool
	switch s := strings.TrimSpace(string(payload)); strings.ToLower(s) {
	case "online", "connected", "true":
		connected = true
	case "offline", "disconnected", "false":
		connected = false
	default:
		attrs, err := ParseAttributes(payload)
		if err != nil {
			g.errors.Add(1)
			return fmt.Errorf("gateway status: %w", err)
		}
		v, ok := attrs.Bool(attrConnected)
		if !ok {
			g.errors.Add(1)
			return fmt.Errorf("gateway status: %w: missing %q", ErrMalformedEvent, attrConnected)
		}
		connected = v
	}

	g.connected.Store(connected)
	g.dispatch(EventAll, AttributesFromMap(map[string]any{attrConnected: connected}))
	return nil
}

func (g *GatewayClient) dispatch(eventType string, attrs Attributes) {
	g.mu.RLock()
	fns := make([]func(Attributes), 0, len(g.listeners[eventType]))
	for _, fn := range g.listeners[eventType] {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	for _, fn := range fns {
		fn(attrs)
	}
}

func (g *GatewayClient) publishConfig(payload []byte) error {
	if err := g.mqtt.Publish(g.ConfigTopic(), payload, 1, true); err != nil {
		return fmt.Errorf("publishing gateway config: %w", err)
	}
	return nil
}

func (g *GatewayClient) send(ctx context.Context, cmd GatewayCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.mqtt.IsConnected() {
		return ErrGatewayUnavailable
	}
	cmd.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling gateway command: %w", err)
	}
	if err := g.mqtt.Publish(g.CommandTopic(), payload, 1, false); err != nil {
		g.errors.Add(1)
		return fmt.Errorf("publishing gateway command: %w", err)
	}
	g.commandsTx.Add(1)
	return nil
}

func (g *GatewayClient) logInfo(msg string, keysAndValues ...any) {
	g.loggerMu.RLock()
	logger := g.logger
	g.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (g *GatewayClient) logError(msg string, err error) {
	g.loggerMu.RLock()
	logger := g.logger
	g.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// gatewayDevice is the Device handle for one channel or one preset.
// Exactly one of channel and preset is non-zero.
type gatewayDevice struct {
	gw      *GatewayClient
	area    int
	channel int
	preset  int
}

func (d *gatewayDevice) TurnOn(ctx context.Context, brightness *float64) error {
	if d.preset != 0 {
		return d.gw.send(ctx, GatewayCommand{Action: GatewaySelectPreset, Area: d.area, Preset: d.preset})
	}
	level := 1.0
	if brightness != nil {
		level = clampUnit(*brightness)
	}
	return d.gw.send(ctx, GatewayCommand{Action: GatewaySetLevel, Area: d.area, Channel: d.channel, Level: &level})
}

func (d *gatewayDevice) TurnOff(ctx context.Context) error {
	if d.preset != 0 {
		return fmt.Errorf("turn off preset %d: %w", d.preset, ErrUnsupportedCommand)
	}
	level := 0.0
	return d.gw.send(ctx, GatewayCommand{Action: GatewaySetLevel, Area: d.area, Channel: d.channel, Level: &level})
}

func (d *gatewayDevice) StopFade(ctx context.Context) error {
	return d.gw.send(ctx, GatewayCommand{Action: GatewayStopFade, Area: d.area, Channel: d.channel})
}
