package dynalite

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte) error
	publishErr    error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte) error),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) HasHandler(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// SimulateMessage delivers payload to the handler whose filter matches
// topic. Only exact topics and a trailing "+" level are matched.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler func(string, []byte) error
	for filter, h := range m.handlers {
		if filter == topic {
			handler = h
			break
		}
		if strings.HasSuffix(filter, "/+") {
			prefix := strings.TrimSuffix(filter, "+")
			rest := strings.TrimPrefix(topic, prefix)
			if strings.HasPrefix(topic, prefix) && rest != "" && !strings.Contains(rest, "/") {
				handler = h
			}
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no handler for topic " + topic)
	}
	return handler(topic, payload)
}

// mockDevice records commands sent through a Device handle.
type mockDevice struct {
	mu    sync.Mutex
	calls []deviceCall
	err   error
}

type deviceCall struct {
	Op         string
	Brightness *float64
}

func (d *mockDevice) TurnOn(_ context.Context, brightness *float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deviceCall{Op: "on", Brightness: brightness})
	return d.err
}

func (d *mockDevice) TurnOff(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deviceCall{Op: "off"})
	return d.err
}

func (d *mockDevice) StopFade(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deviceCall{Op: "stop"})
	return d.err
}

func (d *mockDevice) Calls() []deviceCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]deviceCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// mockProtocolClient implements ProtocolClient for testing.
type mockProtocolClient struct {
	mu         sync.Mutex
	listeners  map[string][]*mockListener
	configured []*BridgeConfig
	started    int
	stopped    int
	connected  bool
	startErr   error
	devices    map[string]*mockDevice
}

type mockListener struct {
	fn      func(Attributes)
	removed bool
}

func newMockProtocolClient() *mockProtocolClient {
	return &mockProtocolClient{
		listeners: make(map[string][]*mockListener),
		connected: true,
		devices:   make(map[string]*mockDevice),
	}
}

func (c *mockProtocolClient) Configure(cfg *BridgeConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configured = append(c.configured, cfg)
	return nil
}

func (c *mockProtocolClient) AddListener(eventType string, fn func(Attributes)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &mockListener{fn: fn}
	c.listeners[eventType] = append(c.listeners[eventType], l)
	return func() {
		c.mu.Lock()
		l.removed = true
		c.mu.Unlock()
	}
}

func (c *mockProtocolClient) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started++
	return nil
}

func (c *mockProtocolClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	return nil
}

func (c *mockProtocolClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *mockProtocolClient) device(key string) *mockDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[key]
	if !ok {
		d = &mockDevice{}
		c.devices[key] = d
	}
	return d
}

func (c *mockProtocolClient) ChannelDevice(area, channel int) Device {
	return c.device(ChannelKey(area, channel).String())
}

func (c *mockProtocolClient) PresetDevice(area, preset int) Device {
	return c.device(PresetKey(area, preset).String())
}

// activeListeners returns the listeners for eventType that were not removed.
func (c *mockProtocolClient) activeListeners(eventType string) []func(Attributes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []func(Attributes)
	for _, l := range c.listeners[eventType] {
		if !l.removed {
			out = append(out, l.fn)
		}
	}
	return out
}

// emit delivers an attribute bag to the active listeners for eventType.
func (c *mockProtocolClient) emit(eventType string, attrs map[string]any) {
	a := AttributesFromMap(attrs)
	for _, fn := range c.activeListeners(eventType) {
		fn(a)
	}
}

// mockAreaRegistry implements AreaRegistry for testing.
type mockAreaRegistry struct {
	mu      sync.Mutex
	areas   map[string]string
	lookups int
	creates int
}

func newMockAreaRegistry(existing ...string) *mockAreaRegistry {
	r := &mockAreaRegistry{areas: make(map[string]string)}
	for _, name := range existing {
		r.areas[strings.ToLower(name)] = "area-" + strings.ToLower(name)
	}
	return r
}

func (r *mockAreaRegistry) LookupArea(_ context.Context, name string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	id, ok := r.areas[strings.ToLower(name)]
	return id, ok, nil
}

func (r *mockAreaRegistry) CreateArea(_ context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	id := "area-" + strings.ToLower(name)
	r.areas[strings.ToLower(name)] = id
	return id, nil
}

func (r *mockAreaRegistry) counts() (lookups, creates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups, r.creates
}

// mockDeviceRegistry implements DeviceRegistry for testing.
type mockDeviceRegistry struct {
	mu      sync.Mutex
	devices map[string]string
	links   map[string]string
	lookups int
}

func newMockDeviceRegistry() *mockDeviceRegistry {
	return &mockDeviceRegistry{
		devices: make(map[string]string),
		links:   make(map[string]string),
	}
}

func (r *mockDeviceRegistry) add(uniqueID, deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[uniqueID] = deviceID
}

func (r *mockDeviceRegistry) LookupDevice(_ context.Context, uniqueID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	id, ok := r.devices[uniqueID]
	return id, ok, nil
}

func (r *mockDeviceRegistry) SetDeviceArea(_ context.Context, deviceID, areaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[deviceID] = areaID
	return nil
}

func (r *mockDeviceRegistry) link(deviceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[deviceID]
}

// mockHandle implements HostHandle and counts refresh requests.
type mockHandle struct {
	mu        sync.Mutex
	refreshed map[string]int
}

func newMockHandle() *mockHandle {
	return &mockHandle{refreshed: make(map[string]int)}
}

func (h *mockHandle) RequestRefresh(e Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshed[e.UniqueID()]++
}

func (h *mockHandle) count(uniqueID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshed[uniqueID]
}

// collector is an AddEntitiesFunc that records every batch.
type collector struct {
	mu      sync.Mutex
	batches [][]Entity
}

func (c *collector) add(entities []Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := make([]Entity, len(entities))
	copy(batch, entities)
	c.batches = append(c.batches, batch)
}

func (c *collector) all() []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entity
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}
