package dynalite

import (
	"encoding/json"
	"sync"
	"time"
)

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals while the
// bridge is set up.
type HealthReporter struct {
	bridge    string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher

	sourceMu sync.RWMutex
	source   HealthSource

	// runMu guards done; a new channel is made for every Start so the
	// reporter can follow the bridge through unload and setup.
	runMu   sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthSource supplies the bridge figures included in health messages.
// *Bridge implements it.
type HealthSource interface {
	Host() string
	Available() bool
	EntityCount() int
	GetMetrics() BridgeMetrics
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Bridge is the bridge name used in the topic and messages.
	Bridge string

	// Version is the software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Source provides bridge state. NewBridge sets it when left nil.
	Source HealthSource
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		bridge:    cfg.Bridge,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
	}
}

// SetSource sets the bridge whose state is reported.
func (h *HealthReporter) SetSource(src HealthSource) {
	h.sourceMu.Lock()
	h.source = src
	h.sourceMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Start publishes "starting" and begins periodic reporting. Calling Start
// on a running reporter does nothing.
func (h *HealthReporter) Start() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.done = make(chan struct{})

	if err := h.PublishStarting(); err != nil {
		h.logError("failed to publish starting health", err)
	}

	h.wg.Add(1)
	go h.reportLoop(h.done)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.runMu.Lock()
	if !h.running {
		h.runMu.Unlock()
		return
	}
	h.running = false
	close(h.done)
	h.runMu.Unlock()

	h.wg.Wait()

	//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
	h.publishStatus(HealthStopping, "bridge unloaded")
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// LWTPayload returns the Last Will and Testament message payload.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridge))
}

// LWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) LWTTopic() string {
	return HealthTopic(h.bridge)
}

func (h *HealthReporter) reportLoop(done <-chan struct{}) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) getSource() HealthSource {
	h.sourceMu.RLock()
	defer h.sourceMu.RUnlock()
	return h.source
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	src := h.getSource()
	if src == nil || !src.Available() {
		return HealthDegraded, "gateway disconnected"
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil // No publisher configured
	}

	msg := HealthMessage{
		Bridge:        h.bridge,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Gateway:       "disconnected",
		Reason:        reason,
	}

	if src := h.getSource(); src != nil {
		m := src.GetMetrics()
		msg.Host = m.Host
		msg.EntitiesActive = m.Entities
		msg.EventsReceived = m.EventsReceived
		if m.Connected {
			msg.Gateway = "connected"
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// Publish (QoS 1, retained)
	return h.publisher.Publish(HealthTopic(h.bridge), payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
