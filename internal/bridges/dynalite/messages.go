package dynalite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Protocol is the protocol identifier used in host messages and topics.
const Protocol = "dynalite"

// MQTT message types exchanged with Gray Logic Core.

// CommandMessage is sent from Core to execute a command on an entity.
// Topic: graylogic/command/dynalite/{bridge}/{unique_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the entity unique ID. The topic is used when empty.
	DeviceID string `json:"device_id"`

	// Command is one of the Cmd* constants.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for dim
	//   {"position": 75} for set_position
	//   {"tilt": 30} for set_tilt
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source"`
}

// Commands understood by the host platform.
const (
	CmdOn          = "on"
	CmdOff         = "off"
	CmdDim         = "dim"
	CmdOpen        = "open"
	CmdClose       = "close"
	CmdStop        = "stop"
	CmdSetPosition = "set_position"
	CmdOpenTilt    = "open_tilt"
	CmdCloseTilt   = "close_tilt"
	CmdStopTilt    = "stop_tilt"
	CmdSetTilt     = "set_tilt"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was sent to the gateway.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the gateway did not take the command in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/dynalite/{bridge}/{unique_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Bridge    string    `json:"bridge"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage carries an entity's state.
// Topic: graylogic/state/dynalite/{bridge}/{unique_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
	Bridge    string         `json:"bridge"`
}

// DiscoveryMessage announces an entity to Core.
// Topic: graylogic/discovery/dynalite/{bridge}/{unique_id}
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Timestamp    time.Time `json:"timestamp"`
	Bridge       string    `json:"bridge"`
	Protocol     string    `json:"protocol"`
	UniqueID     string    `json:"unique_id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	Address      string    `json:"address"`
	Hidden       bool      `json:"hidden"`
	Area         string    `json:"area,omitempty"`
	DeviceClass  string    `json:"device_class,omitempty"`
	Capabilities []string  `json:"capabilities"`
}

// HealthStatus represents the operational status of a bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/dynalite/{bridge}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string       `json:"bridge"`
	Host           string       `json:"host,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	Gateway        string       `json:"gateway"`
	EntitiesActive int          `json:"entities_active"`
	EventsReceived uint64       `json:"events_received"`
	Reason         string       `json:"reason,omitempty"`
}

// UnmarshalJSON accepts timestamps in RFC3339 with or without fractional
// seconds and tolerates a missing timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, bridge string, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Bridge:    bridge,
	}
}

// NewAckError creates a failed acknowledgment with error details.
func NewAckError(cmd CommandMessage, bridge, code, message string) AckMessage {
	ack := NewAckMessage(cmd, bridge, AckFailed)
	if code == ErrCodeTimeout {
		ack.Status = AckTimeout
	}
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for an entity.
func NewStateMessage(bridge string, e Entity) StateMessage {
	return StateMessage{
		DeviceID:  e.UniqueID(),
		Timestamp: time.Now().UTC(),
		State:     e.State(),
		Protocol:  Protocol,
		Bridge:    bridge,
	}
}

// NewDiscoveryMessage describes an entity for Core.
func NewDiscoveryMessage(bridge string, e Entity) DiscoveryMessage {
	msg := DiscoveryMessage{
		Timestamp:    time.Now().UTC(),
		Bridge:       bridge,
		Protocol:     Protocol,
		UniqueID:     e.UniqueID(),
		Name:         e.Name(),
		Category:     e.Category(),
		Address:      e.Key().String(),
		Hidden:       e.Hidden(),
		Area:         e.HouseArea(),
		Capabilities: Capabilities(e),
	}
	if c, ok := e.(*Cover); ok {
		msg.DeviceClass = c.DeviceClass()
	}
	return msg
}

// Capabilities lists the commands an entity accepts.
func Capabilities(e Entity) []string {
	switch v := e.(type) {
	case *Light:
		return []string{CmdOn, CmdOff, CmdDim}
	case *Cover:
		caps := []string{CmdOpen, CmdClose, CmdStop, CmdSetPosition}
		if v.Kind() == CoverWithTilt {
			caps = append(caps, CmdOpenTilt, CmdCloseTilt, CmdStopTilt, CmdSetTilt)
		}
		return caps
	default:
		return []string{CmdOn, CmdOff}
	}
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage(bridge string) HealthMessage {
	return HealthMessage{
		Bridge:    bridge,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Gateway:   "unknown",
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all Gray Logic messages.
	TopicPrefix = "graylogic"
)

// CommandTopic returns the topic commands for an entity arrive on.
// Example: graylogic/command/dynalite/home/dynalite_10.0.0.5_a1_c2
func CommandTopic(bridge, uniqueID string) string {
	return fmt.Sprintf("%s/command/%s/%s/%s", TopicPrefix, Protocol, TopicSegment(bridge), uniqueID)
}

// CommandSubscribeTopic returns the subscription pattern for a bridge's commands.
// Example: graylogic/command/dynalite/home/+
func CommandSubscribeTopic(bridge string) string {
	return fmt.Sprintf("%s/command/%s/%s/+", TopicPrefix, Protocol, TopicSegment(bridge))
}

// AckTopic returns the topic for command acknowledgments.
func AckTopic(bridge, uniqueID string) string {
	return fmt.Sprintf("%s/ack/%s/%s/%s", TopicPrefix, Protocol, TopicSegment(bridge), uniqueID)
}

// StateTopic returns the topic for entity state.
func StateTopic(bridge, uniqueID string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", TopicPrefix, Protocol, TopicSegment(bridge), uniqueID)
}

// DiscoveryTopic returns the topic for entity discovery records.
func DiscoveryTopic(bridge, uniqueID string) string {
	return fmt.Sprintf("%s/discovery/%s/%s/%s", TopicPrefix, Protocol, TopicSegment(bridge), uniqueID)
}

// HealthTopic returns the topic for bridge health.
// Example: graylogic/health/dynalite/home
func HealthTopic(bridge string) string {
	return fmt.Sprintf("%s/health/%s/%s", TopicPrefix, Protocol, TopicSegment(bridge))
}

// TopicSegment makes a name safe to use as a single topic level.
// Example: "Main House/Ground" → "main_house_ground"
func TopicSegment(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == '/' || r == '+' || r == '#' || r == ' ':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
