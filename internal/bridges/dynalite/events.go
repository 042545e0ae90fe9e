package dynalite

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Event types emitted by the protocol client.
const (
	EventNewPreset  = "NEWPRESET"
	EventPreset     = "PRESET"
	EventNewChannel = "NEWCHANNEL"
	EventChannel    = "CHANNEL"
	EventAll        = "*"
)

// Attribute keys carried in event payloads.
const (
	attrArea        = "area"
	attrChannel     = "channel"
	attrPreset      = "preset"
	attrName        = "name"
	attrAction      = "action"
	attrActualLevel = "actual_level"
	attrTargetLevel = "target_level"
	attrConnected   = "connected"
)

// Attributes is the loosely typed attribute bag the protocol client attaches
// to each event. It is a JSON object; accessors report whether the key was
// present with the expected type.
type Attributes struct {
	raw gjson.Result
}

// ParseAttributes parses a JSON object payload.
func ParseAttributes(payload []byte) (Attributes, error) {
	if !gjson.ValidBytes(payload) {
		return Attributes{}, fmt.Errorf("%w: invalid JSON", ErrMalformedEvent)
	}
	r := gjson.ParseBytes(payload)
	if !r.IsObject() {
		return Attributes{}, fmt.Errorf("%w: payload is not an object", ErrMalformedEvent)
	}
	return Attributes{raw: r}, nil
}

// AttributesFromMap builds an attribute bag from a Go map.
func AttributesFromMap(m map[string]any) Attributes {
	data, err := json.Marshal(m)
	if err != nil {
		return Attributes{raw: gjson.Parse("{}")}
	}
	return Attributes{raw: gjson.ParseBytes(data)}
}

// Int returns an integer attribute. Non-integral numbers are rejected.
func (a Attributes) Int(key string) (int, bool) {
	v := a.raw.Get(key)
	if v.Type != gjson.Number {
		return 0, false
	}
	if v.Num != float64(int64(v.Num)) {
		return 0, false
	}
	return int(v.Int()), true
}

// String returns a string attribute.
func (a Attributes) String(key string) (string, bool) {
	v := a.raw.Get(key)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// Bool returns a boolean attribute.
func (a Attributes) Bool(key string) (bool, bool) {
	v := a.raw.Get(key)
	if v.Type != gjson.True && v.Type != gjson.False {
		return false, false
	}
	return v.Bool(), true
}

// Raw returns the underlying JSON text.
func (a Attributes) Raw() string {
	return a.raw.Raw
}

// Event is one of the typed protocol events handled by the bridge.
// The set is closed: NewPresetEvent, PresetChangedEvent, NewChannelEvent,
// ChannelChangedEvent and ConnectionEvent.
type Event interface {
	// Type returns the protocol event type the value was decoded from.
	Type() string
	isEvent()
}

// NewPresetEvent announces a preset seen on the bus for the first time.
type NewPresetEvent struct {
	Area   int
	Preset int
	Name   string
}

// PresetChangedEvent reports that a preset was selected in an area.
type PresetChangedEvent struct {
	Area   int
	Preset int
}

// NewChannelEvent announces a channel seen on the bus for the first time.
type NewChannelEvent struct {
	Area    int
	Channel int
	Name    string
}

// ChannelAction is the kind of channel report.
type ChannelAction string

// Channel actions.
const (
	// ActionReport carries the channel's actual and target level.
	ActionReport ChannelAction = "report"
	// ActionCommand reports that a level was commanded; only the target is known.
	ActionCommand ChannelAction = "cmd"
	// ActionStop reports that a running fade was stopped.
	ActionStop ChannelAction = "stop"
)

// ChannelChangedEvent reports a channel level change. Levels are raw bus
// values (1 = fully on, 255 = off). ActualLevel is zero unless Action is
// ActionReport.
type ChannelChangedEvent struct {
	Area        int
	Channel     int
	Action      ChannelAction
	ActualLevel int
	TargetLevel int
}

// ConnectionEvent reports gateway connectivity to the Dynalite network.
type ConnectionEvent struct {
	Connected bool
}

func (NewPresetEvent) Type() string      { return EventNewPreset }
func (PresetChangedEvent) Type() string  { return EventPreset }
func (NewChannelEvent) Type() string     { return EventNewChannel }
func (ChannelChangedEvent) Type() string { return EventChannel }
func (ConnectionEvent) Type() string     { return EventAll }

func (NewPresetEvent) isEvent()      {}
func (PresetChangedEvent) isEvent()  {}
func (NewChannelEvent) isEvent()     {}
func (ChannelChangedEvent) isEvent() {}
func (ConnectionEvent) isEvent()     {}

// DecodeEvent converts an attribute bag into a typed event.
//
// Parameters:
//   - eventType: One of the Event* constants
//   - attrs: The payload attached to the event
//
// Returns:
//   - Event: The typed event
//   - error: ErrUnknownEventType or ErrMalformedEvent (wrapped with detail)
func DecodeEvent(eventType string, attrs Attributes) (Event, error) {
	switch eventType {
	case EventNewPreset:
		area, preset, err := decodeAddress(attrs, attrPreset)
		if err != nil {
			return nil, err
		}
		name, _ := attrs.String(attrName)
		return NewPresetEvent{Area: area, Preset: preset, Name: name}, nil

	case EventPreset:
		area, preset, err := decodeAddress(attrs, attrPreset)
		if err != nil {
			return nil, err
		}
		return PresetChangedEvent{Area: area, Preset: preset}, nil

	case EventNewChannel:
		area, channel, err := decodeAddress(attrs, attrChannel)
		if err != nil {
			return nil, err
		}
		name, _ := attrs.String(attrName)
		return NewChannelEvent{Area: area, Channel: channel, Name: name}, nil

	case EventChannel:
		return decodeChannelChanged(attrs)

	case EventAll:
		connected, ok := attrs.Bool(attrConnected)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires boolean %q", ErrMalformedEvent, eventType, attrConnected)
		}
		return ConnectionEvent{Connected: connected}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func decodeAddress(attrs Attributes, indexKey string) (area, index int, err error) {
	area, ok := attrs.Int(attrArea)
	if !ok || area < 1 || area > maxIndex {
		return 0, 0, fmt.Errorf("%w: missing or invalid %q", ErrMalformedEvent, attrArea)
	}
	index, ok = attrs.Int(indexKey)
	if !ok || index < 1 || index > maxIndex {
		return 0, 0, fmt.Errorf("%w: missing or invalid %q", ErrMalformedEvent, indexKey)
	}
	return area, index, nil
}

func decodeChannelChanged(attrs Attributes) (Event, error) {
	area, channel, err := decodeAddress(attrs, attrChannel)
	if err != nil {
		return nil, err
	}

	action := ActionReport
	if s, ok := attrs.String(attrAction); ok {
		action = ChannelAction(s)
	}

	ev := ChannelChangedEvent{Area: area, Channel: channel, Action: action}
	switch action {
	case ActionReport:
		actual, ok := rawLevel(attrs, attrActualLevel)
		if !ok {
			return nil, fmt.Errorf("%w: report requires %q", ErrMalformedEvent, attrActualLevel)
		}
		target, ok := rawLevel(attrs, attrTargetLevel)
		if !ok {
			target = actual
		}
		ev.ActualLevel = actual
		ev.TargetLevel = target
	case ActionCommand:
		target, ok := rawLevel(attrs, attrTargetLevel)
		if !ok {
			return nil, fmt.Errorf("%w: cmd requires %q", ErrMalformedEvent, attrTargetLevel)
		}
		ev.TargetLevel = target
	case ActionStop:
	default:
		return nil, fmt.Errorf("%w: unknown channel action %q", ErrMalformedEvent, action)
	}
	return ev, nil
}

func rawLevel(attrs Attributes, key string) (int, bool) {
	v, ok := attrs.Int(key)
	if !ok || v < 0 || v > 255 {
		return 0, false
	}
	return v, true
}
