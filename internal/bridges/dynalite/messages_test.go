package dynalite

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCommandMessageUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantTS  time.Time
		wantErr bool
	}{
		{
			name:    "fractional seconds",
			payload: `{"id":"c1","timestamp":"2026-01-15T10:30:00.123Z","command":"dim","parameters":{"level":50}}`,
			wantTS:  time.Date(2026, 1, 15, 10, 30, 0, 123000000, time.UTC),
		},
		{
			name:    "whole seconds",
			payload: `{"id":"c1","timestamp":"2026-01-15T10:30:00Z","command":"on"}`,
			wantTS:  time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:    "no timestamp",
			payload: `{"id":"c1","command":"on"}`,
		},
		{
			name:    "bad timestamp",
			payload: `{"id":"c1","timestamp":"yesterday","command":"on"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd CommandMessage
			err := json.Unmarshal([]byte(tt.payload), &cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cmd.ID != "c1" {
				t.Errorf("ID = %q, want c1", cmd.ID)
			}
			if !cmd.Timestamp.Equal(tt.wantTS) {
				t.Errorf("Timestamp = %v, want %v", cmd.Timestamp, tt.wantTS)
			}
		})
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "c9", DeviceID: "dynalite_h_a1_c1"}

	ack := NewAckError(cmd, "Home", ErrCodeInvalidCommand, "nope")
	if ack.Status != AckFailed {
		t.Errorf("Status = %q, want failed", ack.Status)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeInvalidCommand {
		t.Errorf("Error = %+v", ack.Error)
	}
	if ack.CommandID != "c9" || ack.Protocol != Protocol || ack.Bridge != "Home" {
		t.Errorf("ack = %+v", ack)
	}

	if ack := NewAckError(cmd, "Home", ErrCodeTimeout, "slow"); ack.Status != AckTimeout {
		t.Errorf("timeout Status = %q, want timeout", ack.Status)
	}
}

func TestNewDiscoveryMessage(t *testing.T) {
	tilt := 0.5
	cover := newCover(entitySpec{
		host:      "h",
		key:       ChannelKey(7, 1),
		name:      "Lounge",
		houseArea: "Living",
	}, &mockDevice{}, "blind", 1, &tilt)

	msg := NewDiscoveryMessage("Home", cover)
	if msg.UniqueID != "dynalite_h_a7_c1" || msg.Address != "a7_c1" {
		t.Errorf("UniqueID/Address = %q/%q", msg.UniqueID, msg.Address)
	}
	if msg.Category != CategoryCover || msg.DeviceClass != "blind" || msg.Area != "Living" {
		t.Errorf("msg = %+v", msg)
	}
	want := []string{CmdOpen, CmdClose, CmdStop, CmdSetPosition, CmdOpenTilt, CmdCloseTilt, CmdStopTilt, CmdSetTilt}
	if diff := cmp.Diff(want, msg.Capabilities); diff != "" {
		t.Errorf("Capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestCapabilities(t *testing.T) {
	spec := entitySpec{host: "h", key: ChannelKey(1, 1)}
	tests := []struct {
		name   string
		entity Entity
		want   []string
	}{
		{"light", newLight(spec, &mockDevice{}), []string{CmdOn, CmdOff, CmdDim}},
		{"switch", newChannelSwitch(spec, &mockDevice{}), []string{CmdOn, CmdOff}},
		{"plain cover", newCover(spec, &mockDevice{}, "shutter", 1, nil), []string{CmdOpen, CmdClose, CmdStop, CmdSetPosition}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Capabilities(tt.entity)); diff != "" {
			t.Errorf("%s capabilities mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestNewStateMessage(t *testing.T) {
	light := newLight(entitySpec{host: "h", key: ChannelKey(1, 1)}, &mockDevice{})
	light.applyReport(0.5, 0.5)

	msg := NewStateMessage("Home", light)
	if msg.DeviceID != "dynalite_h_a1_c1" {
		t.Errorf("DeviceID = %q", msg.DeviceID)
	}
	want := map[string]any{"available": true, "on": true, "level": 50, "brightness": 128}
	if diff := cmp.Diff(want, msg.State); diff != "" {
		t.Errorf("State mismatch (-want +got):\n%s", diff)
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandTopic("Home", "dynalite_h_a1_c1"), "graylogic/command/dynalite/home/dynalite_h_a1_c1"},
		{CommandSubscribeTopic("Home"), "graylogic/command/dynalite/home/+"},
		{AckTopic("Home", "x"), "graylogic/ack/dynalite/home/x"},
		{StateTopic("Home", "x"), "graylogic/state/dynalite/home/x"},
		{DiscoveryTopic("Home", "x"), "graylogic/discovery/dynalite/home/x"},
		{HealthTopic("Home"), "graylogic/health/dynalite/home"},
		{TopicSegment(" Main House/Ground#1+ "), "main_house_ground_1_"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
