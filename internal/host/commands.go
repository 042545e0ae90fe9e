package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
)

// commandTimeout bounds the execution of a single command.
const commandTimeout = 5 * time.Second

var errInvalidParameter = errors.New("invalid parameter")

// switchable is implemented by every switch entity.
type switchable interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// handleCommand processes a command message from Core. Failures are
// reported through the ack; the returned error is only logged by the
// MQTT client.
func (p *Platform) handleCommand(topic string, payload []byte) error {
	p.commandsRx.Add(1)

	var cmd dynalite.CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to parse command", "topic", topic, "error", err)
		return nil
	}

	uniqueID := topic[strings.LastIndex(topic, "/")+1:]
	switch {
	case cmd.DeviceID == "":
		cmd.DeviceID = uniqueID
	case cmd.DeviceID != uniqueID:
		p.publishAckError(cmd, uniqueID, dynalite.ErrCodeInvalidCommand,
			fmt.Sprintf("device_id %s does not match topic", cmd.DeviceID))
		return nil
	}

	p.logger.Info("received command",
		"bridge", p.name,
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	e, ok := p.Adopted(cmd.DeviceID)
	if !ok {
		p.publishAckError(cmd, uniqueID, dynalite.ErrCodeNotConfigured,
			fmt.Sprintf("entity %s not adopted", cmd.DeviceID))
		return nil
	}

	parent := p.context()
	if parent == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	if err := executeCommand(ctx, e, cmd); err != nil {
		p.publishAckError(cmd, uniqueID, ackCode(err), err.Error())
		return nil
	}

	p.publishAck(cmd, uniqueID)
	return nil
}

// executeCommand translates a command into a call on the entity.
func executeCommand(ctx context.Context, e dynalite.Entity, cmd dynalite.CommandMessage) error {
	switch v := e.(type) {
	case *dynalite.Light:
		return executeLight(ctx, v, cmd)
	case *dynalite.Cover:
		return executeCover(ctx, v, cmd)
	case switchable:
		return executeSwitch(ctx, v, cmd)
	default:
		return fmt.Errorf("%w: %T", dynalite.ErrUnsupportedCommand, e)
	}
}

func executeLight(ctx context.Context, l *dynalite.Light, cmd dynalite.CommandMessage) error {
	switch cmd.Command {
	case dynalite.CmdOn:
		return l.TurnOn(ctx, nil)
	case dynalite.CmdOff:
		return l.TurnOff(ctx)
	case dynalite.CmdDim:
		level, err := percentParam(cmd.Parameters, "level")
		if err != nil {
			return err
		}
		return l.TurnOn(ctx, &level)
	default:
		return unsupported(cmd.Command, "light")
	}
}

func executeSwitch(ctx context.Context, s switchable, cmd dynalite.CommandMessage) error {
	switch cmd.Command {
	case dynalite.CmdOn:
		return s.TurnOn(ctx)
	case dynalite.CmdOff:
		return s.TurnOff(ctx)
	default:
		return unsupported(cmd.Command, "switch")
	}
}

func executeCover(ctx context.Context, c *dynalite.Cover, cmd dynalite.CommandMessage) error {
	switch cmd.Command {
	case dynalite.CmdOpen:
		return c.Open(ctx)
	case dynalite.CmdClose:
		return c.Close(ctx)
	case dynalite.CmdStop:
		return c.Stop(ctx)
	case dynalite.CmdSetPosition:
		position, err := percentParam(cmd.Parameters, "position")
		if err != nil {
			return err
		}
		return c.SetPosition(ctx, position)
	case dynalite.CmdOpenTilt:
		return c.OpenTilt(ctx)
	case dynalite.CmdCloseTilt:
		return c.CloseTilt(ctx)
	case dynalite.CmdStopTilt:
		return c.StopTilt(ctx)
	case dynalite.CmdSetTilt:
		tilt, err := percentParam(cmd.Parameters, "tilt")
		if err != nil {
			return err
		}
		return c.SetTilt(ctx, tilt)
	default:
		return unsupported(cmd.Command, "cover")
	}
}

func unsupported(command, category string) error {
	return fmt.Errorf("%w: %q for %s", dynalite.ErrUnsupportedCommand, command, category)
}

// percentParam reads a 0-100 parameter and returns it as a fraction.
func percentParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing '%s' parameter", errInvalidParameter, key)
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: '%s' must be a number", errInvalidParameter, key)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: '%s' must be 0-100, got %.2f", errInvalidParameter, key, v)
	}
	return v / 100, nil
}

// publishAck publishes an accepted acknowledgment.
func (p *Platform) publishAck(cmd dynalite.CommandMessage, uniqueID string) {
	ack := dynalite.NewAckMessage(cmd, p.name, dynalite.AckAccepted)
	if err := p.publishJSON(dynalite.AckTopic(p.name, uniqueID), ack, false); err != nil {
		p.logger.Error("failed to publish ack", "command_id", cmd.ID, "error", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (p *Platform) publishAckError(cmd dynalite.CommandMessage, uniqueID, code, message string) {
	p.failed.Add(1)

	ack := dynalite.NewAckError(cmd, p.name, code, message)
	if err := p.publishJSON(dynalite.AckTopic(p.name, uniqueID), ack, false); err != nil {
		p.logger.Error("failed to publish ack error", "command_id", cmd.ID, "error", err)
	}

	p.logger.Warn("command failed",
		"bridge", p.name,
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"code", code,
		"message", message)
}

// ackCode maps a command error to an ack error code.
func ackCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dynalite.ErrCodeTimeout
	case errors.Is(err, dynalite.ErrTiltUnsupported), errors.Is(err, dynalite.ErrUnsupportedCommand):
		return dynalite.ErrCodeInvalidCommand
	case errors.Is(err, errInvalidParameter):
		return dynalite.ErrCodeInvalidParameters
	default:
		return dynalite.ErrCodeBridgeError
	}
}
