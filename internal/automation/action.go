package automation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is the device operation an automation performs.
type Command string

const (
	CommandToggle  Command = "toggle"
	CommandTurnOn  Command = "turn_on"
	CommandTurnOff Command = "turn_off"
)

// Action is an automation's parsed action payload.
type Action struct {
	DeviceID string  `json:"deviceId"`
	Command  Command `json:"command"`
	Value    *bool   `json:"value,omitempty"`
}

// ParseAction decodes an action payload. A missing command defaults to
// toggle, matching rules created by older frontend versions.
func ParseAction(raw json.RawMessage) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("automation: invalid action payload: %w", err)
	}
	if a.Command == "" {
		a.Command = CommandToggle
	}
	a.Command = Command(strings.ToLower(string(a.Command)))
	return a, nil
}

// NewState computes the device state this action produces.
func (a Action) NewState(current bool) (bool, error) {
	switch a.Command {
	case CommandTurnOn:
		return true, nil
	case CommandTurnOff:
		return false, nil
	case CommandToggle:
		return !current, nil
	default:
		return false, fmt.Errorf("automation: unsupported command %q", a.Command)
	}
}
