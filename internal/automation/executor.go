package automation

import (
	"context"
	"errors"

	"techhome/internal/db"
	"techhome/internal/hub"
	"techhome/internal/logging"
	"techhome/internal/models"
)

// DeviceStore is the device registry surface the executor needs.
type DeviceStore interface {
	GetDeviceByID(ctx context.Context, id string) (*models.Device, error)
	SetDeviceState(ctx context.Context, id string, isOn bool) error
}

// HubCommander mirrors a state change to the external hub.
type HubCommander interface {
	SendCommand(ctx context.Context, entityID string, verb hub.Verb) error
}

// ActionRecorder appends a usage record for analytics.
type ActionRecorder interface {
	RecordDeviceAction(ctx context.Context, user, device, action, result string)
}

// LogUserAutomation marks device-log entries produced by triggered
// automations rather than an interactive user.
const LogUserAutomation = "automation"

// Executor applies one automation's action to its target device. It runs
// unattended from timers, so every failure mode is a logged skip and nothing
// propagates to the caller.
type Executor struct {
	devices DeviceStore
	hub     HubCommander
	logs    ActionRecorder
}

// NewExecutor creates an executor. logs may be nil when usage recording is
// not wanted (tests, one-off tools).
func NewExecutor(devices DeviceStore, hubClient HubCommander, logs ActionRecorder) *Executor {
	return &Executor{devices: devices, hub: hubClient, logs: logs}
}

// Execute resolves the rule's target device, computes the new state, mirrors
// it to the hub for hub-linked devices and persists it locally. The local
// write happens even when the hub call fails: the registry stays the source
// of truth and the discrepancy is observable in the logs.
func (e *Executor) Execute(ctx context.Context, rule models.Automation) {
	logger := logging.Component("executor").With().
		Str("rule_id", rule.ID).Str("rule_name", rule.Name).Logger()

	if !rule.Enabled {
		logger.Debug().Msg("rule disabled, skipping")
		return
	}

	action, err := ParseAction(rule.Action)
	if err != nil {
		logger.Warn().Err(err).Msg("unparsable action, skipping")
		return
	}
	if action.DeviceID == "" {
		logger.Warn().Msg("action has no deviceId, skipping")
		return
	}

	device, err := e.devices.GetDeviceByID(ctx, action.DeviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			logger.Warn().Str("device_id", action.DeviceID).Msg("device not found, skipping")
		} else {
			logger.Error().Err(err).Str("device_id", action.DeviceID).Msg("device lookup failed")
		}
		return
	}

	newState, err := action.NewState(device.IsOn)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping")
		return
	}

	if device.IsHomeAssistant {
		if device.EntityID == nil || *device.EntityID == "" {
			logger.Warn().Str("device", device.Name).Msg("hub-linked device has no entity id, skipping")
			return
		}
		verb := hub.VerbForState(newState)
		if err := e.hub.SendCommand(ctx, *device.EntityID, verb); err != nil {
			// Partial-failure policy: the local registry is updated anyway,
			// the warning keeps the hub/local divergence diagnosable.
			logger.Warn().Err(err).Str("entity_id", *device.EntityID).
				Msg("hub command failed, updating local state anyway")
		} else {
			logger.Info().Str("entity_id", *device.EntityID).Str("verb", string(verb)).
				Msg("hub command sent")
		}
	}

	result := "off"
	if newState {
		result = "on"
	}

	if err := e.devices.SetDeviceState(ctx, device.ID, newState); err != nil {
		logger.Error().Err(err).Str("device", device.Name).Msg("failed to persist device state")
		result = "error"
	} else {
		logger.Info().Str("device", device.Name).Bool("is_on", newState).Msg("automation executed")
	}

	if e.logs != nil {
		ref := device.ID
		if device.IsHomeAssistant && device.EntityID != nil && *device.EntityID != "" {
			ref = *device.EntityID
		}
		e.logs.RecordDeviceAction(ctx, LogUserAutomation, ref, string(action.Command), result)
	}
}
