package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"techhome/internal/models"
)

// ErrDeviceNotFound is returned when a device lookup matches no row.
var ErrDeviceNotFound = errors.New("device not found")

// ListEnabledAutomations fetches all automations with enabled = true.
func (d *DB) ListEnabledAutomations(ctx context.Context) ([]models.Automation, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT id, name, type, condition, action, enabled FROM automations WHERE enabled = true")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var automations []models.Automation
	for rows.Next() {
		var a models.Automation
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Condition, &a.Action, &a.Enabled); err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	return automations, rows.Err()
}

// GetAutomationByID fetches one automation.
func (d *DB) GetAutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	var a models.Automation
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, type, condition, action, enabled FROM automations WHERE id = $1", id).
		Scan(&a.ID, &a.Name, &a.Type, &a.Condition, &a.Action, &a.Enabled)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDeviceByID fetches a device by its ID.
func (d *DB) GetDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, type, is_on, temperature, room_id, is_home_assistant, entity_id FROM devices WHERE id = $1", id).
		Scan(&device.ID, &device.Name, &device.Type, &device.IsOn, &device.Temperature,
			&device.RoomID, &device.IsHomeAssistant, &device.EntityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDeviceByEntityID fetches the device mirrored to a Home Assistant entity.
func (d *DB) GetDeviceByEntityID(ctx context.Context, entityID string) (*models.Device, error) {
	var device models.Device
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, type, is_on, temperature, room_id, is_home_assistant, entity_id FROM devices WHERE entity_id = $1", entityID).
		Scan(&device.ID, &device.Name, &device.Type, &device.IsOn, &device.Temperature,
			&device.RoomID, &device.IsHomeAssistant, &device.EntityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// SetDeviceState persists a device's on/off state. Last writer wins: there is
// no version check against concurrent toggles.
func (d *DB) SetDeviceState(ctx context.Context, id string, isOn bool) error {
	_, err := d.pool.Exec(ctx, "UPDATE devices SET is_on = $1 WHERE id = $2", isOn, id)
	return err
}

// InsertDeviceLog appends one usage record.
func (d *DB) InsertDeviceLog(ctx context.Context, user, device, action, result string) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO device_logs (username, device, action, result) VALUES ($1, $2, $3, $4)",
		user, device, action, result)
	return err
}
