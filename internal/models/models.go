package models

import (
	"encoding/json"
	"time"
)

// Device represents a controllable device. Hub-linked devices carry the
// Home Assistant entity ID they are mirrored to.
type Device struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	IsOn            bool     `json:"isOn"`
	Temperature     *float64 `json:"temperature,omitempty"`
	RoomID          *string  `json:"roomId"`
	IsHomeAssistant bool     `json:"isHomeAssistant"`
	EntityID        *string  `json:"entityId,omitempty"`
}

// Automation is a stored rule: a condition payload, an action payload and an
// enabled flag. Condition and action are kept as raw JSON in the database and
// parsed by the automation package.
type Automation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"` // "time", "device-link", "condition"
	Condition json.RawMessage `json:"condition"`
	Action    json.RawMessage `json:"action"`
	Enabled   bool            `json:"enabled"`
}

// AutomationTypeTime is the only automation type the scheduler acts on.
const AutomationTypeTime = "time"

// Room groups devices.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User account. Password is the bcrypt hash and never serialized.
type User struct {
	ID        int        `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`
}

// DeviceLog is one usage record. Device holds either a local device ID or a
// Home Assistant entity ID depending on where the action was addressed.
type DeviceLog struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	Device    string    `json:"device"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}
