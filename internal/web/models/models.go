package models

import "encoding/json"

type RegisterRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           *string `json:"email"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

type AddDeviceRequest struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	RoomID          *string  `json:"roomId"`
	IsHomeAssistant bool     `json:"isHomeAssistant"`
	EntityID        *string  `json:"entityId"`
	Temperature     *float64 `json:"temperature"`
}

type UpdateDeviceRequest struct {
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	RoomID *string `json:"roomId"`
}

type TemperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

type ToggleAllRequest struct {
	DesiredState *bool `json:"desiredState"`
}

type AddRoomRequest struct {
	Name string `json:"name"`
}

type AddAutomationRequest struct {
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Condition json.RawMessage `json:"condition"`
	Action    json.RawMessage `json:"action"`
	Enabled   *bool           `json:"enabled"`
}

type UpdateAutomationRequest struct {
	Name      *string         `json:"name"`
	Type      *string         `json:"type"`
	Condition json.RawMessage `json:"condition"`
	Action    json.RawMessage `json:"action"`
	Enabled   *bool           `json:"enabled"`
}
