package automation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TimeCondition is a wall-clock trigger extracted from an automation's
// condition payload.
type TimeCondition struct {
	Hour   int
	Minute int
}

// ErrNoTimeCondition is returned when a condition payload carries no
// parseable HH:MM time.
var ErrNoTimeCondition = errors.New("automation: no time condition")

// ParseTimeCondition reads the trigger time from a condition payload.
// Both {"time": "HH:MM"} and the legacy {"value": "HH:MM"} shape are accepted.
func ParseTimeCondition(raw json.RawMessage) (TimeCondition, error) {
	var payload struct {
		Time  string `json:"time"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TimeCondition{}, fmt.Errorf("automation: invalid condition payload: %w", err)
	}

	timeStr := payload.Time
	if timeStr == "" {
		timeStr = payload.Value
	}
	if timeStr == "" {
		return TimeCondition{}, ErrNoTimeCondition
	}

	var hour, minute int
	if _, err := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute); err != nil {
		return TimeCondition{}, fmt.Errorf("automation: invalid time string %q: %w", timeStr, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeCondition{}, fmt.Errorf("automation: time %q out of range", timeStr)
	}

	return TimeCondition{Hour: hour, Minute: minute}, nil
}

// CronSpec returns the daily cron expression for this trigger time.
func (tc TimeCondition) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", tc.Minute, tc.Hour)
}
