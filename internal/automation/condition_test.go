package automation

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTimeCondition(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    TimeCondition
		wantErr bool
	}{
		{name: "time key", raw: `{"type":"time","time":"07:30"}`, want: TimeCondition{Hour: 7, Minute: 30}},
		{name: "legacy value key", raw: `{"type":"time","value":"22:05"}`, want: TimeCondition{Hour: 22, Minute: 5}},
		{name: "time wins over value", raw: `{"time":"06:00","value":"18:00"}`, want: TimeCondition{Hour: 6, Minute: 0}},
		{name: "midnight", raw: `{"time":"00:00"}`, want: TimeCondition{Hour: 0, Minute: 0}},
		{name: "end of day", raw: `{"time":"23:59"}`, want: TimeCondition{Hour: 23, Minute: 59}},
		{name: "hour out of range", raw: `{"time":"24:00"}`, wantErr: true},
		{name: "minute out of range", raw: `{"time":"12:60"}`, wantErr: true},
		{name: "negative hour", raw: `{"time":"-1:30"}`, wantErr: true},
		{name: "not a time", raw: `{"time":"sunset"}`, wantErr: true},
		{name: "empty payload", raw: `{}`, wantErr: true},
		{name: "invalid json", raw: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeCondition(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTimeConditionMissingTime(t *testing.T) {
	_, err := ParseTimeCondition(json.RawMessage(`{"type":"presence"}`))
	if !errors.Is(err, ErrNoTimeCondition) {
		t.Fatalf("expected ErrNoTimeCondition, got %v", err)
	}
}

func TestCronSpec(t *testing.T) {
	tests := []struct {
		tc   TimeCondition
		want string
	}{
		{TimeCondition{Hour: 7, Minute: 30}, "30 7 * * *"},
		{TimeCondition{Hour: 0, Minute: 0}, "0 0 * * *"},
		{TimeCondition{Hour: 23, Minute: 59}, "59 23 * * *"},
	}
	for _, tt := range tests {
		if got := tt.tc.CronSpec(); got != tt.want {
			t.Errorf("CronSpec(%+v) = %q, want %q", tt.tc, got, tt.want)
		}
	}
}
