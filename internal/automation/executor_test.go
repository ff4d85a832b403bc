package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"techhome/internal/db"
	"techhome/internal/hub"
	"techhome/internal/models"
)

type stateWrite struct {
	id   string
	isOn bool
}

type fakeDeviceStore struct {
	mu      sync.Mutex
	devices map[string]*models.Device
	getErr  error
	setErr  error
	writes  []stateWrite
}

func (f *fakeDeviceStore) GetDeviceByID(_ context.Context, id string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.devices[id]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDeviceStore) SetDeviceState(_ context.Context, id string, isOn bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.writes = append(f.writes, stateWrite{id: id, isOn: isOn})
	return nil
}

type hubCall struct {
	entityID string
	verb     hub.Verb
}

type fakeHub struct {
	mu    sync.Mutex
	err   error
	calls []hubCall
}

func (f *fakeHub) SendCommand(_ context.Context, entityID string, verb hub.Verb) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hubCall{entityID: entityID, verb: verb})
	return f.err
}

type logRecord struct {
	user, device, action, result string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []logRecord
}

func (f *fakeRecorder) RecordDeviceAction(_ context.Context, user, device, action, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, logRecord{user, device, action, result})
}

func strPtr(s string) *string { return &s }

func timeRule(id string, action string) models.Automation {
	return models.Automation{
		ID:        id,
		Name:      "rule " + id,
		Type:      models.AutomationTypeTime,
		Condition: json.RawMessage(`{"time":"07:00"}`),
		Action:    json.RawMessage(action),
		Enabled:   true,
	}
}

func TestExecuteToggleFlipsLocalDevice(t *testing.T) {
	store := &fakeDeviceStore{devices: map[string]*models.Device{
		"lamp": {ID: "lamp", Name: "Desk Lamp", Type: "light", IsOn: false},
	}}
	hubMock := &fakeHub{}
	rec := &fakeRecorder{}
	exec := NewExecutor(store, hubMock, rec)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"lamp","command":"toggle"}`))

	if len(store.writes) != 1 || store.writes[0] != (stateWrite{id: "lamp", isOn: true}) {
		t.Fatalf("unexpected writes: %+v", store.writes)
	}
	if len(hubMock.calls) != 0 {
		t.Errorf("local device must not reach the hub, got %+v", hubMock.calls)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected one log record, got %+v", rec.records)
	}
	want := logRecord{user: LogUserAutomation, device: "lamp", action: "toggle", result: "on"}
	if rec.records[0] != want {
		t.Errorf("got record %+v, want %+v", rec.records[0], want)
	}
}

func TestExecuteExplicitCommands(t *testing.T) {
	tests := []struct {
		name    string
		command string
		current bool
		want    bool
	}{
		{"turn_on when off", "turn_on", false, true},
		{"turn_on when already on", "turn_on", true, true},
		{"turn_off when on", "turn_off", true, false},
		{"turn_off when already off", "turn_off", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeDeviceStore{devices: map[string]*models.Device{
				"heater": {ID: "heater", Name: "Heater", Type: "switch", IsOn: tt.current},
			}}
			exec := NewExecutor(store, &fakeHub{}, nil)

			exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"heater","command":"`+tt.command+`"}`))

			if len(store.writes) != 1 || store.writes[0].isOn != tt.want {
				t.Errorf("writes = %+v, want is_on=%v", store.writes, tt.want)
			}
		})
	}
}

func TestExecuteDisabledRuleDoesNothing(t *testing.T) {
	store := &fakeDeviceStore{devices: map[string]*models.Device{
		"lamp": {ID: "lamp", IsOn: false},
	}}
	exec := NewExecutor(store, &fakeHub{}, nil)

	rule := timeRule("r1", `{"deviceId":"lamp","command":"toggle"}`)
	rule.Enabled = false
	exec.Execute(context.Background(), rule)

	if len(store.writes) != 0 {
		t.Errorf("disabled rule must not write state, got %+v", store.writes)
	}
}

func TestExecuteSkipsBrokenRules(t *testing.T) {
	tests := []struct {
		name   string
		action string
	}{
		{"unparsable action", `"not an object"`},
		{"missing deviceId", `{"command":"toggle"}`},
		{"unknown device", `{"deviceId":"ghost","command":"toggle"}`},
		{"unsupported command", `{"deviceId":"lamp","command":"dim"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeDeviceStore{devices: map[string]*models.Device{
				"lamp": {ID: "lamp", IsOn: false},
			}}
			rec := &fakeRecorder{}
			exec := NewExecutor(store, &fakeHub{}, rec)

			exec.Execute(context.Background(), timeRule("r1", tt.action))

			if len(store.writes) != 0 {
				t.Errorf("expected no writes, got %+v", store.writes)
			}
			if len(rec.records) != 0 {
				t.Errorf("expected no log records, got %+v", rec.records)
			}
		})
	}
}

func TestExecuteDeviceLookupError(t *testing.T) {
	store := &fakeDeviceStore{getErr: errors.New("connection refused")}
	exec := NewExecutor(store, &fakeHub{}, nil)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"lamp","command":"toggle"}`))

	if len(store.writes) != 0 {
		t.Errorf("expected no writes, got %+v", store.writes)
	}
}

func TestExecuteMirrorsToHub(t *testing.T) {
	store := &fakeDeviceStore{devices: map[string]*models.Device{
		"ha-lamp": {ID: "ha-lamp", Name: "Hub Lamp", IsOn: false, IsHomeAssistant: true, EntityID: strPtr("light.hub_lamp")},
	}}
	hubMock := &fakeHub{}
	rec := &fakeRecorder{}
	exec := NewExecutor(store, hubMock, rec)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"ha-lamp","command":"turn_on"}`))

	if len(hubMock.calls) != 1 || hubMock.calls[0] != (hubCall{entityID: "light.hub_lamp", verb: hub.VerbTurnOn}) {
		t.Fatalf("unexpected hub calls: %+v", hubMock.calls)
	}
	if len(store.writes) != 1 || !store.writes[0].isOn {
		t.Errorf("expected local write is_on=true, got %+v", store.writes)
	}
	// Log records reference the hub entity, matching interactive toggles.
	if len(rec.records) != 1 || rec.records[0].device != "light.hub_lamp" {
		t.Errorf("unexpected records: %+v", rec.records)
	}
}

func TestExecuteHubFailureStillUpdatesLocalState(t *testing.T) {
	store := &fakeDeviceStore{devices: map[string]*models.Device{
		"ha-lamp": {ID: "ha-lamp", IsOn: true, IsHomeAssistant: true, EntityID: strPtr("light.hub_lamp")},
	}}
	hubMock := &fakeHub{err: errors.New("hub unreachable")}
	rec := &fakeRecorder{}
	exec := NewExecutor(store, hubMock, rec)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"ha-lamp","command":"turn_off"}`))

	if len(store.writes) != 1 || store.writes[0].isOn {
		t.Fatalf("local state must be updated despite hub failure, writes = %+v", store.writes)
	}
	if len(rec.records) != 1 || rec.records[0].result != "off" {
		t.Errorf("unexpected records: %+v", rec.records)
	}
}

func TestExecuteHubDeviceWithoutEntityIDIsSkipped(t *testing.T) {
	store := &fakeDeviceStore{devices: map[string]*models.Device{
		"broken": {ID: "broken", IsOn: false, IsHomeAssistant: true},
	}}
	hubMock := &fakeHub{}
	exec := NewExecutor(store, hubMock, nil)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"broken","command":"toggle"}`))

	if len(hubMock.calls) != 0 {
		t.Errorf("expected no hub calls, got %+v", hubMock.calls)
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no local write, got %+v", store.writes)
	}
}

func TestExecuteStateWriteFailureRecordsError(t *testing.T) {
	store := &fakeDeviceStore{
		devices: map[string]*models.Device{"lamp": {ID: "lamp", IsOn: false}},
		setErr:  errors.New("write failed"),
	}
	rec := &fakeRecorder{}
	exec := NewExecutor(store, &fakeHub{}, rec)

	exec.Execute(context.Background(), timeRule("r1", `{"deviceId":"lamp","command":"toggle"}`))

	if len(rec.records) != 1 || rec.records[0].result != "error" {
		t.Errorf("expected error result in records, got %+v", rec.records)
	}
}
