package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"techhome/internal/models"
)

type fakeRuleStore struct {
	mu    sync.Mutex
	rules []models.Automation
	err   error
}

func (f *fakeRuleStore) ListEnabledAutomations(context.Context) ([]models.Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Automation(nil), f.rules...), nil
}

func (f *fakeRuleStore) set(rules ...models.Automation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = rules
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []models.Automation
}

func (f *fakeRunner) Run(rule models.Automation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, rule)
}

func timedRule(id, at string) models.Automation {
	return models.Automation{
		ID:        id,
		Name:      "rule " + id,
		Type:      models.AutomationTypeTime,
		Condition: json.RawMessage(`{"time":"` + at + `"}`),
		Action:    json.RawMessage(`{"deviceId":"dev-1","command":"toggle"}`),
		Enabled:   true,
	}
}

func TestResyncSchedulesTimedRules(t *testing.T) {
	store := &fakeRuleStore{}
	store.set(
		timedRule("r1", "07:30"),
		timedRule("r2", "22:00"),
	)
	s := New(store, &fakeRunner{})

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	want := map[string]string{
		"r1": "30 7 * * *",
		"r2": "0 22 * * *",
	}
	if got := s.Jobs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Jobs() = %v, want %v", got, want)
	}
}

func TestResyncSkipsRulesWithoutTimeCondition(t *testing.T) {
	store := &fakeRuleStore{}
	presence := timedRule("r2", "08:00")
	presence.Condition = json.RawMessage(`{"type":"presence","zone":"home"}`)
	broken := timedRule("r3", "08:00")
	broken.Condition = json.RawMessage(`{"time":"99:99"}`)
	store.set(timedRule("r1", "08:00"), presence, broken)

	s := New(store, &fakeRunner{})
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	if got := s.JobCount(); got != 1 {
		t.Errorf("JobCount() = %d, want 1 (only r1 is schedulable), jobs = %v", got, s.Jobs())
	}
}

func TestResyncRebuildsFromScratch(t *testing.T) {
	store := &fakeRuleStore{}
	store.set(timedRule("r1", "07:00"), timedRule("r2", "08:00"))
	s := New(store, &fakeRunner{})

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	if got := s.JobCount(); got != 2 {
		t.Fatalf("JobCount() = %d, want 2", got)
	}

	// r1 disabled or deleted, r3 added with a new time.
	store.set(timedRule("r2", "09:15"), timedRule("r3", "10:00"))
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	want := map[string]string{
		"r2": "15 9 * * *",
		"r3": "0 10 * * *",
	}
	if got := s.Jobs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Jobs() = %v, want %v", got, want)
	}
}

func TestResyncIsIdempotent(t *testing.T) {
	store := &fakeRuleStore{}
	store.set(timedRule("r1", "07:00"))
	s := New(store, &fakeRunner{})

	for i := 0; i < 3; i++ {
		if err := s.Resync(context.Background()); err != nil {
			t.Fatalf("resync %d failed: %v", i, err)
		}
	}

	if got := s.JobCount(); got != 1 {
		t.Errorf("JobCount() = %d, want 1 after repeated resync", got)
	}
}

func TestResyncStoreErrorKeepsExistingJobs(t *testing.T) {
	store := &fakeRuleStore{}
	store.set(timedRule("r1", "07:00"))
	s := New(store, &fakeRunner{})

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	store.mu.Lock()
	store.err = errors.New("db down")
	store.mu.Unlock()

	if err := s.Resync(context.Background()); err == nil {
		t.Fatal("expected error from failing store")
	}
	if got := s.JobCount(); got != 1 {
		t.Errorf("JobCount() = %d, want 1 (failed resync must not tear down jobs)", got)
	}
}

func TestJobsReturnsCopy(t *testing.T) {
	store := &fakeRuleStore{}
	store.set(timedRule("r1", "07:00"))
	s := New(store, &fakeRunner{})

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	jobs := s.Jobs()
	jobs["r1"] = "tampered"
	if got := s.Jobs()["r1"]; got != "0 7 * * *" {
		t.Errorf("internal job table mutated through snapshot: %q", got)
	}
}
