package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"techhome/internal/automation"
	"techhome/internal/logging"
	"techhome/internal/models"
)

// RuleStore lists the automations eligible for scheduling.
type RuleStore interface {
	ListEnabledAutomations(ctx context.Context) ([]models.Automation, error)
}

// Runner dispatches a triggered rule snapshot for execution. In production
// this enqueues a task; the call must not block the cron goroutine for long.
type Runner interface {
	Run(rule models.Automation)
}

// Scheduler keeps an in-memory set of daily cron jobs mirroring the enabled,
// time-triggered automations in the store. It owns the job table exclusively;
// Resync tears it down and rebuilds it from scratch.
type Scheduler struct {
	cron   *cron.Cron
	store  RuleStore
	runner Runner

	mu      sync.RWMutex
	jobMap  map[string]cron.EntryID // rule ID -> cron entry
	jobSpec map[string]string       // rule ID -> cron expression
}

// New creates a scheduler. Start must be called before jobs fire.
func New(store RuleStore, runner Runner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		runner:  runner,
		jobMap:  make(map[string]cron.EntryID),
		jobSpec: make(map[string]string),
	}
}

// Start begins the cron runtime. No-op if already started.
func (s *Scheduler) Start() {
	s.cron.Start()
	clog := logging.Component("scheduler")
	clog.Info().Msg("cron scheduler started")
}

// Stop halts trigger dispatch and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	clog := logging.Component("scheduler")
	clog.Info().Msg("cron scheduler stopped")
}

// Resync discards every scheduled job and rebuilds the table from the rules
// currently enabled in the store. Rules without a parseable time condition
// are skipped, and a registration failure for one rule does not prevent the
// rest from being scheduled. Removing an entry never cancels an execution
// already dispatched by a trigger.
func (s *Scheduler) Resync(ctx context.Context) error {
	logger := logging.Component("scheduler")

	rules, err := s.store.ListEnabledAutomations(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing enabled automations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for ruleID, entryID := range s.jobMap {
		s.cron.Remove(entryID)
		logger.Debug().Str("rule_id", ruleID).Msg("removed scheduled job")
	}
	s.jobMap = make(map[string]cron.EntryID)
	s.jobSpec = make(map[string]string)

	for _, rule := range rules {
		tc, err := automation.ParseTimeCondition(rule.Condition)
		if err != nil {
			logger.Debug().Err(err).Str("rule_id", rule.ID).Str("rule_name", rule.Name).
				Msg("rule has no schedulable time condition, skipping")
			continue
		}

		rule := rule // snapshot captured by the job closure
		spec := tc.CronSpec()
		entryID, err := s.cron.AddFunc(spec, func() {
			clog := logging.Component("scheduler")
			clog.Info().
				Str("rule_id", rule.ID).Str("rule_name", rule.Name).Msg("job triggered")
			s.runner.Run(rule)
		})
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", rule.ID).Str("cron", spec).
				Msg("failed to schedule rule, skipping")
			continue
		}

		s.jobMap[rule.ID] = entryID
		s.jobSpec[rule.ID] = spec
		logger.Info().Str("rule_id", rule.ID).Str("rule_name", rule.Name).Str("cron", spec).
			Msg("scheduled rule")
	}

	logger.Info().Int("jobs", len(s.jobMap)).Msg("resync complete")
	return nil
}

// Jobs returns a snapshot of rule ID -> cron expression for every scheduled
// job. Used by the debug endpoint and tests.
func (s *Scheduler) Jobs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make(map[string]string, len(s.jobSpec))
	for id, spec := range s.jobSpec {
		jobs[id] = spec
	}
	return jobs
}

// JobCount returns the number of currently scheduled jobs.
func (s *Scheduler) JobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobMap)
}
