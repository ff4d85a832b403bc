package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"techhome/internal/logging"
	"techhome/internal/models"
)

const (
	// TypeExecuteAutomation carries a full rule snapshot from a fired
	// scheduler job to a worker.
	TypeExecuteAutomation = "automation:execute"

	// TypeRecordDeviceLog is a fire-and-forget usage record enqueued by the
	// web layer so request handlers never wait on analytics writes.
	TypeRecordDeviceLog = "devicelog:record"
)

// ExecuteAutomationPayload is the task body for TypeExecuteAutomation.
type ExecuteAutomationPayload struct {
	Rule models.Automation `json:"rule"`
}

// RecordDeviceLogPayload is the task body for TypeRecordDeviceLog.
type RecordDeviceLogPayload struct {
	User   string `json:"user"`
	Device string `json:"device"`
	Action string `json:"action"`
	Result string `json:"result"`
}

// Client enqueues background tasks. It implements scheduler.Runner so fired
// cron jobs hand their rule snapshot to the worker pool, and it implements
// automation.ActionRecorder for the web layer's usage records.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{inner: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// Run enqueues execution of a triggered rule. Called from cron goroutines;
// enqueue failures are logged and dropped, the job recurs tomorrow.
func (c *Client) Run(rule models.Automation) {
	payload, _ := json.Marshal(ExecuteAutomationPayload{Rule: rule})
	task := asynq.NewTask(TypeExecuteAutomation, payload)
	info, err := c.inner.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if err != nil {
		clog := logging.Component("taskqueue")
		clog.Error().Err(err).
			Str("rule_id", rule.ID).Msg("failed to enqueue automation execution")
		return
	}
	clog := logging.Component("taskqueue")
	clog.Debug().
		Str("task_id", info.ID).Str("rule_id", rule.ID).Msg("enqueued automation execution")
}

// RecordDeviceAction enqueues a usage record.
func (c *Client) RecordDeviceAction(_ context.Context, user, device, action, result string) {
	payload, _ := json.Marshal(RecordDeviceLogPayload{
		User: user, Device: device, Action: action, Result: result,
	})
	task := asynq.NewTask(TypeRecordDeviceLog, payload)
	if _, err := c.inner.Enqueue(task, asynq.MaxRetry(3)); err != nil {
		clog := logging.Component("taskqueue")
		clog.Warn().Err(err).
			Str("device", device).Str("action", action).Msg("failed to enqueue device log")
	}
}
