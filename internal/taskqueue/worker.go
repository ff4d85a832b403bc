package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"techhome/internal/automation"
	"techhome/internal/db"
	"techhome/internal/logging"
)

// Worker consumes automation-execution and device-log tasks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(redisAddr string, executor *automation.Executor, dbConn *db.DB) *Worker {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeExecuteAutomation, func(ctx context.Context, t *asynq.Task) error {
		var payload ExecuteAutomationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decoding %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		// Rule-level problems (missing device, bad command) are logged skips
		// inside Execute; the task itself never retries them.
		executor.Execute(ctx, payload.Rule)
		return nil
	})

	mux.HandleFunc(TypeRecordDeviceLog, func(ctx context.Context, t *asynq.Task) error {
		var payload RecordDeviceLogPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decoding %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return dbConn.InsertDeviceLog(ctx, payload.User, payload.Device, payload.Action, payload.Result)
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{Concurrency: 10},
	)
	return &Worker{srv: srv, mux: mux}
}

// Run starts processing and blocks until Stop is called.
func (w *Worker) Run() error {
	clog := logging.Component("taskqueue")
	clog.Info().Msg("workers started")
	return w.srv.Run(w.mux)
}

// Stop drains in-flight tasks and shuts the worker pool down.
func (w *Worker) Stop() {
	w.srv.Stop()
	w.srv.Shutdown()
	clog := logging.Component("taskqueue")
	clog.Info().Msg("workers stopped")
}
