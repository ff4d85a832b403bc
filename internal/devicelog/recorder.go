package devicelog

import (
	"context"

	"techhome/internal/db"
	"techhome/internal/logging"
)

// Recorder writes usage records straight to the database. A failed write is
// logged and dropped: analytics data is best-effort and must never fail the
// action that produced it.
type Recorder struct {
	db *db.DB
}

func NewRecorder(dbConn *db.DB) *Recorder {
	return &Recorder{db: dbConn}
}

func (r *Recorder) RecordDeviceAction(ctx context.Context, user, device, action, result string) {
	if err := r.db.InsertDeviceLog(ctx, user, device, action, result); err != nil {
		clog := logging.Component("devicelog")
		clog.Warn().Err(err).
			Str("device", device).Str("action", action).Msg("failed to record device action")
	}
}
