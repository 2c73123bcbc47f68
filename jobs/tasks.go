package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeReportNotify fans out a workflow status change.
	TaskTypeReportNotify = "report:notify"
	// TaskTypeAuditCleanup prunes audit rows past the retention window.
	TaskTypeAuditCleanup = "audit:cleanup"
)

// ReportNotifyPayload carries a workflow status change to the notifier.
type ReportNotifyPayload struct {
	ReportID     uuid.UUID `json:"report_id"`
	Title        string    `json:"title"`
	DepartmentID uuid.UUID `json:"department_id"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	ActorID      uuid.UUID `json:"actor_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewReportNotifyTask constructs an Asynq task for a status change.
func NewReportNotifyTask(payload ReportNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportNotify, data), nil
}

// NewReportNotifyHandler returns the handler for report:notify tasks.
// Delivery is a structured log line; a mail or push transport slots in
// here without touching the workflow.
func NewReportNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReportNotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("report status notification",
			slog.String("report_id", payload.ReportID.String()),
			slog.String("title", payload.Title),
			slog.String("from", payload.FromStatus),
			slog.String("to", payload.ToStatus),
			slog.String("actor_id", payload.ActorID.String()),
		)
		return nil
	}
}

// AuditCleaner prunes old audit rows.
type AuditCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewAuditCleanupTask constructs the cron task for audit retention.
func NewAuditCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAuditCleanup, nil)
}

// NewAuditCleanupHandler returns the handler for audit:cleanup tasks.
func NewAuditCleanupHandler(cleaner AuditCleaner, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := cleaner.Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		logger.Info("audit retention cleanup", slog.Int64("removed", removed))
		return nil
	}
}
