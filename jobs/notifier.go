package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/reports"
)

// ReportNotifier adapts the queue client to the workflow's notifier port.
type ReportNotifier struct {
	client *Client
}

// NewReportNotifier constructs a ReportNotifier.
func NewReportNotifier(client *Client) *ReportNotifier {
	return &ReportNotifier{client: client}
}

// NotifyStatusChange enqueues a report:notify task for the transition.
func (n *ReportNotifier) NotifyStatusChange(ctx context.Context, report reports.Report, previous reports.Status, actorID uuid.UUID) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueReportNotify(ctx, ReportNotifyPayload{
		ReportID:     report.ID,
		Title:        report.Title,
		DepartmentID: report.DepartmentID,
		FromStatus:   string(previous),
		ToStatus:     string(report.Status),
		ActorID:      actorID,
		OccurredAt:   time.Now(),
	})
	return err
}
