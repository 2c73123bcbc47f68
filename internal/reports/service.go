package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, report Report) (Report, error)
	Get(ctx context.Context, id uuid.UUID) (Report, error)
	List(ctx context.Context, scope Scope, filter Filter) ([]Report, int, error)
	Transition(ctx context.Context, id uuid.UUID, from, to Status, setSubmitted, setResolved bool, comment Comment) (Report, error)
	InsertComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, reportID uuid.UUID) ([]Comment, error)
	StatusCounts(ctx context.Context, scope Scope) (map[Status]int, error)
	DepartmentStatusCounts(ctx context.Context, scope Scope) ([]DepartmentStat, error)
}

// NotifierPort fans out a status change to interested parties.
type NotifierPort interface {
	NotifyStatusChange(ctx context.Context, report Report, previous Status, actorID uuid.UUID) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the single authority for the report workflow: it owns the
// transition table, the role gates, and the audit trail.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	notifier NotifierPort
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the reports service. Cache, notifier and audit may
// be nil; the workflow itself never depends on them.
func NewService(repo RepositoryPort, cache *Cache, notifier NotifierPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, notifier: notifier, audit: audit, logger: logger}
}

// CreateInput describes a new report.
type CreateInput struct {
	Title        string
	Description  string
	Type         Type
	Priority     Priority
	DepartmentID uuid.UUID
	Attachments  []string
}

// Create persists a new report in draft for the principal's department.
func (s *Service) Create(ctx context.Context, principal identity.Principal, input CreateInput) (Report, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Report{}, fmt.Errorf("reports: title required: %w", shared.ErrValidation)
	}
	if input.DepartmentID == uuid.Nil {
		return Report{}, fmt.Errorf("reports: department required: %w", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Report{}, fmt.Errorf("reports: unknown report type %q: %w", input.Type, shared.ErrValidation)
	}
	if !input.Priority.Valid() {
		return Report{}, fmt.Errorf("reports: unknown priority %q: %w", input.Priority, shared.ErrValidation)
	}
	if !principal.InDepartment(input.DepartmentID) && !principal.HasMinRole(identity.RoleAdmin) {
		return Report{}, fmt.Errorf("reports: department %s outside principal scope: %w", input.DepartmentID, shared.ErrForbidden)
	}

	report, err := s.repo.Create(ctx, Report{
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		Type:         input.Type,
		Priority:     input.Priority,
		Status:       StatusDraft,
		DepartmentID: input.DepartmentID,
		CreatedBy:    principal.UserID,
		Attachments:  input.Attachments,
	})
	if err != nil {
		return Report{}, err
	}
	s.invalidateStats(ctx)
	return report, nil
}

// Get fetches a report the principal is allowed to view.
func (s *Service) Get(ctx context.Context, principal identity.Principal, id uuid.UUID) (Report, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !ScopeFor(principal).Covers(report) {
		return Report{}, fmt.Errorf("reports: report %s outside principal scope: %w", id, shared.ErrForbidden)
	}
	return report, nil
}

// List returns reports visible to the principal, filtered and paginated.
func (s *Service) List(ctx context.Context, principal identity.Principal, filter Filter) ([]Report, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("reports: unknown status %q: %w", filter.Status, shared.ErrValidation)
	}
	reports, total, err := s.repo.List(ctx, ScopeFor(principal), filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return reports, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Submit moves the creator's draft into pending review. The source state is
// pinned so submit never aliases the in_review to pending edge.
func (s *Service) Submit(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.transitionFrom(ctx, principal, id, StatusDraft, StatusPending, note)
}

// SupervisorApprove forwards a pending report to manager review.
func (s *Service) SupervisorApprove(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.Transition(ctx, principal, id, StatusInReview, note)
}

// SupervisorReject rejects a pending report.
func (s *Service) SupervisorReject(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.transitionFrom(ctx, principal, id, StatusPending, StatusRejected, note)
}

// RequestChanges sends a pending report back to draft.
func (s *Service) RequestChanges(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.Transition(ctx, principal, id, StatusDraft, note)
}

// ManagerApprove grants final approval on a report in review.
func (s *Service) ManagerApprove(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.Transition(ctx, principal, id, StatusApproved, note)
}

// ManagerReject rejects a report in review.
func (s *Service) ManagerReject(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.transitionFrom(ctx, principal, id, StatusInReview, StatusRejected, note)
}

// ManagerEscalate sends a report in review back to pending for another
// supervisor pass.
func (s *Service) ManagerEscalate(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error) {
	return s.transitionFrom(ctx, principal, id, StatusInReview, StatusPending, note)
}

// Transition validates and executes one workflow edge to the target status.
// The edge is inferred from the report's current status.
func (s *Service) Transition(ctx context.Context, principal identity.Principal, id uuid.UUID, to Status, note string) (Report, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return s.execute(ctx, principal, report, report.Status, to, note)
}

// transitionFrom executes an edge whose source state is fixed by the caller
// (reject exists from both pending and in_review; the named operations pin
// which one they mean).
func (s *Service) transitionFrom(ctx context.Context, principal identity.Principal, id uuid.UUID, from, to Status, note string) (Report, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if report.Status != from {
		return Report{}, fmt.Errorf("reports: report %s is %s, not %s: %w", id, report.Status, from, shared.ErrForbidden)
	}
	return s.execute(ctx, principal, report, from, to, note)
}

func (s *Service) execute(ctx context.Context, principal identity.Principal, report Report, from, to Status, note string) (Report, error) {
	if !ScopeFor(principal).Covers(report) {
		return Report{}, fmt.Errorf("reports: report %s outside principal scope: %w", report.ID, shared.ErrForbidden)
	}

	rule, ok := ruleFor(from, to)
	if !ok {
		return Report{}, fmt.Errorf("reports: no transition %s -> %s: %w", from, to, shared.ErrForbidden)
	}
	if rule.creatorOnly {
		if principal.UserID != report.CreatedBy {
			return Report{}, fmt.Errorf("reports: only the creator may submit: %w", shared.ErrForbidden)
		}
	} else if !principal.HasMinRole(rule.minRole) {
		return Report{}, fmt.Errorf("reports: transition %s -> %s requires %s: %w", from, to, rule.minRole, shared.ErrForbidden)
	}

	note = strings.TrimSpace(note)
	if note == "" {
		if rule.defaultNote == "" {
			return Report{}, fmt.Errorf("reports: a comment is required for %s -> %s: %w", from, to, shared.ErrValidation)
		}
		note = rule.defaultNote
	}

	// Status update and audit comment are one transaction; the repository
	// re-checks the source status on write so a lost race fails instead of
	// silently overwriting a concurrent transition.
	updated, err := s.repo.Transition(ctx, report.ID, from, to, rule.setSubmitted, rule.setResolved, Comment{
		ReportID: report.ID,
		UserID:   principal.UserID,
		Content:  note,
		Action:   to,
	})
	if err != nil {
		return Report{}, err
	}

	s.invalidateStats(ctx)
	s.notify(ctx, updated, from, principal.UserID)
	s.recordAudit(ctx, principal.UserID, "REPORT_"+strings.ToUpper(string(to)), updated)
	return updated, nil
}

// AddComment appends a plain comment without touching the status. Allowed
// for any principal who can view the report while it remains active.
func (s *Service) AddComment(ctx context.Context, principal identity.Principal, id uuid.UUID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, fmt.Errorf("reports: comment content required: %w", shared.ErrValidation)
	}
	report, err := s.Get(ctx, principal, id)
	if err != nil {
		return Comment{}, err
	}
	if report.Status.Terminal() {
		return Comment{}, fmt.Errorf("reports: report %s is %s and closed for comments: %w", id, report.Status, shared.ErrValidation)
	}
	return s.repo.InsertComment(ctx, Comment{ReportID: id, UserID: principal.UserID, Content: content})
}

// ListComments returns the full comment/audit trail for a visible report.
func (s *Service) ListComments(ctx context.Context, principal identity.Principal, id uuid.UUID) ([]Comment, error) {
	if _, err := s.Get(ctx, principal, id); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

// StatsResult bundles the dashboard aggregates.
type StatsResult struct {
	Stats       Stats            `json:"stats"`
	Departments []DepartmentStat `json:"departments"`
}

// Stats aggregates the principal's visible reports, cached per scope.
func (s *Service) Stats(ctx context.Context, principal identity.Principal) (StatsResult, error) {
	scope := ScopeFor(principal)
	var result StatsResult
	key, err := s.cache.StatsKey(ctx, scope)
	if err != nil {
		s.logWarn("stats cache key", err)
		return s.loadStats(ctx, scope)
	}
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		return s.loadStats(ctx, scope)
	})
	if err != nil {
		return StatsResult{}, err
	}
	return result, nil
}

func (s *Service) loadStats(ctx context.Context, scope Scope) (StatsResult, error) {
	counts, err := s.repo.StatusCounts(ctx, scope)
	if err != nil {
		return StatsResult{}, err
	}
	departments, err := s.repo.DepartmentStatusCounts(ctx, scope)
	if err != nil {
		return StatsResult{}, err
	}
	stats := Stats{
		Draft:    counts[StatusDraft],
		Pending:  counts[StatusPending],
		InReview: counts[StatusInReview],
		Approved: counts[StatusApproved],
		Rejected: counts[StatusRejected],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return StatsResult{Stats: stats, Departments: departments}, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logWarn("bump stats cache", err)
	}
}

func (s *Service) notify(ctx context.Context, report Report, previous Status, actorID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStatusChange(ctx, report, previous, actorID); err != nil {
		s.logWarn("enqueue status notification", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, report Report) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "report",
		EntityID: report.ID.String(),
		Meta:     map[string]any{"status": string(report.Status), "department_id": report.DepartmentID.String()},
	})
	if err != nil {
		s.logWarn("record audit", err)
	}
}

func (s *Service) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
