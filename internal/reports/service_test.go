package reports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

type memoryReportRepo struct {
	mu       sync.Mutex
	reports  map[uuid.UUID]Report
	comments []Comment
}

func newMemoryReportRepo() *memoryReportRepo {
	return &memoryReportRepo{reports: map[uuid.UUID]Report{}}
}

func (m *memoryReportRepo) Create(_ context.Context, report Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.ID = uuid.New()
	report.CreatedAt = time.Now()
	report.UpdatedAt = report.CreatedAt
	m.reports[report.ID] = report
	return report, nil
}

func (m *memoryReportRepo) Get(_ context.Context, id uuid.UUID) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %s: %w", id, shared.ErrNotFound)
	}
	return report, nil
}

func (m *memoryReportRepo) List(_ context.Context, scope Scope, _ Filter) ([]Report, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, report := range m.reports {
		if scope.Covers(report) {
			out = append(out, report)
		}
	}
	return out, len(out), nil
}

func (m *memoryReportRepo) Transition(_ context.Context, id uuid.UUID, from, to Status, setSubmitted, setResolved bool, comment Comment) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %s: %w", id, shared.ErrNotFound)
	}
	if report.Status != from {
		return Report{}, fmt.Errorf("report %s is no longer %s: %w", id, from, shared.ErrForbidden)
	}
	now := time.Now()
	report.Status = to
	report.UpdatedAt = now
	if setSubmitted {
		at := now
		report.SubmittedAt = &at
	}
	if setResolved {
		at := now
		report.ResolvedAt = &at
	}
	m.reports[id] = report
	comment.ID = uuid.New()
	comment.CreatedAt = now
	m.comments = append(m.comments, comment)
	return report, nil
}

func (m *memoryReportRepo) InsertComment(_ context.Context, comment Comment) (Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = uuid.New()
	comment.CreatedAt = time.Now()
	m.comments = append(m.comments, comment)
	return comment, nil
}

func (m *memoryReportRepo) ListComments(_ context.Context, reportID uuid.UUID) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Comment
	for _, comment := range m.comments {
		if comment.ReportID == reportID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (m *memoryReportRepo) StatusCounts(_ context.Context, scope Scope) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[Status]int{}
	for _, report := range m.reports {
		if scope.Covers(report) {
			counts[report.Status]++
		}
	}
	return counts, nil
}

func (m *memoryReportRepo) DepartmentStatusCounts(_ context.Context, _ Scope) ([]DepartmentStat, error) {
	return nil, nil
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (m *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

type workflowFixture struct {
	repo       *memoryReportRepo
	audit      *memoryAudit
	service    *Service
	dept       uuid.UUID
	staff      identity.Principal
	supervisor identity.Principal
	manager    identity.Principal
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	dept := uuid.New()
	repo := newMemoryReportRepo()
	audit := &memoryAudit{}
	return &workflowFixture{
		repo:       repo,
		audit:      audit,
		service:    NewService(repo, nil, nil, audit, nil),
		dept:       dept,
		staff:      identity.Principal{UserID: uuid.New(), Role: identity.RoleStaff, PrimaryDepartment: &dept},
		supervisor: identity.Principal{UserID: uuid.New(), Role: identity.RoleSupervisor, PrimaryDepartment: &dept},
		manager:    identity.Principal{UserID: uuid.New(), Role: identity.RoleManager, PrimaryDepartment: &dept},
	}
}

func (f *workflowFixture) newDraft(t *testing.T) Report {
	t.Helper()
	report, err := f.service.Create(context.Background(), f.staff, CreateInput{
		Title:        "Broken conveyor in bay 3",
		Description:  "Belt motor seized during the morning shift.",
		Type:         TypeIncident,
		Priority:     PriorityHigh,
		DepartmentID: f.dept,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, report.Status)
	return report
}

func TestWorkflowHappyPath(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)

	report, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, report.Status)
	require.NotNil(t, report.SubmittedAt)

	report, err = f.service.SupervisorApprove(ctx, f.supervisor, report.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusInReview, report.Status)

	report, err = f.service.ManagerApprove(ctx, f.manager, report.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, report.Status)
	require.NotNil(t, report.ResolvedAt)

	comments, err := f.service.ListComments(ctx, f.manager, report.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3, "one audit comment per transition")
	require.Equal(t, "Report submitted for review", comments[0].Content)
	require.Equal(t, StatusPending, comments[0].Action)
	require.Equal(t, "Approved by supervisor, forwarded to manager for final review", comments[1].Content)
	require.Equal(t, "Final approval granted", comments[2].Content)
	require.Equal(t, StatusApproved, comments[2].Action)

	require.Len(t, f.audit.logs, 3)
	require.Equal(t, "REPORT_APPROVED", f.audit.logs[2].Action)
}

func TestSubmitIsCreatorOnly(t *testing.T) {
	f := newWorkflowFixture(t)
	report := f.newDraft(t)

	intruder := identity.Principal{UserID: uuid.New(), Role: identity.RoleStaff, PrimaryDepartment: &f.dept}
	_, err := f.service.Submit(context.Background(), intruder, report.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	stored, err := f.repo.Get(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status, "failed transition leaves status unchanged")
}

func TestSubmitOnlyLeavesDraft(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	// A manager authoring their own report holds every role the other
	// edges need, so submit must still refuse anything but a draft.
	report, err := f.service.Create(ctx, f.manager, CreateInput{
		Title:        "Crane inspection overdue",
		Type:         TypeGeneral,
		Priority:     PriorityMedium,
		DepartmentID: f.dept,
	})
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, f.manager, report.ID, "")
	require.NoError(t, err)
	_, err = f.service.SupervisorApprove(ctx, f.supervisor, report.ID, "")
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, f.manager, report.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	stored, err := f.repo.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInReview, stored.Status, "submit must not alias the escalate edge")
}

func TestStaffCannotReview(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)

	_, err = f.service.SupervisorApprove(ctx, f.staff, report.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	stored, err := f.repo.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Empty(t, f.audit.logs[1:], "denied transition records no audit entry")
}

func TestRejectRequiresNote(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)

	_, err = f.service.SupervisorReject(ctx, f.supervisor, report.ID, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)

	report, err = f.service.SupervisorReject(ctx, f.supervisor, report.ID, "Missing cost estimate")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, report.Status)
}

func TestRequestChangesAndResubmitRefreshesSubmittedAt(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)

	report, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)
	first := *report.SubmittedAt

	_, err = f.service.RequestChanges(ctx, f.supervisor, report.ID, "Add photos of the damage")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	report, err = f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)
	require.True(t, report.SubmittedAt.After(first), "resubmission carries a fresh timestamp")
}

func TestManagerEscalateReturnsToPending(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)
	_, err = f.service.SupervisorApprove(ctx, f.supervisor, report.ID, "")
	require.NoError(t, err)

	report, err = f.service.ManagerEscalate(ctx, f.manager, report.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, report.Status)

	comments, err := f.service.ListComments(ctx, f.manager, report.ID)
	require.NoError(t, err)
	require.Equal(t, "Sent back for supervisor review", comments[len(comments)-1].Content)
}

func TestTransitionSkippingStagesIsForbidden(t *testing.T) {
	f := newWorkflowFixture(t)
	report := f.newDraft(t)

	_, err := f.service.ManagerApprove(context.Background(), f.manager, report.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden, "draft cannot jump straight to approved")
}

func TestForeignDepartmentIsOutOfScope(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)

	otherDept := uuid.New()
	outsider := identity.Principal{UserID: uuid.New(), Role: identity.RoleSupervisor, PrimaryDepartment: &otherDept}

	_, err = f.service.Get(ctx, outsider, report.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.SupervisorApprove(ctx, outsider, report.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGrantedDepartmentExtendsScope(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)

	otherDept := uuid.New()
	visitor := identity.Principal{
		UserID:             uuid.New(),
		Role:               identity.RoleSupervisor,
		PrimaryDepartment:  &otherDept,
		GrantedDepartments: []uuid.UUID{f.dept},
	}

	report, err = f.service.SupervisorApprove(ctx, visitor, report.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusInReview, report.Status)
}

func TestCreateValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.staff, CreateInput{Title: "  ", Type: TypeGeneral, Priority: PriorityLow, DepartmentID: f.dept})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, f.staff, CreateInput{Title: "x", Type: "bogus", Priority: PriorityLow, DepartmentID: f.dept})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, f.staff, CreateInput{Title: "x", Type: TypeGeneral, Priority: PriorityLow, DepartmentID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrForbidden, "cannot file into a foreign department")
}

func TestCommentsClosedOnTerminalReports(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	report := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, report.ID, "")
	require.NoError(t, err)

	_, err = f.service.AddComment(ctx, f.supervisor, report.ID, "Looking into this today")
	require.NoError(t, err)

	_, err = f.service.SupervisorReject(ctx, f.supervisor, report.ID, "Duplicate of an existing report")
	require.NoError(t, err)

	_, err = f.service.AddComment(ctx, f.staff, report.ID, "But it is not a duplicate")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatsAggregatesScope(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	first := f.newDraft(t)
	_, err := f.service.Submit(ctx, f.staff, first.ID, "")
	require.NoError(t, err)
	f.newDraft(t)

	result, err := f.service.Stats(ctx, f.supervisor)
	require.NoError(t, err)
	require.Equal(t, 2, result.Stats.Total)
	require.Equal(t, 1, result.Stats.Draft)
	require.Equal(t, 1, result.Stats.Pending)
}
