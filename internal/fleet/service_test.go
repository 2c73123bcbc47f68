package fleet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

type memoryFleetRepo struct {
	fleets      map[uuid.UUID]Fleet
	issues      map[uuid.UUID]Issue
	maintenance []MaintenanceRecord
}

func newMemoryFleetRepo() *memoryFleetRepo {
	return &memoryFleetRepo{fleets: map[uuid.UUID]Fleet{}, issues: map[uuid.UUID]Issue{}}
}

func (m *memoryFleetRepo) Create(_ context.Context, f Fleet) (Fleet, error) {
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	m.fleets[f.ID] = f
	return f, nil
}

func (m *memoryFleetRepo) Get(_ context.Context, id uuid.UUID) (Fleet, error) {
	f, ok := m.fleets[id]
	if !ok {
		return Fleet{}, fmt.Errorf("fleet %s: %w", id, shared.ErrNotFound)
	}
	open := 0
	for _, issue := range m.issues {
		if issue.FleetID == id && !issue.IsResolved {
			open++
		}
	}
	f.OpenIssues = open
	return f, nil
}

func (m *memoryFleetRepo) ListByDepartments(_ context.Context, departmentIDs []uuid.UUID) ([]Fleet, error) {
	var out []Fleet
	for _, f := range m.fleets {
		if len(departmentIDs) == 0 {
			out = append(out, f)
			continue
		}
		for _, id := range departmentIDs {
			if f.DepartmentID == id {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryFleetRepo) Update(_ context.Context, id uuid.UUID, update FleetUpdate) (Fleet, error) {
	f, ok := m.fleets[id]
	if !ok {
		return Fleet{}, fmt.Errorf("fleet %s: %w", id, shared.ErrNotFound)
	}
	if update.Status != nil {
		f.Status = *update.Status
	}
	if update.MachineHours != nil {
		f.MachineHours = *update.MachineHours
	}
	if update.Remarks != nil {
		f.Remarks = *update.Remarks
	}
	f.UpdatedAt = time.Now()
	m.fleets[id] = f
	return f, nil
}

func (m *memoryFleetRepo) InsertIssue(_ context.Context, issue Issue) (Issue, error) {
	issue.ID = uuid.New()
	issue.CreatedAt = time.Now()
	m.issues[issue.ID] = issue
	return issue, nil
}

func (m *memoryFleetRepo) ResolveIssue(_ context.Context, fleetID, issueID uuid.UUID) (Issue, error) {
	issue, ok := m.issues[issueID]
	if !ok || issue.FleetID != fleetID {
		return Issue{}, fmt.Errorf("issue %s: %w", issueID, shared.ErrNotFound)
	}
	if !issue.IsResolved {
		now := time.Now()
		issue.IsResolved = true
		issue.ResolvedAt = &now
		m.issues[issueID] = issue
	}
	return issue, nil
}

func (m *memoryFleetRepo) ListIssues(_ context.Context, fleetID uuid.UUID) ([]Issue, error) {
	var out []Issue
	for _, issue := range m.issues {
		if issue.FleetID == fleetID {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (m *memoryFleetRepo) InsertMaintenance(_ context.Context, record MaintenanceRecord) (MaintenanceRecord, error) {
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	m.maintenance = append(m.maintenance, record)
	return record, nil
}

func (m *memoryFleetRepo) ListMaintenance(_ context.Context, fleetID uuid.UUID) ([]MaintenanceRecord, error) {
	var out []MaintenanceRecord
	for _, record := range m.maintenance {
		if record.FleetID == fleetID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fleetFixture struct {
	repo    *memoryFleetRepo
	service *Service
	dept    uuid.UUID
	staff   identity.Principal
}

func newFleetFixture(t *testing.T) *fleetFixture {
	t.Helper()
	dept := uuid.New()
	repo := newMemoryFleetRepo()
	return &fleetFixture{
		repo:    repo,
		service: NewService(repo),
		dept:    dept,
		staff:   identity.Principal{UserID: uuid.New(), Role: identity.RoleStaff, PrimaryDepartment: &dept},
	}
}

func (f *fleetFixture) newFleet(t *testing.T) Fleet {
	t.Helper()
	created, err := f.service.Create(context.Background(), f.staff, CreateInput{
		FleetNumber:  "EXC-014",
		MachineType:  "excavator",
		DepartmentID: f.dept,
		MachineHours: 1250,
	})
	require.NoError(t, err)
	return created
}

func TestCreateDefaultsToActive(t *testing.T) {
	f := newFleetFixture(t)
	created := f.newFleet(t)
	require.Equal(t, StatusActive, created.Status)
}

func TestCreateOutsideDepartmentForbidden(t *testing.T) {
	f := newFleetFixture(t)
	_, err := f.service.Create(context.Background(), f.staff, CreateInput{
		FleetNumber:  "EXC-015",
		MachineType:  "excavator",
		DepartmentID: uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListScopedByDepartment(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.newFleet(t)

	otherDept := uuid.New()
	foreign := Fleet{ID: uuid.New(), DepartmentID: otherDept, FleetNumber: "DOZ-001"}
	f.repo.fleets[foreign.ID] = foreign

	fleets, err := f.service.List(ctx, f.staff)
	require.NoError(t, err)
	require.Len(t, fleets, 1)

	admin := identity.Principal{UserID: uuid.New(), Role: identity.RoleAdmin}
	fleets, err = f.service.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, fleets, 2)
}

func TestUpdatePatchesFields(t *testing.T) {
	f := newFleetFixture(t)
	created := f.newFleet(t)

	status := StatusMaintenance
	hours := 1300.0
	updated, err := f.service.Update(context.Background(), f.staff, created.ID, FleetUpdate{Status: &status, MachineHours: &hours})
	require.NoError(t, err)
	require.Equal(t, StatusMaintenance, updated.Status)
	require.Equal(t, 1300.0, updated.MachineHours)

	_, err = f.service.Update(context.Background(), f.staff, created.ID, FleetUpdate{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIssueLifecycle(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	created := f.newFleet(t)

	issue, err := f.service.ReportIssue(ctx, f.staff, created.ID, "Hydraulic hose leaking")
	require.NoError(t, err)
	require.False(t, issue.IsResolved)

	loaded, err := f.service.Get(ctx, f.staff, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.OpenIssues)

	_, err = f.service.ResolveIssue(ctx, f.staff, created.ID, issue.ID)
	require.ErrorIs(t, err, shared.ErrForbidden, "staff cannot resolve issues")

	supervisor := identity.Principal{UserID: uuid.New(), Role: identity.RoleSupervisor, PrimaryDepartment: &f.dept}
	resolved, err := f.service.ResolveIssue(ctx, supervisor, created.ID, issue.ID)
	require.NoError(t, err)
	require.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedAt)

	again, err := f.service.ResolveIssue(ctx, supervisor, created.ID, issue.ID)
	require.NoError(t, err)
	require.Equal(t, resolved.ResolvedAt, again.ResolvedAt, "resolving twice keeps the first timestamp")
}

func TestMaintenanceHistory(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	created := f.newFleet(t)

	_, err := f.service.RecordMaintenance(ctx, f.staff, created.ID, MaintenanceInput{Description: "500h service"})
	require.NoError(t, err)

	_, err = f.service.RecordMaintenance(ctx, f.staff, created.ID, MaintenanceInput{Description: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	records, err := f.service.ListMaintenance(ctx, f.staff, created.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, records[0].MaintenanceDate.IsZero())
}
