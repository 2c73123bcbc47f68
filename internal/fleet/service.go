package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// RepositoryPort describes fleet persistence used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, f Fleet) (Fleet, error)
	Get(ctx context.Context, id uuid.UUID) (Fleet, error)
	ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]Fleet, error)
	Update(ctx context.Context, id uuid.UUID, update FleetUpdate) (Fleet, error)
	InsertIssue(ctx context.Context, issue Issue) (Issue, error)
	ResolveIssue(ctx context.Context, fleetID, issueID uuid.UUID) (Issue, error)
	ListIssues(ctx context.Context, fleetID uuid.UUID) ([]Issue, error)
	InsertMaintenance(ctx context.Context, record MaintenanceRecord) (MaintenanceRecord, error)
	ListMaintenance(ctx context.Context, fleetID uuid.UUID) ([]MaintenanceRecord, error)
}

// Service applies department scoping over the fleet store. There is no
// state machine here; status is a plain field.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) scoped(principal identity.Principal, departmentID uuid.UUID) error {
	if principal.HasMinRole(identity.RoleAdmin) {
		return nil
	}
	if !principal.InDepartment(departmentID) {
		return fmt.Errorf("fleet: department %s outside principal scope: %w", departmentID, shared.ErrForbidden)
	}
	return nil
}

// CreateInput describes a new fleet entry.
type CreateInput struct {
	FleetNumber  string
	MachineType  string
	Status       Status
	DepartmentID uuid.UUID
	OperatorID   *uuid.UUID
	MachineHours float64
	Condition    string
	Remarks      string
}

// Create registers a machine under a department the principal can act in.
func (s *Service) Create(ctx context.Context, principal identity.Principal, input CreateInput) (Fleet, error) {
	if strings.TrimSpace(input.FleetNumber) == "" || strings.TrimSpace(input.MachineType) == "" {
		return Fleet{}, fmt.Errorf("fleet: fleet_number and machine_type required: %w", shared.ErrValidation)
	}
	if input.Status == "" {
		input.Status = StatusActive
	}
	if !input.Status.Valid() {
		return Fleet{}, fmt.Errorf("fleet: unknown status %q: %w", input.Status, shared.ErrValidation)
	}
	if err := s.scoped(principal, input.DepartmentID); err != nil {
		return Fleet{}, err
	}
	return s.repo.Create(ctx, Fleet{
		FleetNumber:  strings.TrimSpace(input.FleetNumber),
		MachineType:  strings.TrimSpace(input.MachineType),
		Status:       input.Status,
		OperatorID:   input.OperatorID,
		DepartmentID: input.DepartmentID,
		MachineHours: input.MachineHours,
		Condition:    input.Condition,
		Remarks:      input.Remarks,
	})
}

// List returns the fleets visible to the principal.
func (s *Service) List(ctx context.Context, principal identity.Principal) ([]Fleet, error) {
	if principal.HasMinRole(identity.RoleAdmin) {
		return s.repo.ListByDepartments(ctx, nil)
	}
	departments := principal.Departments()
	if len(departments) == 0 {
		return nil, nil
	}
	return s.repo.ListByDepartments(ctx, departments)
}

// Get loads one fleet the principal may view.
func (s *Service) Get(ctx context.Context, principal identity.Principal, id uuid.UUID) (Fleet, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return Fleet{}, err
	}
	if err := s.scoped(principal, f.DepartmentID); err != nil {
		return Fleet{}, err
	}
	return f, nil
}

// Update patches fleet fields within the principal's scope.
func (s *Service) Update(ctx context.Context, principal identity.Principal, id uuid.UUID, update FleetUpdate) (Fleet, error) {
	if update.Empty() {
		return Fleet{}, fmt.Errorf("fleet: update requires at least one field: %w", shared.ErrValidation)
	}
	if update.Status != nil && !update.Status.Valid() {
		return Fleet{}, fmt.Errorf("fleet: unknown status %q: %w", *update.Status, shared.ErrValidation)
	}
	if _, err := s.Get(ctx, principal, id); err != nil {
		return Fleet{}, err
	}
	return s.repo.Update(ctx, id, update)
}

// ReportIssue records a defect on a fleet in scope.
func (s *Service) ReportIssue(ctx context.Context, principal identity.Principal, fleetID uuid.UUID, description string) (Issue, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Issue{}, fmt.Errorf("fleet: issue description required: %w", shared.ErrValidation)
	}
	if _, err := s.Get(ctx, principal, fleetID); err != nil {
		return Issue{}, err
	}
	return s.repo.InsertIssue(ctx, Issue{FleetID: fleetID, Description: description})
}

// ResolveIssue closes a defect. Requires supervisor or higher.
func (s *Service) ResolveIssue(ctx context.Context, principal identity.Principal, fleetID, issueID uuid.UUID) (Issue, error) {
	if !principal.HasMinRole(identity.RoleSupervisor) {
		return Issue{}, fmt.Errorf("fleet: resolving issues requires supervisor: %w", shared.ErrForbidden)
	}
	if _, err := s.Get(ctx, principal, fleetID); err != nil {
		return Issue{}, err
	}
	return s.repo.ResolveIssue(ctx, fleetID, issueID)
}

// ListIssues returns the issue log of a fleet in scope.
func (s *Service) ListIssues(ctx context.Context, principal identity.Principal, fleetID uuid.UUID) ([]Issue, error) {
	if _, err := s.Get(ctx, principal, fleetID); err != nil {
		return nil, err
	}
	return s.repo.ListIssues(ctx, fleetID)
}

// MaintenanceInput describes a completed service entry.
type MaintenanceInput struct {
	MaintenanceDate time.Time
	Description     string
	PerformedBy     string
	NextServiceDue  *time.Time
	Remarks         string
}

// RecordMaintenance appends a service entry for a fleet in scope.
func (s *Service) RecordMaintenance(ctx context.Context, principal identity.Principal, fleetID uuid.UUID, input MaintenanceInput) (MaintenanceRecord, error) {
	if strings.TrimSpace(input.Description) == "" {
		return MaintenanceRecord{}, fmt.Errorf("fleet: maintenance description required: %w", shared.ErrValidation)
	}
	if input.MaintenanceDate.IsZero() {
		input.MaintenanceDate = time.Now()
	}
	if _, err := s.Get(ctx, principal, fleetID); err != nil {
		return MaintenanceRecord{}, err
	}
	return s.repo.InsertMaintenance(ctx, MaintenanceRecord{
		FleetID:         fleetID,
		MaintenanceDate: input.MaintenanceDate,
		Description:     strings.TrimSpace(input.Description),
		PerformedBy:     input.PerformedBy,
		NextServiceDue:  input.NextServiceDue,
		Remarks:         input.Remarks,
	})
}

// ListMaintenance returns the maintenance history of a fleet in scope.
func (s *Service) ListMaintenance(ctx context.Context, principal identity.Principal, fleetID uuid.UUID) ([]MaintenanceRecord, error) {
	if _, err := s.Get(ctx, principal, fleetID); err != nil {
		return nil, err
	}
	return s.repo.ListMaintenance(ctx, fleetID)
}
