package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// RepositoryPort describes item persistence used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, item Item) (Item, error)
	Get(ctx context.Context, id uuid.UUID) (Item, error)
	ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]Item, error)
	Update(ctx context.Context, id uuid.UUID, update ItemUpdate) (Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, departmentIDs []uuid.UUID) (Stats, error)
}

// Service applies department scoping over the inventory store.
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
		return fmt.Errorf("inventory: department %s outside principal scope: %w", departmentID, shared.ErrForbidden)
	}
	return nil
}

// CreateInput describes a new item.
type CreateInput struct {
	DepartmentID uuid.UUID
	ItemNumber   string
	ItemName     string
	Quantity     float64
	MinQuantity  float64
	Location     string
	Description  string
	Unit         string
}

// Create registers one item in a department the principal can act in.
func (s *Service) Create(ctx context.Context, principal identity.Principal, input CreateInput) (Item, error) {
	if strings.TrimSpace(input.ItemNumber) == "" || strings.TrimSpace(input.ItemName) == "" {
		return Item{}, fmt.Errorf("inventory: item_number and item_name required: %w", shared.ErrValidation)
	}
	if input.Quantity < 0 || input.MinQuantity < 0 {
		return Item{}, fmt.Errorf("inventory: quantities must be non-negative: %w", shared.ErrValidation)
	}
	if err := s.scoped(principal, input.DepartmentID); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, Item{
		DepartmentID: input.DepartmentID,
		ItemNumber:   strings.TrimSpace(input.ItemNumber),
		ItemName:     strings.TrimSpace(input.ItemName),
		Quantity:     input.Quantity,
		MinQuantity:  input.MinQuantity,
		Location:     input.Location,
		Description:  input.Description,
		Unit:         input.Unit,
		CreatedBy:    principal.UserID,
	})
}

// List returns items visible to the principal.
func (s *Service) List(ctx context.Context, principal identity.Principal) ([]Item, error) {
	if principal.HasMinRole(identity.RoleAdmin) {
		return s.repo.ListByDepartments(ctx, nil)
	}
	departments := principal.Departments()
	if len(departments) == 0 {
		return nil, nil
	}
	return s.repo.ListByDepartments(ctx, departments)
}

// Update patches item fields within the principal's scope.
func (s *Service) Update(ctx context.Context, principal identity.Principal, id uuid.UUID, update ItemUpdate) (Item, error) {
	if update.Empty() {
		return Item{}, fmt.Errorf("inventory: update requires at least one field: %w", shared.ErrValidation)
	}
	if update.Quantity != nil && *update.Quantity < 0 {
		return Item{}, fmt.Errorf("inventory: quantity must be non-negative: %w", shared.ErrValidation)
	}
	if update.MinQuantity != nil && *update.MinQuantity < 0 {
		return Item{}, fmt.Errorf("inventory: min_quantity must be non-negative: %w", shared.ErrValidation)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := s.scoped(principal, item.DepartmentID); err != nil {
		return Item{}, err
	}
	return s.repo.Update(ctx, id, update)
}

// Delete removes an item within the principal's scope. Requires supervisor
// or higher.
func (s *Service) Delete(ctx context.Context, principal identity.Principal, id uuid.UUID) error {
	if !principal.HasMinRole(identity.RoleSupervisor) {
		return fmt.Errorf("inventory: deleting items requires supervisor: %w", shared.ErrForbidden)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.scoped(principal, item.DepartmentID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Stats aggregates the stock position over the principal's departments.
func (s *Service) Stats(ctx context.Context, principal identity.Principal) (Stats, error) {
	if principal.HasMinRole(identity.RoleAdmin) {
		return s.repo.Stats(ctx, nil)
	}
	departments := principal.Departments()
	if len(departments) == 0 {
		return Stats{}, nil
	}
	return s.repo.Stats(ctx, departments)
}
