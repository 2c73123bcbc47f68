package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// RepositoryPort describes grant persistence used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, grant Grant) error
	Delete(ctx context.Context, userID, departmentID uuid.UUID) error
	Replace(ctx context.Context, userID, grantedBy uuid.UUID, departmentIDs []uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Grant, error)
}

// ProfilePort exposes the profile lookup needed to spot redundant grants.
type ProfilePort interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (identity.Profile, error)
}

// Service handles department access grant management. Every mutation is
// administrator-only and validated before any write is issued.
type Service struct {
	repo     RepositoryPort
	profiles ProfilePort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, profiles ProfilePort) *Service {
	return &Service{repo: repo, profiles: profiles}
}

// Grant inserts one grant for the target user. Fails with a conflict when
// the pair already exists and rejects grants for the user's own primary
// department as redundant.
func (s *Service) Grant(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error {
	if err := s.authorize(actor, userID); err != nil {
		return err
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.DepartmentID != nil && *profile.DepartmentID == departmentID {
		return fmt.Errorf("access: department %s is already the user's primary department: %w", departmentID, shared.ErrValidation)
	}
	return s.repo.Insert(ctx, Grant{UserID: userID, DepartmentID: departmentID, GrantedBy: actor.UserID})
}

// Revoke deletes one grant. Idempotent: revoking an absent grant succeeds.
func (s *Service) Revoke(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error {
	if err := s.authorize(actor, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, departmentID)
}

// ReplaceSet atomically clears all existing grants for the user and inserts
// the given set. Duplicates and the user's primary department are dropped
// from the requested set rather than erroring.
func (s *Service) ReplaceSet(ctx context.Context, actor identity.Principal, userID uuid.UUID, departmentIDs []uuid.UUID) error {
	if err := s.authorize(actor, userID); err != nil {
		return err
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(departmentIDs))
	deduped := make([]uuid.UUID, 0, len(departmentIDs))
	for _, id := range departmentIDs {
		if profile.DepartmentID != nil && *profile.DepartmentID == id {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return s.repo.Replace(ctx, userID, actor.UserID, deduped)
}

// ListForUser returns the target user's grants.
func (s *Service) ListForUser(ctx context.Context, actor identity.Principal, userID uuid.UUID) ([]Grant, error) {
	if !actor.HasMinRole(identity.RoleAdmin) && actor.UserID != userID {
		return nil, fmt.Errorf("access: listing grants requires admin: %w", shared.ErrForbidden)
	}
	return s.repo.ListForUser(ctx, userID)
}

// authorize enforces the administrator floor and blocks self-service
// escalation: an actor never mutates their own grant set.
func (s *Service) authorize(actor identity.Principal, target uuid.UUID) error {
	if !actor.HasMinRole(identity.RoleAdmin) {
		return fmt.Errorf("access: grant management requires admin: %w", shared.ErrForbidden)
	}
	if actor.UserID == target {
		return fmt.Errorf("access: cannot modify your own department access: %w", shared.ErrValidation)
	}
	return nil
}
