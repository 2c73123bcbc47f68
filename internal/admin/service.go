package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// UserSummary is the administration view of an account.
type UserSummary struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	FullName     string        `json:"full_name"`
	DepartmentID *uuid.UUID    `json:"department_id"`
	Role         identity.Role `json:"role"`
	CreatedAt    time.Time     `json:"created_at"`
}

// UsersPort describes the privileged user mutations used by Service.
type UsersPort interface {
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullName *string, departmentID *uuid.UUID) error
	SetRole(ctx context.Context, userID uuid.UUID, role identity.Role) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	ListUsers(ctx context.Context) ([]UserSummary, error)
}

// GrantsPort delegates department access mutations to the access module.
type GrantsPort interface {
	Grant(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error
	Revoke(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error
	ReplaceSet(ctx context.Context, actor identity.Principal, userID uuid.UUID, departmentIDs []uuid.UUID) error
}

// AuditPort records privileged operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the single trust boundary for privileged user management.
// Every operation is authorized here; nothing upstream is trusted.
type Service struct {
	users  UsersPort
	grants GrantsPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the admin service.
func NewService(users UsersPort, grants GrantsPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{users: users, grants: grants, audit: audit, logger: logger}
}

// authorize admits exactly the admin role. super_admin is deliberately not
// accepted here; broadening the check is a policy change, not a bug fix.
func (s *Service) authorize(actor identity.Principal) error {
	if !actor.HasRole(identity.RoleAdmin) {
		return fmt.Errorf("admin: operation requires the admin role: %w", shared.ErrForbidden)
	}
	return nil
}

// UpdateInput carries the optional fields of an update operation.
type UpdateInput struct {
	Role         *identity.Role
	FullName     *string
	DepartmentID *uuid.UUID
}

// UpdateUser applies role, name and department changes to the target user.
func (s *Service) UpdateUser(ctx context.Context, actor identity.Principal, userID uuid.UUID, input UpdateInput) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if input.Role == nil && input.FullName == nil && input.DepartmentID == nil {
		return fmt.Errorf("admin: update requires at least one field: %w", shared.ErrValidation)
	}
	if input.Role != nil && !input.Role.Valid() {
		return fmt.Errorf("admin: unknown role %q: %w", *input.Role, shared.ErrValidation)
	}
	if input.FullName != nil || input.DepartmentID != nil {
		if err := s.users.UpdateProfile(ctx, userID, input.FullName, input.DepartmentID); err != nil {
			return err
		}
	}
	if input.Role != nil {
		if err := s.users.SetRole(ctx, userID, *input.Role); err != nil {
			return err
		}
	}
	s.recordAudit(ctx, actor.UserID, "USER_UPDATED", userID)
	return nil
}

// DeleteUser removes the target account. Self-deletion is always rejected.
func (s *Service) DeleteUser(ctx context.Context, actor identity.Principal, userID uuid.UUID) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if actor.UserID == userID {
		return fmt.Errorf("admin: cannot delete your own account: %w", shared.ErrValidation)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "USER_DELETED", userID)
	return nil
}

// GrantDepartmentAccess inserts one grant for the target user.
func (s *Service) GrantDepartmentAccess(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := s.grants.Grant(ctx, actor, userID, departmentID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ACCESS_GRANTED", userID)
	return nil
}

// RevokeDepartmentAccess deletes one grant for the target user.
func (s *Service) RevokeDepartmentAccess(ctx context.Context, actor identity.Principal, userID, departmentID uuid.UUID) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := s.grants.Revoke(ctx, actor, userID, departmentID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ACCESS_REVOKED", userID)
	return nil
}

// UpdateDepartmentAccess replaces the target user's grant set wholesale.
func (s *Service) UpdateDepartmentAccess(ctx context.Context, actor identity.Principal, userID uuid.UUID, departmentIDs []uuid.UUID) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := s.grants.ReplaceSet(ctx, actor, userID, departmentIDs); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ACCESS_REPLACED", userID)
	return nil
}

// ListUsers returns the administration listing.
func (s *Service) ListUsers(ctx context.Context, actor identity.Principal) ([]UserSummary, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, targetID uuid.UUID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: targetID.String(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}
