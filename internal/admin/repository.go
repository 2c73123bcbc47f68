package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/platform/db"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Repository persists privileged user mutations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// profiles carries no updated_at column, so the statement only touches the
// patched fields.
const updateProfileSQL = `
	UPDATE profiles
	SET full_name = COALESCE($2, full_name),
	    department_id = COALESCE($3, department_id)
	WHERE id = $1`

// UpdateProfile applies the non-nil fields to the profiles row.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName *string, departmentID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, updateProfileSQL, userID, fullName, departmentID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, shared.ErrNotFound)
	}
	return nil
}

// SetRole replaces the user's role rows with the single given role.
// Role resolution collapses to the highest row, so one row is the
// canonical representation.
func (r *Repository) SetRole(ctx context.Context, userID uuid.UUID, role identity.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, role); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
		return nil
	})
}

// DeleteUser removes the profile row. Roles, grants and comments cascade
// through foreign keys.
func (r *Repository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, shared.ErrNotFound)
	}
	return nil
}

// ListUsers returns all profiles with their resolved highest role, for the
// administration screen.
func (r *Repository) ListUsers(ctx context.Context) ([]UserSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.email, COALESCE(p.full_name, ''), p.department_id,
		       COALESCE((
		           SELECT ur.role FROM user_roles ur
		           WHERE ur.user_id = p.id
		           ORDER BY CASE ur.role
		               WHEN 'super_admin' THEN 6
		               WHEN 'admin' THEN 5
		               WHEN 'director' THEN 4
		               WHEN 'manager' THEN 3
		               WHEN 'supervisor' THEN 2
		               ELSE 1
		           END DESC
		           LIMIT 1
		       ), 'staff'),
		       p.created_at
		FROM profiles p
		ORDER BY p.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.DepartmentID, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
