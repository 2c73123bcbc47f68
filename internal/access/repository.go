package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for department grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert adds a single grant. Returns shared.ErrConflict when the pair
// already exists.
func (r *Repository) Insert(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_department_access (user_id, department_id, granted_by, granted_at)
VALUES ($1, $2, $3, NOW())`, grant.UserID, grant.DepartmentID, grant.GrantedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("access: grant exists for user %s department %s: %w", grant.UserID, grant.DepartmentID, shared.ErrConflict)
		}
		return err
	}
	return nil
}

// Delete removes a single grant. Deleting an absent grant is not an error.
func (r *Repository) Delete(ctx context.Context, userID, departmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_department_access WHERE user_id = $1 AND department_id = $2`, userID, departmentID)
	return err
}

// Replace atomically clears every grant for the user and inserts the new
// set. A failure during the insert phase rolls back the delete.
func (r *Repository) Replace(ctx context.Context, userID, grantedBy uuid.UUID, departmentIDs []uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM user_department_access WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, departmentID := range departmentIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO user_department_access (user_id, department_id, granted_by, granted_at)
VALUES ($1, $2, $3, NOW())`, userID, departmentID, grantedBy); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListForUser returns all grants for a user ordered by grant time.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, department_id, granted_by, granted_at
FROM user_department_access WHERE user_id = $1 ORDER BY granted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.UserID, &g.DepartmentID, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
