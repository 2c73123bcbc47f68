// Package departments serves the flat department reference data used by
// pickers and by validation of department ids in privileged operations.
package departments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Department is a flat reference entity.
type Department struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository reads the departments table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all departments ordered by name.
func (r *Repository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(color, ''), created_at
		FROM departments
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.Color, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Get returns one department by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Department, error) {
	var d Department
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(color, ''), created_at
		FROM departments
		WHERE id = $1`, id).Scan(&d.ID, &d.Name, &d.Code, &d.Color, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, fmt.Errorf("department %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Department{}, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

// ListerPort is the read interface handlers depend on.
type ListerPort interface {
	List(ctx context.Context) ([]Department, error)
}

// Handler serves the department listing.
type Handler struct {
	repo ListerPort
}

// NewHandler constructs a Handler instance.
func NewHandler(repo ListerPort) *Handler {
	return &Handler{repo: repo}
}

// MountRoutes registers department routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	departments, err := h.repo.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if departments == nil {
		departments = []Department{}
	}
	httpx.JSON(w, http.StatusOK, departments)
}
