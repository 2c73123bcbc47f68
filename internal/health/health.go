// Package health implements the system health endpoint: table counts and
// store latency probes, visible to super administrators only.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// countedTables are the core tables reported by the endpoint.
var countedTables = []string{
	"profiles",
	"departments",
	"reports",
	"report_comments",
	"user_department_access",
	"fleets",
	"inventory_items",
	"audit_logs",
}

// Report is the aggregated health snapshot.
type Report struct {
	Status         string           `json:"status"`
	TableCounts    map[string]int64 `json:"table_counts"`
	DBLatencyMS    float64          `json:"db_latency_ms"`
	RedisLatencyMS *float64         `json:"redis_latency_ms,omitempty"`
	CheckedAt      time.Time        `json:"checked_at"`
}

// Service probes the backing stores.
type Service struct {
	pool  *pgxpool.Pool
	cache *redis.Client
}

// NewService builds Service instance. cache may be nil.
func NewService(pool *pgxpool.Pool, cache *redis.Client) *Service {
	return &Service{pool: pool, cache: cache}
}

// Check gathers table counts in parallel plus store latencies. Requires
// the super_admin role.
func (s *Service) Check(ctx context.Context, principal identity.Principal) (Report, error) {
	if !principal.HasRole(identity.RoleSuperAdmin) {
		return Report{}, fmt.Errorf("health: system health requires super_admin: %w", shared.ErrForbidden)
	}

	report := Report{
		Status:      "healthy",
		TableCounts: make(map[string]int64, len(countedTables)),
		CheckedAt:   time.Now(),
	}

	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return Report{}, fmt.Errorf("health: database unreachable: %w", shared.ErrUnavailable)
	}
	report.DBLatencyMS = float64(time.Since(start).Microseconds()) / 1000

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, table := range countedTables {
		g.Go(func() error {
			var count int64
			if err := s.pool.QueryRow(gctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
				return fmt.Errorf("count %s: %w", table, err)
			}
			mu.Lock()
			report.TableCounts[table] = count
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	if s.cache != nil {
		start = time.Now()
		if err := s.cache.Ping(ctx).Err(); err != nil {
			report.Status = "degraded"
		} else {
			latency := float64(time.Since(start).Microseconds()) / 1000
			report.RedisLatencyMS = &latency
		}
	}
	return report, nil
}

// Handler serves the health snapshot.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers the health route on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.handleCheck)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	report, err := h.service.Check(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
