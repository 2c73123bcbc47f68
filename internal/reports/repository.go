package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, title, description, report_type, priority, status, department_id, created_by, attachments, submitted_at, resolved_at, created_at, updated_at`

// Create inserts a new draft report.
func (r *Repository) Create(ctx context.Context, report Report) (Report, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO reports (title, description, report_type, priority, status, department_id, created_by, attachments)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+reportColumns,
		report.Title, report.Description, string(report.Type), string(report.Priority), string(report.Status), report.DepartmentID, report.CreatedBy, report.Attachments)
	return scanReport(row)
}

// Get fetches one report by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

// List returns reports visible in the scope, newest first, with the total
// row count for pagination. Scoping happens here, never in presentation.
func (r *Repository) List(ctx context.Context, scope Scope, filter Filter) ([]Report, int, error) {
	where, args := buildListQuery(scope, filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	window := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := `SELECT ` + reportColumns + ` FROM reports` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, window.PerPage, window.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, report)
	}
	return reports, total, rows.Err()
}

// Transition moves a report along one edge of the workflow and appends the
// audit comment in the same transaction. The UPDATE is conditional on the
// expected source status so a concurrent transition cannot be overwritten:
// zero rows affected means the report left the expected state.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to Status, setSubmitted, setResolved bool, comment Comment) (Report, error) {
	var updated Report
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `UPDATE reports SET status = $1, updated_at = NOW()`
		if setSubmitted {
			query += `, submitted_at = NOW()`
		}
		if setResolved {
			query += `, resolved_at = NOW()`
		}
		query += ` WHERE id = $2 AND status = $3 RETURNING ` + reportColumns

		row := tx.QueryRow(ctx, query, string(to), id, string(from))
		var err error
		updated, err = scanReport(row)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("reports: report %s is no longer %s: %w", id, from, shared.ErrForbidden)
			}
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO report_comments (report_id, user_id, content, action)
VALUES ($1, $2, $3, $4)`, comment.ReportID, comment.UserID, comment.Content, string(comment.Action))
		return err
	})
	if err != nil {
		return Report{}, err
	}
	return updated, nil
}

// InsertComment appends a plain comment.
func (r *Repository) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO report_comments (report_id, user_id, content, action)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING id, report_id, user_id, content, COALESCE(action, ''), created_at`,
		comment.ReportID, comment.UserID, comment.Content, string(comment.Action))
	return scanComment(row)
}

// ListComments returns the comment trail oldest first.
func (r *Repository) ListComments(ctx context.Context, reportID uuid.UUID) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, report_id, user_id, content, COALESCE(action, ''), created_at
FROM report_comments WHERE report_id = $1 ORDER BY created_at ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// StatusCounts aggregates visible reports by status.
func (r *Repository) StatusCounts(ctx context.Context, scope Scope) (map[Status]int, error) {
	where, args := buildListQuery(scope, Filter{})
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM reports`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// DepartmentStatusCounts aggregates visible reports per owning department.
func (r *Repository) DepartmentStatusCounts(ctx context.Context, scope Scope) ([]DepartmentStat, error) {
	where, args := buildListQuery(scope, Filter{})
	query := `SELECT r.department_id, d.name,
COUNT(*),
COUNT(*) FILTER (WHERE r.status = 'approved'),
COUNT(*) FILTER (WHERE r.status = 'pending')
FROM reports r JOIN departments d ON d.id = r.department_id` +
		strings.ReplaceAll(where, "department_id", "r.department_id") +
		` GROUP BY r.department_id, d.name ORDER BY d.name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []DepartmentStat
	for rows.Next() {
		var s DepartmentStat
		if err := rows.Scan(&s.DepartmentID, &s.DepartmentName, &s.Total, &s.Approved, &s.Pending); err != nil {
			return nil, err
		}
		if s.Total > 0 {
			s.Completion = float64(s.Approved) / float64(s.Total)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// buildListQuery assembles the WHERE clause for scope plus filters.
func buildListQuery(scope Scope, filter Filter) (string, []any) {
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !scope.All {
		clauses = append(clauses, fmt.Sprintf("(department_id = ANY(%s) OR created_by = %s)",
			arg(scope.DepartmentIDs), arg(scope.UserID)))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}
	if filter.Type != "" {
		clauses = append(clauses, "report_type = "+arg(string(filter.Type)))
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = "+arg(string(filter.Priority)))
	}
	if filter.DepartmentID != nil {
		clauses = append(clauses, "department_id = "+arg(*filter.DepartmentID))
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= "+arg(*filter.To))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var r Report
	var reportType, priority, status string
	var submittedAt, resolvedAt *time.Time
	err := row.Scan(&r.ID, &r.Title, &r.Description, &reportType, &priority, &status,
		&r.DepartmentID, &r.CreatedBy, &r.Attachments, &submittedAt, &resolvedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, shared.ErrNotFound
		}
		return Report{}, err
	}
	r.Type = Type(reportType)
	r.Priority = Priority(priority)
	r.Status = Status(status)
	r.SubmittedAt = submittedAt
	r.ResolvedAt = resolvedAt
	return r, nil
}

func scanComment(row rowScanner) (Comment, error) {
	var c Comment
	var action string
	err := row.Scan(&c.ID, &c.ReportID, &c.UserID, &c.Content, &action, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, shared.ErrNotFound
		}
		return Comment{}, err
	}
	c.Action = Status(action)
	return c, nil
}
