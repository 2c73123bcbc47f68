package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/shared"
)

// Repository persists fleet data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fleetColumns = `
	f.id, f.fleet_number, f.machine_type, f.status, f.operator_id,
	f.department_id, f.machine_hours, COALESCE(f.condition, ''),
	COALESCE(f.remarks, ''), f.last_inspection_date,
	(SELECT COUNT(*) FROM fleet_issues i WHERE i.fleet_id = f.id AND NOT i.is_resolved),
	(SELECT MAX(m.maintenance_date) FROM maintenance_records m WHERE m.fleet_id = f.id),
	f.created_at, f.updated_at`

func scanFleet(row pgx.Row) (Fleet, error) {
	var f Fleet
	err := row.Scan(&f.ID, &f.FleetNumber, &f.MachineType, &f.Status, &f.OperatorID,
		&f.DepartmentID, &f.MachineHours, &f.Condition, &f.Remarks, &f.LastInspectionDate,
		&f.OpenIssues, &f.LastMaintenance, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fleet{}, fmt.Errorf("fleet: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Fleet{}, fmt.Errorf("scan fleet: %w", err)
	}
	return f, nil
}

// Create inserts a new fleet row.
func (r *Repository) Create(ctx context.Context, f Fleet) (Fleet, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO fleets (fleet_number, machine_type, status, operator_id, department_id,
			machine_hours, condition, remarks, last_inspection_date)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING `+strings.ReplaceAll(fleetColumns, "f.", "fleets."),
		f.FleetNumber, f.MachineType, f.Status, f.OperatorID, f.DepartmentID,
		f.MachineHours, f.Condition, f.Remarks, f.LastInspectionDate)
	return scanFleet(row)
}

// Get loads one fleet with its open issue count and last maintenance date.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Fleet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fleetColumns+` FROM fleets f WHERE f.id = $1`, id)
	return scanFleet(row)
}

// ListByDepartments returns fleets owned by the given departments. An empty
// list means no department filter (full visibility).
func (r *Repository) ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]Fleet, error) {
	query := `SELECT ` + fleetColumns + ` FROM fleets f`
	var args []any
	if len(departmentIDs) > 0 {
		query += ` WHERE f.department_id = ANY($1)`
		args = append(args, departmentIDs)
	}
	query += ` ORDER BY f.fleet_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fleets: %w", err)
	}
	defer rows.Close()

	var out []Fleet
	for rows.Next() {
		f, err := scanFleet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Update applies the non-nil patch fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, update FleetUpdate) (Fleet, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.FleetNumber != nil {
		add("fleet_number", *update.FleetNumber)
	}
	if update.MachineType != nil {
		add("machine_type", *update.MachineType)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.OperatorID != nil {
		add("operator_id", *update.OperatorID)
	}
	if update.MachineHours != nil {
		add("machine_hours", *update.MachineHours)
	}
	if update.Condition != nil {
		add("condition", *update.Condition)
	}
	if update.Remarks != nil {
		add("remarks", *update.Remarks)
	}
	if update.LastInspectionDate != nil {
		add("last_inspection_date", *update.LastInspectionDate)
	}

	query := `UPDATE fleets SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return Fleet{}, fmt.Errorf("update fleet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Fleet{}, fmt.Errorf("fleet %s: %w", id, shared.ErrNotFound)
	}
	return r.Get(ctx, id)
}

// InsertIssue records a new defect on a fleet.
func (r *Repository) InsertIssue(ctx context.Context, issue Issue) (Issue, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO fleet_issues (fleet_id, issue_description)
		VALUES ($1, $2)
		RETURNING id, fleet_id, issue_description, is_resolved, resolved_at, created_at`,
		issue.FleetID, issue.Description)
	return scanIssue(row)
}

// ResolveIssue marks an issue resolved. Idempotent on already-resolved rows.
func (r *Repository) ResolveIssue(ctx context.Context, fleetID, issueID uuid.UUID) (Issue, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE fleet_issues
		SET is_resolved = TRUE, resolved_at = COALESCE(resolved_at, NOW())
		WHERE id = $1 AND fleet_id = $2
		RETURNING id, fleet_id, issue_description, is_resolved, resolved_at, created_at`,
		issueID, fleetID)
	return scanIssue(row)
}

// ListIssues returns the issues of one fleet, newest first.
func (r *Repository) ListIssues(ctx context.Context, fleetID uuid.UUID) ([]Issue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fleet_id, issue_description, is_resolved, resolved_at, created_at
		FROM fleet_issues
		WHERE fleet_id = $1
		ORDER BY created_at DESC`, fleetID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func scanIssue(row pgx.Row) (Issue, error) {
	var issue Issue
	err := row.Scan(&issue.ID, &issue.FleetID, &issue.Description, &issue.IsResolved, &issue.ResolvedAt, &issue.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Issue{}, fmt.Errorf("fleet issue: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Issue{}, fmt.Errorf("scan issue: %w", err)
	}
	return issue, nil
}

// InsertMaintenance records one completed service entry.
func (r *Repository) InsertMaintenance(ctx context.Context, record MaintenanceRecord) (MaintenanceRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO maintenance_records (fleet_id, maintenance_date, description, performed_by, next_service_due, remarks)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, fleet_id, maintenance_date, description, COALESCE(performed_by, ''), next_service_due, COALESCE(remarks, ''), created_at`,
		record.FleetID, record.MaintenanceDate, record.Description, record.PerformedBy, record.NextServiceDue, record.Remarks)
	return scanMaintenance(row)
}

// ListMaintenance returns the maintenance history of one fleet, newest first.
func (r *Repository) ListMaintenance(ctx context.Context, fleetID uuid.UUID) ([]MaintenanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fleet_id, maintenance_date, description, COALESCE(performed_by, ''), next_service_due, COALESCE(remarks, ''), created_at
		FROM maintenance_records
		WHERE fleet_id = $1
		ORDER BY maintenance_date DESC`, fleetID)
	if err != nil {
		return nil, fmt.Errorf("list maintenance: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceRecord
	for rows.Next() {
		record, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanMaintenance(row pgx.Row) (MaintenanceRecord, error) {
	var record MaintenanceRecord
	err := row.Scan(&record.ID, &record.FleetID, &record.MaintenanceDate, &record.Description,
		&record.PerformedBy, &record.NextServiceDue, &record.Remarks, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MaintenanceRecord{}, fmt.Errorf("maintenance record: %w", shared.ErrNotFound)
	}
	if err != nil {
		return MaintenanceRecord{}, fmt.Errorf("scan maintenance: %w", err)
	}
	return record, nil
}
