package fleet

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates the operational state of a machine.
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusIdle        Status = "idle"
	StatusRetired     Status = "retired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusIdle, StatusRetired:
		return true
	}
	return false
}

// Fleet is one machine or vehicle owned by a department.
type Fleet struct {
	ID                 uuid.UUID
	FleetNumber        string
	MachineType        string
	Status             Status
	OperatorID         *uuid.UUID
	DepartmentID       uuid.UUID
	MachineHours       float64
	Condition          string
	Remarks            string
	LastInspectionDate *time.Time
	OpenIssues         int
	LastMaintenance    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Issue is a reported defect on a machine.
type Issue struct {
	ID          uuid.UUID  `json:"id"`
	FleetID     uuid.UUID  `json:"fleet_id"`
	Description string     `json:"description"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MaintenanceRecord is one completed service entry.
type MaintenanceRecord struct {
	ID              uuid.UUID  `json:"id"`
	FleetID         uuid.UUID  `json:"fleet_id"`
	MaintenanceDate time.Time  `json:"maintenance_date"`
	Description     string     `json:"description"`
	PerformedBy     string     `json:"performed_by"`
	NextServiceDue  *time.Time `json:"next_service_due"`
	Remarks         string     `json:"remarks"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FleetUpdate carries patchable fields. Nil means leave unchanged.
type FleetUpdate struct {
	FleetNumber        *string
	MachineType        *string
	Status             *Status
	OperatorID         *uuid.UUID
	MachineHours       *float64
	Condition          *string
	Remarks            *string
	LastInspectionDate *time.Time
}

// Empty reports whether the update patches nothing.
func (u FleetUpdate) Empty() bool {
	return u.FleetNumber == nil && u.MachineType == nil && u.Status == nil &&
		u.OperatorID == nil && u.MachineHours == nil && u.Condition == nil &&
		u.Remarks == nil && u.LastInspectionDate == nil
}
