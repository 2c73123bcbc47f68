package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
)

// Status enumerates the report lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Type enumerates report categories.
type Type string

const (
	TypeIncident    Type = "incident"
	TypeGeneral     Type = "general"
	TypeFinancial   Type = "financial"
	TypePerformance Type = "performance"
)

// Valid reports whether t is a known report type.
func (t Type) Valid() bool {
	switch t {
	case TypeIncident, TypeGeneral, TypeFinancial, TypePerformance:
		return true
	}
	return false
}

// Priority enumerates report priorities.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Report is the central entity: owned by a department, created by a user,
// driven through the approval workflow by status transitions.
type Report struct {
	ID           uuid.UUID
	Title        string
	Description  string
	Type         Type
	Priority     Priority
	Status       Status
	DepartmentID uuid.UUID
	CreatedBy    uuid.UUID
	Attachments  []string
	SubmittedAt  *time.Time
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Comment is an append-only audit record on a report. Action is empty for a
// plain comment, otherwise the status the author drove the report into.
type Comment struct {
	ID        uuid.UUID
	ReportID  uuid.UUID
	UserID    uuid.UUID
	Content   string
	Action    Status
	CreatedAt time.Time
}

// transitionRule gates one edge of the workflow state machine.
type transitionRule struct {
	minRole     identity.Role
	creatorOnly bool
	// defaultNote, when set, marks an approval-flavored edge: the actor may
	// omit a note and this canned message is recorded instead. Edges
	// without a default require a non-empty note.
	defaultNote  string
	setSubmitted bool
	setResolved  bool
}

// transitions is the single authority for the report workflow. Every status
// mutation in the system goes through this table; no call site re-implements
// it. escalated is a defined status with no inbound edge here: the manager
// "escalate" action sends the report back to pending for another supervisor
// pass.
var transitions = map[Status]map[Status]transitionRule{
	StatusDraft: {
		StatusPending: {creatorOnly: true, defaultNote: "Report submitted for review", setSubmitted: true},
	},
	StatusPending: {
		StatusInReview: {minRole: identity.RoleSupervisor, defaultNote: "Approved by supervisor, forwarded to manager for final review"},
		StatusRejected: {minRole: identity.RoleSupervisor},
		StatusDraft:    {minRole: identity.RoleSupervisor},
	},
	StatusInReview: {
		StatusApproved: {minRole: identity.RoleManager, defaultNote: "Final approval granted", setResolved: true},
		StatusRejected: {minRole: identity.RoleManager},
		StatusPending:  {minRole: identity.RoleManager, defaultNote: "Sent back for supervisor review"},
	},
}

// ruleFor looks up the transition rule for an edge.
func ruleFor(from, to Status) (transitionRule, bool) {
	edges, ok := transitions[from]
	if !ok {
		return transitionRule{}, false
	}
	rule, ok := edges[to]
	return rule, ok
}

// Scope is the server-side row visibility for a principal: everything for
// admins, otherwise the principal's departments plus their own reports.
type Scope struct {
	All           bool
	UserID        uuid.UUID
	DepartmentIDs []uuid.UUID
}

// ScopeFor derives the read scope from a resolved principal.
func ScopeFor(p identity.Principal) Scope {
	if p.HasMinRole(identity.RoleAdmin) {
		return Scope{All: true, UserID: p.UserID}
	}
	return Scope{UserID: p.UserID, DepartmentIDs: p.Departments()}
}

// Covers reports whether a report is visible within the scope.
func (s Scope) Covers(r Report) bool {
	if s.All {
		return true
	}
	if r.CreatedBy == s.UserID {
		return true
	}
	for _, id := range s.DepartmentIDs {
		if id == r.DepartmentID {
			return true
		}
	}
	return false
}

// Filter narrows report listings.
type Filter struct {
	Status       Status
	Type         Type
	Priority     Priority
	DepartmentID *uuid.UUID
	From         *time.Time
	To           *time.Time
	Page         int
	PerPage      int
}

// Stats aggregates visible reports by status.
type Stats struct {
	Total    int `json:"total"`
	Draft    int `json:"draft"`
	Pending  int `json:"pending"`
	InReview int `json:"in_review"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// DepartmentStat summarises workflow progress for one department.
type DepartmentStat struct {
	DepartmentID   uuid.UUID `json:"department_id"`
	DepartmentName string    `json:"department_name"`
	Total          int       `json:"total"`
	Approved       int       `json:"approved"`
	Pending        int       `json:"pending"`
	Completion     float64   `json:"completion"`
}
