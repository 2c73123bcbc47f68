package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of application roles, ordered by privilege.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleSupervisor Role = "supervisor"
	RoleManager    Role = "manager"
	RoleDirector   Role = "director"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleRank orders roles for minimum-role checks. Unknown roles rank below
// staff so a corrupt row never grants privilege.
var roleRank = map[Role]int{
	RoleStaff:      1,
	RoleSupervisor: 2,
	RoleManager:    3,
	RoleDirector:   4,
	RoleAdmin:      5,
	RoleSuperAdmin: 6,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min in the role order.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// HighestRole collapses a set of role rows to the single strongest role.
// An empty set resolves to staff: absence of a role record is the weakest
// authenticated role, not an authorization error.
func HighestRole(roles []Role) Role {
	highest := RoleStaff
	for _, r := range roles {
		if roleRank[r] > roleRank[highest] {
			highest = r
		}
	}
	return highest
}

// Profile mirrors the profiles row for an account.
type Profile struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	AvatarURL    string
	Phone        string
	DepartmentID *uuid.UUID
	PasswordHash string
	CreatedAt    time.Time
}

// Principal is the resolved authorization context for an authenticated
// actor: highest role, primary department, granted departments.
type Principal struct {
	UserID             uuid.UUID
	Email              string
	FullName           string
	Role               Role
	PrimaryDepartment  *uuid.UUID
	GrantedDepartments []uuid.UUID
}

// HasRole is an exact-match role check.
func (p Principal) HasRole(role Role) bool {
	return p.Role == role
}

// HasMinRole reports whether the principal's role is at or above the
// required minimum in the role order.
func (p Principal) HasMinRole(min Role) bool {
	return p.Role.AtLeast(min)
}

// InDepartment reports whether the department is the principal's primary
// department or one of the granted departments.
func (p Principal) InDepartment(departmentID uuid.UUID) bool {
	if p.PrimaryDepartment != nil && *p.PrimaryDepartment == departmentID {
		return true
	}
	for _, id := range p.GrantedDepartments {
		if id == departmentID {
			return true
		}
	}
	return false
}

// Departments returns the principal's full department scope.
func (p Principal) Departments() []uuid.UUID {
	scope := make([]uuid.UUID, 0, len(p.GrantedDepartments)+1)
	if p.PrimaryDepartment != nil {
		scope = append(scope, *p.PrimaryDepartment)
	}
	for _, id := range p.GrantedDepartments {
		if p.PrimaryDepartment != nil && id == *p.PrimaryDepartment {
			continue
		}
		scope = append(scope, id)
	}
	return scope
}
