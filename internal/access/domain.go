package access

import (
	"time"

	"github.com/google/uuid"
)

// Grant is a supplemental department membership beyond the user's primary
// assignment. At most one grant exists per (user, department) pair.
type Grant struct {
	UserID       uuid.UUID
	DepartmentID uuid.UUID
	GrantedBy    uuid.UUID
	GrantedAt    time.Time
}
