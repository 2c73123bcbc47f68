package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Item is one stocked article owned by a department.
type Item struct {
	ID           uuid.UUID `json:"id"`
	DepartmentID uuid.UUID `json:"department_id"`
	ItemNumber   string    `json:"item_number"`
	ItemName     string    `json:"item_name"`
	Quantity     float64   `json:"quantity"`
	MinQuantity  float64   `json:"min_quantity"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Unit         string    `json:"unit"`
	CreatedBy    uuid.UUID `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LowStock reports whether the item sits at or below its minimum.
func (i Item) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

// ItemUpdate carries patchable fields. Nil means leave unchanged.
type ItemUpdate struct {
	ItemName    *string
	Quantity    *float64
	MinQuantity *float64
	Location    *string
	Description *string
	Unit        *string
}

// Empty reports whether the update patches nothing.
func (u ItemUpdate) Empty() bool {
	return u.ItemName == nil && u.Quantity == nil && u.MinQuantity == nil &&
		u.Location == nil && u.Description == nil && u.Unit == nil
}

// Stats summarises a department's stock position.
type Stats struct {
	TotalItems      int     `json:"total_items"`
	TotalQuantity   float64 `json:"total_quantity"`
	UniqueLocations int     `json:"unique_locations"`
	LowStockItems   int     `json:"low_stock_items"`
}
