package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/shared"
)

type memoryItemRepo struct {
	items map[uuid.UUID]Item
}

func newMemoryItemRepo() *memoryItemRepo {
	return &memoryItemRepo{items: map[uuid.UUID]Item{}}
}

func (m *memoryItemRepo) Create(_ context.Context, item Item) (Item, error) {
	for _, existing := range m.items {
		if existing.DepartmentID == item.DepartmentID && existing.ItemNumber == item.ItemNumber {
			return Item{}, fmt.Errorf("item number %s already exists: %w", item.ItemNumber, shared.ErrConflict)
		}
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryItemRepo) Get(_ context.Context, id uuid.UUID) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

func (m *memoryItemRepo) inScope(item Item, departmentIDs []uuid.UUID) bool {
	if len(departmentIDs) == 0 {
		return true
	}
	for _, id := range departmentIDs {
		if item.DepartmentID == id {
			return true
		}
	}
	return false
}

func (m *memoryItemRepo) ListByDepartments(_ context.Context, departmentIDs []uuid.UUID) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if m.inScope(item, departmentIDs) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryItemRepo) Update(_ context.Context, id uuid.UUID, update ItemUpdate) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	if update.ItemName != nil {
		item.ItemName = *update.ItemName
	}
	if update.Quantity != nil {
		item.Quantity = *update.Quantity
	}
	if update.MinQuantity != nil {
		item.MinQuantity = *update.MinQuantity
	}
	if update.Location != nil {
		item.Location = *update.Location
	}
	item.UpdatedAt = time.Now()
	m.items[id] = item
	return item, nil
}

func (m *memoryItemRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *memoryItemRepo) Stats(_ context.Context, departmentIDs []uuid.UUID) (Stats, error) {
	var stats Stats
	locations := map[string]struct{}{}
	for _, item := range m.items {
		if !m.inScope(item, departmentIDs) {
			continue
		}
		stats.TotalItems++
		stats.TotalQuantity += item.Quantity
		if item.Location != "" {
			locations[item.Location] = struct{}{}
		}
		if item.LowStock() {
			stats.LowStockItems++
		}
	}
	stats.UniqueLocations = len(locations)
	return stats, nil
}

type inventoryFixture struct {
	repo    *memoryItemRepo
	service *Service
	dept    uuid.UUID
	staff   identity.Principal
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	t.Helper()
	dept := uuid.New()
	repo := newMemoryItemRepo()
	return &inventoryFixture{
		repo:    repo,
		service: NewService(repo),
		dept:    dept,
		staff:   identity.Principal{UserID: uuid.New(), Role: identity.RoleStaff, PrimaryDepartment: &dept},
	}
}

func (f *inventoryFixture) addItem(t *testing.T, number string, qty, minQty float64, location string) Item {
	t.Helper()
	item, err := f.service.Create(context.Background(), f.staff, CreateInput{
		DepartmentID: f.dept,
		ItemNumber:   number,
		ItemName:     "Filter element " + number,
		Quantity:     qty,
		MinQuantity:  minQty,
		Location:     location,
	})
	require.NoError(t, err)
	return item
}

func TestCreateRejectsDuplicateItemNumber(t *testing.T) {
	f := newInventoryFixture(t)
	f.addItem(t, "FLT-100", 10, 2, "A1")

	_, err := f.service.Create(context.Background(), f.staff, CreateInput{
		DepartmentID: f.dept,
		ItemNumber:   "FLT-100",
		ItemName:     "Duplicate",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateValidatesQuantities(t *testing.T) {
	f := newInventoryFixture(t)
	_, err := f.service.Create(context.Background(), f.staff, CreateInput{
		DepartmentID: f.dept,
		ItemNumber:   "FLT-101",
		ItemName:     "Filter",
		Quantity:     -1,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListScopedByDepartment(t *testing.T) {
	f := newInventoryFixture(t)
	f.addItem(t, "FLT-100", 10, 2, "A1")

	foreign := Item{ID: uuid.New(), DepartmentID: uuid.New(), ItemNumber: "XX-1", ItemName: "Foreign"}
	f.repo.items[foreign.ID] = foreign

	items, err := f.service.List(context.Background(), f.staff)
	require.NoError(t, err)
	require.Len(t, items, 1)

	admin := identity.Principal{UserID: uuid.New(), Role: identity.RoleAdmin}
	items, err = f.service.List(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestUpdateOutsideScopeForbidden(t *testing.T) {
	f := newInventoryFixture(t)
	item := f.addItem(t, "FLT-100", 10, 2, "A1")

	otherDept := uuid.New()
	outsider := identity.Principal{UserID: uuid.New(), Role: identity.RoleStaff, PrimaryDepartment: &otherDept}

	qty := 5.0
	_, err := f.service.Update(context.Background(), outsider, item.ID, ItemUpdate{Quantity: &qty})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteRequiresSupervisor(t *testing.T) {
	f := newInventoryFixture(t)
	item := f.addItem(t, "FLT-100", 10, 2, "A1")

	err := f.service.Delete(context.Background(), f.staff, item.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	supervisor := identity.Principal{UserID: uuid.New(), Role: identity.RoleSupervisor, PrimaryDepartment: &f.dept}
	require.NoError(t, f.service.Delete(context.Background(), supervisor, item.ID))
	require.NotContains(t, f.repo.items, item.ID)
}

func TestStatsCountsLowStockAndLocations(t *testing.T) {
	f := newInventoryFixture(t)
	f.addItem(t, "FLT-100", 10, 2, "A1")
	f.addItem(t, "FLT-101", 2, 2, "A1")
	f.addItem(t, "FLT-102", 0, 5, "B2")

	stats, err := f.service.Stats(context.Background(), f.staff)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalItems)
	require.Equal(t, 12.0, stats.TotalQuantity)
	require.Equal(t, 2, stats.UniqueLocations)
	require.Equal(t, 2, stats.LowStockItems, "quantity at or below minimum counts as low stock")
}
