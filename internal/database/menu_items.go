package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, meal_type, is_available, created_by, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...interface{}) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.MealType,
		&m.IsAvailable,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

const listMenuItems = `
SELECT ` + menuItemColumns + ` FROM menu_items
ORDER BY meal_type, name`

// ListMenuItems returns every item, available or not. Staff menu view.
func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listAvailableMenuItems = `
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE is_available = true
ORDER BY meal_type, name`

func (q *Queries) ListAvailableMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listAvailableMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listAvailableMenuItemsByMealType = `
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE is_available = true AND meal_type = $1
ORDER BY name`

func (q *Queries) ListAvailableMenuItemsByMealType(ctx context.Context, mealType string) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listAvailableMenuItemsByMealType, mealType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItemForOrder = `
SELECT id, meal_type, is_available FROM menu_items WHERE id = $1`

type GetMenuItemForOrderRow struct {
	ID          uuid.UUID
	MealType    string
	IsAvailable bool
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	var r GetMenuItemForOrderRow
	err := q.db.QueryRow(ctx, getMenuItemForOrder, id).Scan(&r.ID, &r.MealType, &r.IsAvailable)
	return r, err
}

const createMenuItem = `
INSERT INTO menu_items (name, meal_type, is_available, created_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	Name        string
	MealType    string
	IsAvailable bool
	CreatedBy   pgtype.UUID
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.Name, arg.MealType, arg.IsAvailable, arg.CreatedBy)
	return scanMenuItem(row)
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, meal_type = $3, is_available = $4, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	MealType    string
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem, arg.ID, arg.Name, arg.MealType, arg.IsAvailable)
	return scanMenuItem(row)
}

const deleteMenuItem = `
DELETE FROM menu_items WHERE id = $1 RETURNING id`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteMenuItem, id).Scan(&deleted)
	return deleted, err
}
