package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, menu_item_id, order_date, meal_type, quantity, amount_paid, created_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.MenuItemID,
		&o.OrderDate,
		&o.MealType,
		&o.Quantity,
		&o.AmountPaid,
		&o.CreatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (user_id, menu_item_id, order_date, meal_type, quantity, amount_paid)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID     uuid.UUID
	MenuItemID uuid.UUID
	OrderDate  pgtype.Date
	MealType   string
	Quantity   int32
	AmountPaid pgtype.Numeric
}

// CreateOrder inserts the ledger row. The UNIQUE (user_id, order_date,
// meal_type) constraint rejects a second order for the same meal slot.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID, arg.MenuItemID, arg.OrderDate, arg.MealType, arg.Quantity, arg.AmountPaid)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const deleteOrder = `
DELETE FROM orders WHERE id = $1 RETURNING id`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrder, id).Scan(&deleted)
	return deleted, err
}

const listOrdersByUserAndDateRange = `
SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1 AND order_date >= $2 AND order_date <= $3
ORDER BY order_date, meal_type`

type ListOrdersByUserAndDateRangeParams struct {
	UserID    uuid.UUID
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

func (q *Queries) ListOrdersByUserAndDateRange(ctx context.Context, arg ListOrdersByUserAndDateRangeParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUserAndDateRange, arg.UserID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrdersWithDetails = `
SELECT o.id, o.user_id, o.menu_item_id, o.order_date, o.meal_type, o.quantity, o.amount_paid, o.created_at,
       m.name AS menu_item_name,
       p.display_name, p.room_number
FROM orders o
JOIN menu_items m ON m.id = o.menu_item_id
JOIN profiles p ON p.id = o.user_id
WHERE o.order_date >= $1 AND o.order_date <= $2
ORDER BY o.order_date, o.meal_type, p.display_name`

type ListOrdersWithDetailsParams struct {
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

type ListOrdersWithDetailsRow struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	MenuItemID   uuid.UUID
	OrderDate    pgtype.Date
	MealType     string
	Quantity     int32
	AmountPaid   pgtype.Numeric
	CreatedAt    time.Time
	MenuItemName string
	DisplayName  string
	RoomNumber   pgtype.Text
}

// ListOrdersWithDetails is the staff view: orders in a range with the
// menu item and the ordering member embedded for display.
func (q *Queries) ListOrdersWithDetails(ctx context.Context, arg ListOrdersWithDetailsParams) ([]ListOrdersWithDetailsRow, error) {
	rows, err := q.db.Query(ctx, listOrdersWithDetails, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrdersWithDetailsRow
	for rows.Next() {
		var r ListOrdersWithDetailsRow
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.MenuItemID,
			&r.OrderDate,
			&r.MealType,
			&r.Quantity,
			&r.AmountPaid,
			&r.CreatedAt,
			&r.MenuItemName,
			&r.DisplayName,
			&r.RoomNumber,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getOrderTotals = `
SELECT COUNT(*),
       COALESCE(SUM(amount_paid), 0),
       COUNT(*) FILTER (WHERE meal_type = 'lunch'),
       COUNT(*) FILTER (WHERE meal_type = 'dinner')
FROM orders`

type GetOrderTotalsRow struct {
	OrderCount   int64
	TotalRevenue pgtype.Numeric
	LunchCount   int64
	DinnerCount  int64
}

func (q *Queries) GetOrderTotals(ctx context.Context) (GetOrderTotalsRow, error) {
	var r GetOrderTotalsRow
	err := q.db.QueryRow(ctx, getOrderTotals).Scan(&r.OrderCount, &r.TotalRevenue, &r.LunchCount, &r.DinnerCount)
	return r, err
}

const getOrderTotalsForDate = `
SELECT COUNT(*),
       COALESCE(SUM(amount_paid), 0),
       COUNT(*) FILTER (WHERE meal_type = 'lunch'),
       COUNT(*) FILTER (WHERE meal_type = 'dinner')
FROM orders
WHERE order_date = $1`

func (q *Queries) GetOrderTotalsForDate(ctx context.Context, orderDate pgtype.Date) (GetOrderTotalsRow, error) {
	var r GetOrderTotalsRow
	err := q.db.QueryRow(ctx, getOrderTotalsForDate, orderDate).Scan(&r.OrderCount, &r.TotalRevenue, &r.LunchCount, &r.DinnerCount)
	return r, err
}

const getRevenueSince = `
SELECT COALESCE(SUM(amount_paid), 0) FROM orders WHERE order_date >= $1`

func (q *Queries) GetRevenueSince(ctx context.Context, startDate pgtype.Date) (pgtype.Numeric, error) {
	var revenue pgtype.Numeric
	err := q.db.QueryRow(ctx, getRevenueSince, startDate).Scan(&revenue)
	return revenue, err
}
