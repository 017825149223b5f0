package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Every meal costs a flat 100 taka, deducted at placement and refunded in
// full at cancellation.
var MealPrice = decimal.NewFromInt(100)

// The dining hall runs on one clock: GMT+6, regardless of where the
// client device thinks it is.
var MessZone = time.FixedZone("GMT+6", 6*3600)

// Same-day cutoffs, half-open on the closing side: at exactly 10:00 the
// lunch window is closed, at exactly 16:00 the dinner window is closed.
const (
	lunchCutoffHour  = 10
	dinnerCutoffHour = 16
)

const dateLayout = "2006-01-02"

// Errors returned by the order service.
var (
	ErrInvalidMealType     = errors.New("invalid meal_type")
	ErrInvalidOrderDate    = errors.New("invalid order_date")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLunchWindowClosed   = errors.New("lunch ordering closed for today")
	ErrDinnerWindowClosed  = errors.New("dinner ordering closed for today")
	ErrMealSlotTaken       = errors.New("meal already ordered for this date")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrMealTypeMismatch    = errors.New("menu item does not belong to this meal type")
	ErrOrderNotFound       = errors.New("order not found")
	ErrNotOrderOwner       = errors.New("order belongs to another member")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to place and cancel orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetProfileByID(ctx context.Context, id uuid.UUID) (database.Profile, error)
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	DebitBalance(ctx context.Context, arg database.DebitBalanceParams) (database.Profile, error)
	CreditBalance(ctx context.Context, arg database.CreditBalanceParams) (database.Profile, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// PlaceOrderRequest is the validated input for placing an order.
type PlaceOrderRequest struct {
	UserID     uuid.UUID
	MenuItemID string
	OrderDate  string // YYYY-MM-DD
	MealType   string
}

// PlaceOrderResult is the created order plus the balance it left behind.
type PlaceOrderResult struct {
	Order   database.Order
	Balance decimal.Decimal
}

// CancelOrderResult reports the removed order and the refunded balance.
type CancelOrderResult struct {
	OrderID  uuid.UUID
	Refunded decimal.Decimal
	Balance  decimal.Decimal
}

// OrderService is the order ledger: it decides whether an order may be
// placed or cancelled and moves the order row and the balance together,
// inside one transaction.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	now      func() time.Time
}

// NewOrderService creates a new OrderService using the real clock.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

// WithClock replaces the time source. Tests pin the clock with this
// instead of depending on wall time.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// PlaceOrder checks eligibility and creates the order row together with
// the balance debit. Preconditions run in a fixed sequence: balance
// sufficiency first, then the same-day cutoff window, then menu item
// validity. Both writes share a transaction, so a failed debit never
// leaves an orphaned order behind.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.MealType != enum.MealTypeLunch && req.MealType != enum.MealTypeDinner {
		return nil, ErrInvalidMealType
	}

	orderDate, err := time.Parse(dateLayout, req.OrderDate)
	if err != nil {
		return nil, ErrInvalidOrderDate
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		return nil, ErrInvalidMenuItemID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Balance sufficiency comes first so an out-of-funds member sees the
	// balance error even when the window is also closed.
	profile, err := store.GetProfileByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if numericToDecimal(profile.Balance).LessThan(MealPrice) {
		return nil, ErrInsufficientBalance
	}

	if err := s.checkWindow(orderDate, req.MealType); err != nil {
		return nil, err
	}

	// Re-validated here rather than trusting the client's pre-filtered
	// selection: the item may have been removed or marked unavailable
	// between selection and submission.
	item, err := store.GetMenuItemForOrder(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	if !item.IsAvailable {
		return nil, ErrMenuItemUnavailable
	}
	if item.MealType != req.MealType {
		return nil, ErrMealTypeMismatch
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		UserID:     req.UserID,
		MenuItemID: menuItemID,
		OrderDate:  pgtype.Date{Time: orderDate, Valid: true},
		MealType:   req.MealType,
		Quantity:   1,
		AmountPaid: decimalToNumeric(MealPrice),
	})
	if err != nil {
		if isMealSlotConflict(err) {
			return nil, ErrMealSlotTaken
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Guarded decrement: no row back means another session spent the
	// balance between our read and this write, and the insert above
	// rolls back with us.
	updated, err := store.DebitBalance(ctx, database.DebitBalanceParams{
		ID:     req.UserID,
		Amount: decimalToNumeric(MealPrice),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PlaceOrderResult{
		Order:   order,
		Balance: numericToDecimal(updated.Balance),
	}, nil
}

// CancelOrder deletes the order and refunds what was actually paid for
// it, taken from the stored row rather than from the caller. Any order
// may be cancelled by its owner at any time; no window applies.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*CancelOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}

	if _, err := store.DeleteOrder(ctx, orderID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}

	refund := numericToDecimal(order.AmountPaid)
	updated, err := store.CreditBalance(ctx, database.CreditBalanceParams{
		ID:     userID,
		Amount: decimalToNumeric(refund),
	})
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CancelOrderResult{
		OrderID:  order.ID,
		Refunded: refund,
		Balance:  numericToDecimal(updated.Balance),
	}, nil
}

// checkWindow applies the same-day cutoffs. Future dates pass
// unconditionally.
func (s *OrderService) checkWindow(orderDate time.Time, mealType string) error {
	now := s.now().In(MessZone)
	if orderDate.Format(dateLayout) != now.Format(dateLayout) {
		return nil
	}
	switch mealType {
	case enum.MealTypeLunch:
		if now.Hour() >= lunchCutoffHour {
			return ErrLunchWindowClosed
		}
	case enum.MealTypeDinner:
		if now.Hour() >= dinnerCutoffHour {
			return ErrDinnerWindowClosed
		}
	}
	return nil
}

// isMealSlotConflict checks if the error is the unique constraint on
// (user_id, order_date, meal_type) — pgconn error code 23505.
func isMealSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_user_id_order_date_meal_type_key"
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
