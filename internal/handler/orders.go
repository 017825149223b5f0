package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/middleware"
	"github.com/dingding1842/nextmeal/internal/service"
	"github.com/dingding1842/nextmeal/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*service.CancelOrderResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	ListOrdersByUserAndDateRange(ctx context.Context, arg database.ListOrdersByUserAndDateRangeParams) ([]database.Order, error)
	ListOrdersWithDetails(ctx context.Context, arg database.ListOrdersWithDetailsParams) ([]database.ListOrdersWithDetailsRow, error)
}

// OrderNotifier pushes order events to the kitchen live feed.
// Satisfied by *ws.Hub; nil disables broadcasting.
type OrderNotifier interface {
	Broadcast(event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	notifier OrderNotifier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, notifier OrderNotifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers the tenant ordering endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListMine)
	r.Post("/", h.Place)
	r.Delete("/{id}", h.Cancel)
}

// RegisterStaffRoutes registers the aggregated order view.
// Expected to be mounted behind staff role middleware.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.ListAll)
}

// --- Request / Response types ---

type placeOrderRequest struct {
	MenuItemID string `json:"menu_item_id"`
	OrderDate  string `json:"order_date"`
	MealType   string `json:"meal_type"`
}

type orderResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	OrderDate  string    `json:"order_date"`
	MealType   string    `json:"meal_type"`
	Quantity   int32     `json:"quantity"`
	AmountPaid string    `json:"amount_paid"`
	CreatedAt  time.Time `json:"created_at"`
}

type placeOrderResponse struct {
	Order   orderResponse `json:"order"`
	Balance string        `json:"balance"`
}

type cancelOrderResponse struct {
	OrderID  uuid.UUID `json:"order_id"`
	Refunded string    `json:"refunded"`
	Balance  string    `json:"balance"`
}

type orderDetailResponse struct {
	orderResponse
	MenuItemName string  `json:"menu_item_name"`
	DisplayName  string  `json:"display_name"`
	RoomNumber   *string `json:"room_number"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		MenuItemID: o.MenuItemID,
		OrderDate:  o.OrderDate.Time.Format("2006-01-02"),
		MealType:   o.MealType,
		Quantity:   o.Quantity,
		AmountPaid: numericString(o.AmountPaid),
		CreatedAt:  o.CreatedAt,
	}
}

// --- Handlers ---

// Place handles POST /orders: the guarded order-plus-debit pair.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.MenuItemID == "" || req.OrderDate == "" || req.MealType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu_item_id, order_date, and meal_type are required"})
		return
	}

	result, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:     claims.UserID,
		MenuItemID: req.MenuItemID,
		OrderDate:  req.OrderDate,
		MealType:   req.MealType,
	})
	if err != nil {
		status, ok := placeOrderErrorStatus(err)
		if ok {
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: place order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := placeOrderResponse{
		Order:   toOrderResponse(result.Order),
		Balance: result.Balance.StringFixed(2),
	}
	h.broadcast("order.placed", resp.Order)
	writeJSON(w, http.StatusCreated, resp)
}

// Cancel handles DELETE /orders/{id}: delete plus refund.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.svc.CancelOrder(r.Context(), claims.UserID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrNotOrderOwner):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := cancelOrderResponse{
		OrderID:  result.OrderID,
		Refunded: result.Refunded.StringFixed(2),
		Balance:  result.Balance.StringFixed(2),
	}
	// The kitchen feed only needs to know the slot freed up; member
	// balances stay between the member and the accountant.
	h.broadcast("order.cancelled", map[string]interface{}{"order_id": result.OrderID})
	writeJSON(w, http.StatusOK, resp)
}

// ListMine returns the caller's orders for a date range, defaulting to
// the current month. Backs the tenant calendar view.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	startDate, endDate, err := parseOrderDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.store.ListOrdersByUserAndDateRange(r.Context(), database.ListOrdersByUserAndDateRangeParams{
		UserID:    claims.UserID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAll returns every order in a date range with the item and member
// embedded. Backs the chef/accountant month view.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseOrderDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.ListOrdersWithDetails(r.Context(), database.ListOrdersWithDetailsParams{
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		log.Printf("ERROR: list orders with details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderDetailResponse, len(rows))
	for i, row := range rows {
		resp[i] = orderDetailResponse{
			orderResponse: orderResponse{
				ID:         row.ID,
				UserID:     row.UserID,
				MenuItemID: row.MenuItemID,
				OrderDate:  row.OrderDate.Time.Format("2006-01-02"),
				MealType:   row.MealType,
				Quantity:   row.Quantity,
				AmountPaid: numericString(row.AmountPaid),
				CreatedAt:  row.CreatedAt,
			},
			MenuItemName: row.MenuItemName,
			DisplayName:  row.DisplayName,
		}
		if row.RoomNumber.Valid {
			resp[i].RoomNumber = &row.RoomNumber.String
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) broadcast(eventType string, payload interface{}) {
	if h.notifier == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.notifier.Broadcast(ws.Event{Type: eventType, Payload: data})
}

// placeOrderErrorStatus maps service errors to HTTP statuses. The bool
// reports whether the error is a known, user-facing one.
func placeOrderErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidMealType),
		errors.Is(err, service.ErrInvalidOrderDate),
		errors.Is(err, service.ErrInvalidMenuItemID):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrLunchWindowClosed),
		errors.Is(err, service.ErrDinnerWindowClosed),
		errors.Is(err, service.ErrMenuItemUnavailable),
		errors.Is(err, service.ErrMealTypeMismatch):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, service.ErrMealSlotTaken):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrMenuItemNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}

// parseOrderDateRange reads start_date/end_date query params (inclusive,
// YYYY-MM-DD). Defaults to the current month on the dining-hall clock.
func parseOrderDateRange(r *http.Request) (pgtype.Date, pgtype.Date, error) {
	const layout = "2006-01-02"

	now := time.Now().In(service.MessZone)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return pgtype.Date{}, pgtype.Date{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return pgtype.Date{}, pgtype.Date{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t
	}

	if start.After(end) {
		return pgtype.Date{}, pgtype.Date{}, fmt.Errorf("start_date must not be after end_date")
	}

	return pgtype.Date{Time: start, Valid: true}, pgtype.Date{Time: end, Valid: true}, nil
}
