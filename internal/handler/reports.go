package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// StatsStore defines the database methods needed by the statistics handler.
// Satisfied by *database.Queries; narrow interface for testability.
type StatsStore interface {
	GetOrderTotals(ctx context.Context) (database.GetOrderTotalsRow, error)
	GetOrderTotalsForDate(ctx context.Context, orderDate pgtype.Date) (database.GetOrderTotalsRow, error)
	GetRevenueSince(ctx context.Context, startDate pgtype.Date) (pgtype.Numeric, error)
}

// StatsHandler handles the dashboard statistics endpoint.
type StatsHandler struct {
	store StatsStore
	now   func() time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(store StatsStore) *StatsHandler {
	return &StatsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers the staff statistics endpoints.
// Expected to be mounted behind staff role middleware.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Overview)
}

type mealBreakdownResponse struct {
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
	LunchCount   int64  `json:"lunch_count"`
	DinnerCount  int64  `json:"dinner_count"`
}

type statsOverviewResponse struct {
	AllTime          mealBreakdownResponse `json:"all_time"`
	Today            mealBreakdownResponse `json:"today"`
	MonthToDate      string                `json:"month_to_date_revenue"`
	MonthToDateSince string                `json:"month_to_date_since"`
}

// Overview returns all-time, today, and month-to-date order totals.
// "Today" and the month boundary follow the dining-hall clock.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.GetOrderTotals(r.Context())
	if err != nil {
		log.Printf("ERROR: get order totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now().In(service.MessZone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	todayTotals, err := h.store.GetOrderTotalsForDate(r.Context(), pgtype.Date{Time: today, Valid: true})
	if err != nil {
		log.Printf("ERROR: get order totals for date: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	monthRevenue, err := h.store.GetRevenueSince(r.Context(), pgtype.Date{Time: monthStart, Valid: true})
	if err != nil {
		log.Printf("ERROR: get revenue since: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, statsOverviewResponse{
		AllTime:          toMealBreakdown(totals),
		Today:            toMealBreakdown(todayTotals),
		MonthToDate:      numericString(monthRevenue),
		MonthToDateSince: monthStart.Format("2006-01-02"),
	})
}

func toMealBreakdown(row database.GetOrderTotalsRow) mealBreakdownResponse {
	return mealBreakdownResponse{
		OrderCount:   row.OrderCount,
		TotalRevenue: numericString(row.TotalRevenue),
		LunchCount:   row.LunchCount,
		DinnerCount:  row.DinnerCount,
	}
}
