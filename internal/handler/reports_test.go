package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/handler"
	"github.com/dingding1842/nextmeal/internal/middleware"
	"github.com/dingding1842/nextmeal/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock store ---

type mockStatsStore struct {
	totals      database.GetOrderTotalsRow
	todayTotals database.GetOrderTotalsRow
	revenue     pgtype.Numeric

	gotDate  pgtype.Date
	gotSince pgtype.Date
}

func (m *mockStatsStore) GetOrderTotals(_ context.Context) (database.GetOrderTotalsRow, error) {
	return m.totals, nil
}

func (m *mockStatsStore) GetOrderTotalsForDate(_ context.Context, orderDate pgtype.Date) (database.GetOrderTotalsRow, error) {
	m.gotDate = orderDate
	return m.todayTotals, nil
}

func (m *mockStatsStore) GetRevenueSince(_ context.Context, startDate pgtype.Date) (pgtype.Numeric, error) {
	m.gotSince = startDate
	return m.revenue, nil
}

func setupStatsRouter(store *mockStatsStore) *chi.Mux {
	h := handler.NewStatsHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/stats", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestStatsOverview_ReturnsTotals(t *testing.T) {
	store := &mockStatsStore{
		totals: database.GetOrderTotalsRow{
			OrderCount:   42,
			TotalRevenue: testNumeric("4200.00"),
			LunchCount:   25,
			DinnerCount:  17,
		},
		todayTotals: database.GetOrderTotalsRow{
			OrderCount:   3,
			TotalRevenue: testNumeric("300.00"),
			LunchCount:   2,
			DinnerCount:  1,
		},
		revenue: testNumeric("1500.00"),
	}
	router := setupStatsRouter(store)

	rr := doAuthRequest(t, router, "GET", "/stats", nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	allTime := resp["all_time"].(map[string]interface{})
	if allTime["order_count"] != float64(42) {
		t.Errorf("all_time.order_count: got %v, want 42", allTime["order_count"])
	}
	if allTime["total_revenue"] != "4200.00" {
		t.Errorf("all_time.total_revenue: got %v, want 4200.00", allTime["total_revenue"])
	}
	if allTime["lunch_count"] != float64(25) || allTime["dinner_count"] != float64(17) {
		t.Errorf("meal breakdown: got %v/%v, want 25/17", allTime["lunch_count"], allTime["dinner_count"])
	}

	today := resp["today"].(map[string]interface{})
	if today["order_count"] != float64(3) {
		t.Errorf("today.order_count: got %v, want 3", today["order_count"])
	}

	if resp["month_to_date_revenue"] != "1500.00" {
		t.Errorf("month_to_date_revenue: got %v, want 1500.00", resp["month_to_date_revenue"])
	}
}

func TestStatsOverview_QueriesDiningHallToday(t *testing.T) {
	store := &mockStatsStore{}
	router := setupStatsRouter(store)

	rr := doAuthRequest(t, router, "GET", "/stats", nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	now := time.Now().In(service.MessZone)
	wantToday := now.Format("2006-01-02")
	if got := store.gotDate.Time.Format("2006-01-02"); got != wantToday {
		t.Errorf("today date: got %s, want %s", got, wantToday)
	}

	wantMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	if got := store.gotSince.Time.Format("2006-01-02"); got != wantMonthStart {
		t.Errorf("month start: got %s, want %s", got, wantMonthStart)
	}

	resp := decodeResponse(t, rr)
	if resp["month_to_date_since"] != wantMonthStart {
		t.Errorf("month_to_date_since: got %v, want %s", resp["month_to_date_since"], wantMonthStart)
	}
}
