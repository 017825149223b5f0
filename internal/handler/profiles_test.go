package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dingding1842/nextmeal/internal/auth"
	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/enum"
	"github.com/dingding1842/nextmeal/internal/handler"
	"github.com/dingding1842/nextmeal/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock store ---

type mockProfileStore struct {
	profiles map[uuid.UUID]database.Profile
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[uuid.UUID]database.Profile)}
}

func (m *mockProfileStore) GetProfileByID(_ context.Context, id uuid.UUID) (database.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return database.Profile{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockProfileStore) UpdateProfileSelf(_ context.Context, arg database.UpdateProfileSelfParams) (database.Profile, error) {
	p, ok := m.profiles[arg.ID]
	if !ok {
		return database.Profile{}, pgx.ErrNoRows
	}
	p.DisplayName = arg.DisplayName
	p.Phone = arg.Phone
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfileStore) ListMembers(_ context.Context) ([]database.Profile, error) {
	var result []database.Profile
	for _, p := range m.profiles {
		if p.IsApproved {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProfileStore) ListWaitlist(_ context.Context) ([]database.Profile, error) {
	var result []database.Profile
	for _, p := range m.profiles {
		if !p.IsApproved {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProfileStore) ApproveProfile(_ context.Context, arg database.ApproveProfileParams) (database.Profile, error) {
	p, ok := m.profiles[arg.ID]
	if !ok || p.IsApproved {
		return database.Profile{}, pgx.ErrNoRows
	}
	p.IsApproved = true
	p.RoomNumber = arg.RoomNumber
	p.Balance = arg.Balance
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfileStore) UpdateMember(_ context.Context, arg database.UpdateMemberParams) (database.Profile, error) {
	p, ok := m.profiles[arg.ID]
	if !ok || !p.IsApproved {
		return database.Profile{}, pgx.ErrNoRows
	}
	p.Role = arg.Role
	p.RoomNumber = arg.RoomNumber
	p.Balance = arg.Balance
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockProfileStore) DeleteProfile(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.profiles[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.profiles, id)
	return id, nil
}

// --- Helpers ---

func setupProfileRouter(store *mockProfileStore) *chi.Mux {
	h := handler.NewProfileHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	h.RegisterSelfRoutes(r)
	r.Route("/members", h.RegisterMemberRoutes)
	r.Route("/waitlist", h.RegisterWaitlistRoutes)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.Role, claims.IsApproved)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func tenantClaims(userID uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: userID, Role: enum.RoleTenant, IsApproved: true}
}

func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), Role: enum.RoleAdmin, IsApproved: true}
}

func storeProfile(store *mockProfileStore, approved bool) database.Profile {
	var balance pgtype.Numeric
	_ = balance.Scan("500.00")
	p := database.Profile{
		ID:          uuid.New(),
		Email:       uuid.NewString()[:8] + "@test.com",
		DisplayName: "Member",
		Role:        enum.RoleTenant,
		Balance:     balance,
		IsApproved:  approved,
	}
	if approved {
		p.RoomNumber = pgtype.Text{String: "A-101", Valid: true}
	}
	store.profiles[p.ID] = p
	return p
}

// --- Me tests ---

func TestMe_ReturnsOwnProfile(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "GET", "/me", nil, tenantClaims(profile.ID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["id"] != profile.ID.String() {
		t.Errorf("id: got %v, want %s", resp["id"], profile.ID)
	}
	if resp["balance"] != "500.00" {
		t.Errorf("balance: got %v, want 500.00", resp["balance"])
	}
	if _, exists := resp["hashed_password"]; exists {
		t.Error("response must not include hashed_password")
	}
}

func TestMe_ProfileGone(t *testing.T) {
	store := newMockProfileStore()
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "GET", "/me", nil, tenantClaims(uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestMe_NoToken(t *testing.T) {
	store := newMockProfileStore()
	router := setupProfileRouter(store)

	rr := doRequest(t, router, "GET", "/me", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestUpdateMe_Valid(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/me", map[string]string{
		"display_name": "Renamed",
		"phone":        "01712345678",
	}, tenantClaims(profile.ID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["display_name"] != "Renamed" {
		t.Errorf("display_name: got %v, want Renamed", resp["display_name"])
	}
	if resp["phone"] != "01712345678" {
		t.Errorf("phone: got %v, want 01712345678", resp["phone"])
	}
}

func TestUpdateMe_MissingDisplayName(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/me", map[string]string{
		"phone": "01712345678",
	}, tenantClaims(profile.ID))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Member tests ---

func TestListMembers_OnlyApproved(t *testing.T) {
	store := newMockProfileStore()
	storeProfile(store, true)
	storeProfile(store, true)
	storeProfile(store, false)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "GET", "/members", nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeListResponse(t, rr)
	if len(resp) != 2 {
		t.Fatalf("expected 2 members, got %d", len(resp))
	}
	for _, member := range resp {
		if member["is_approved"] != true {
			t.Error("member list must only contain approved profiles")
		}
	}
}

func TestUpdateMember_Valid(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/members/"+profile.ID.String(), map[string]string{
		"role":        "chef",
		"room_number": "B-202",
		"balance":     "750",
	}, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["role"] != "chef" {
		t.Errorf("role: got %v, want chef", resp["role"])
	}
	if resp["room_number"] != "B-202" {
		t.Errorf("room_number: got %v, want B-202", resp["room_number"])
	}
	if resp["balance"] != "750.00" {
		t.Errorf("balance: got %v, want 750.00", resp["balance"])
	}
}

func TestUpdateMember_InvalidRole(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/members/"+profile.ID.String(), map[string]string{
		"role":    "superuser",
		"balance": "750",
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateMember_NegativeBalance(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/members/"+profile.ID.String(), map[string]string{
		"role":    "tenant",
		"balance": "-50",
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateMember_NotFound(t *testing.T) {
	store := newMockProfileStore()
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "PUT", "/members/"+uuid.NewString(), map[string]string{
		"role":    "tenant",
		"balance": "100",
	}, adminClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Waitlist tests ---

func TestListWaitlist_OnlyPending(t *testing.T) {
	store := newMockProfileStore()
	storeProfile(store, true)
	storeProfile(store, false)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "GET", "/waitlist", nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 pending profile, got %d", len(resp))
	}
	if resp[0]["is_approved"] != false {
		t.Error("waitlist must only contain unapproved profiles")
	}
}

func TestApprove_SetsRoomAndBalance(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, false)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "POST", "/waitlist/"+profile.ID.String()+"/approve", map[string]string{
		"room_number": "C-303",
		"balance":     "1000",
	}, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["is_approved"] != true {
		t.Error("expected is_approved=true after approval")
	}
	if resp["room_number"] != "C-303" {
		t.Errorf("room_number: got %v, want C-303", resp["room_number"])
	}
	if resp["balance"] != "1000.00" {
		t.Errorf("balance: got %v, want 1000.00", resp["balance"])
	}
}

func TestApprove_MissingRoomOrBalance(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, false)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "POST", "/waitlist/"+profile.ID.String()+"/approve", map[string]string{
		"room_number": "C-303",
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestApprove_AlreadyApproved(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, true)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "POST", "/waitlist/"+profile.ID.String()+"/approve", map[string]string{
		"room_number": "C-303",
		"balance":     "1000",
	}, adminClaims())

	// Approval targets pending rows only; an approved one is not found
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestReject_DeletesProfile(t *testing.T) {
	store := newMockProfileStore()
	profile := storeProfile(store, false)
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "DELETE", "/waitlist/"+profile.ID.String(), nil, adminClaims())

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}

	if _, exists := store.profiles[profile.ID]; exists {
		t.Error("expected profile removed from store")
	}
}

func TestReject_NotFound(t *testing.T) {
	store := newMockProfileStore()
	router := setupProfileRouter(store)

	rr := doAuthRequest(t, router, "DELETE", "/waitlist/"+uuid.NewString(), nil, adminClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
