package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/enum"
	"github.com/dingding1842/nextmeal/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProfileStore defines the database methods needed by profile handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, id uuid.UUID) (database.Profile, error)
	UpdateProfileSelf(ctx context.Context, arg database.UpdateProfileSelfParams) (database.Profile, error)
	ListMembers(ctx context.Context) ([]database.Profile, error)
	ListWaitlist(ctx context.Context) ([]database.Profile, error)
	ApproveProfile(ctx context.Context, arg database.ApproveProfileParams) (database.Profile, error)
	UpdateMember(ctx context.Context, arg database.UpdateMemberParams) (database.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// ProfileHandler handles self-service profile, member, and waitlist endpoints.
type ProfileHandler struct {
	store ProfileStore
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store ProfileStore) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// RegisterSelfRoutes registers the endpoints any authenticated account
// may call on its own profile.
func (h *ProfileHandler) RegisterSelfRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Put("/me", h.UpdateMe)
}

// RegisterMemberRoutes registers member management endpoints.
// Expected to be mounted behind admin/accountant role middleware.
func (h *ProfileHandler) RegisterMemberRoutes(r chi.Router) {
	r.Get("/", h.ListMembers)
	r.Put("/{id}", h.UpdateMember)
}

// RegisterWaitlistRoutes registers approval endpoints. Admin only.
func (h *ProfileHandler) RegisterWaitlistRoutes(r chi.Router) {
	r.Get("/", h.ListWaitlist)
	r.Post("/{id}/approve", h.Approve)
	r.Delete("/{id}", h.Reject)
}

// --- Request / Response types ---

type updateSelfRequest struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

type approveRequest struct {
	RoomNumber string `json:"room_number"`
	Balance    string `json:"balance"`
}

type updateMemberRequest struct {
	Role       string `json:"role"`
	RoomNumber string `json:"room_number"`
	Balance    string `json:"balance"`
}

type profileResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Phone       *string   `json:"phone"`
	Role        string    `json:"role"`
	RoomNumber  *string   `json:"room_number"`
	Balance     string    `json:"balance"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProfileResponse(p database.Profile) profileResponse {
	resp := profileResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Balance:     numericString(p.Balance),
		IsApproved:  p.IsApproved,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Phone.Valid {
		resp.Phone = &p.Phone.String
	}
	if p.RoomNumber.Valid {
		resp.RoomNumber = &p.RoomNumber.String
	}
	return resp
}

// --- Handlers ---

// Me returns the caller's own profile, balance included.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	profile, err := h.store.GetProfileByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		log.Printf("ERROR: get profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateMe changes the caller's display name and phone. Role, room, and
// balance are not editable here.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req updateSelfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name is required"})
		return
	}

	phone := pgtype.Text{}
	if req.Phone != "" {
		phone = pgtype.Text{String: req.Phone, Valid: true}
	}

	profile, err := h.store.UpdateProfileSelf(r.Context(), database.UpdateProfileSelfParams{
		ID:          claims.UserID,
		DisplayName: req.DisplayName,
		Phone:       phone,
	})
	if err != nil {
		log.Printf("ERROR: update profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// ListMembers returns all approved profiles.
func (h *ProfileHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListMembers(r.Context())
	if err != nil {
		log.Printf("ERROR: list members: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]profileResponse, len(members))
	for i, m := range members {
		resp[i] = toProfileResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateMember changes a member's role, room, and balance.
func (h *ProfileHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member ID"})
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !isValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil || balance.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "balance must be a non-negative number"})
		return
	}

	roomNumber := pgtype.Text{}
	if req.RoomNumber != "" {
		roomNumber = pgtype.Text{String: req.RoomNumber, Valid: true}
	}

	profile, err := h.store.UpdateMember(r.Context(), database.UpdateMemberParams{
		ID:         memberID,
		Role:       req.Role,
		RoomNumber: roomNumber,
		Balance:    decimalToNumericParam(balance),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
			return
		}
		log.Printf("ERROR: update member: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// ListWaitlist returns profiles pending approval, oldest first.
func (h *ProfileHandler) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.ListWaitlist(r.Context())
	if err != nil {
		log.Printf("ERROR: list waitlist: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]profileResponse, len(pending))
	for i, p := range pending {
		resp[i] = toProfileResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Approve admits a waitlisted account: room number and an opening balance
// have to be set together with the approval flag.
func (h *ProfileHandler) Approve(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profile ID"})
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.RoomNumber == "" || req.Balance == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "room_number and balance are required"})
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil || balance.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "balance must be a non-negative number"})
		return
	}

	profile, err := h.store.ApproveProfile(r.Context(), database.ApproveProfileParams{
		ID:         profileID,
		RoomNumber: pgtype.Text{String: req.RoomNumber, Valid: true},
		Balance:    decimalToNumericParam(balance),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending profile with this ID"})
			return
		}
		log.Printf("ERROR: approve profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// Reject deletes a waitlisted account.
func (h *ProfileHandler) Reject(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profile ID"})
		return
	}

	if _, err := h.store.DeleteProfile(r.Context(), profileID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		log.Printf("ERROR: reject profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func isValidRole(role string) bool {
	switch role {
	case enum.RoleTenant, enum.RoleChef,
		enum.RoleAccountant, enum.RoleAdmin:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0"
	}
	return d.StringFixed(2)
}

func decimalToNumericParam(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
