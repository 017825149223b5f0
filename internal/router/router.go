package router

import (
	"log"
	"net/http"

	"github.com/dingding1842/nextmeal/internal/config"
	"github.com/dingding1842/nextmeal/internal/database"
	"github.com/dingding1842/nextmeal/internal/enum"
	"github.com/dingding1842/nextmeal/internal/handler"
	mw "github.com/dingding1842/nextmeal/internal/middleware"
	"github.com/dingding1842/nextmeal/internal/service"
	"github.com/dingding1842/nextmeal/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, approval gating, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // Vite dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket kitchen feed (handles auth internally via query param)
	r.Get("/ws/kitchen/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Own profile is reachable even while awaiting approval
		profileHandler := handler.NewProfileHandler(queries)
		profileHandler.RegisterSelfRoutes(r)

		// Approved accounts only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireApproved)

			// Menu (read)
			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menu", menuHandler.RegisterRoutes)

			// Orders
			orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
				return database.New(db)
			})
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Menu management (chef and admin)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleChef, enum.RoleAdmin))
				r.Route("/menu/manage", menuHandler.RegisterManageRoutes)
			})

			// Staff views (any staff role)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleChef, enum.RoleAccountant, enum.RoleAdmin))

				r.Route("/kitchen/orders", orderHandler.RegisterStaffRoutes)

				statsHandler := handler.NewStatsHandler(queries)
				r.Route("/stats", statsHandler.RegisterRoutes)
			})

			// Member management (accountant and admin)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAccountant, enum.RoleAdmin))
				r.Route("/members", profileHandler.RegisterMemberRoutes)
			})

			// Waitlist approval (admin only)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin))
				r.Route("/waitlist", profileHandler.RegisterWaitlistRoutes)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
