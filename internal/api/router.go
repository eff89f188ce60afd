package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kudisafe/escrow/internal/escrow"
	"github.com/kudisafe/escrow/internal/identity"
)

// NewRouter creates the Chi router with all API routes mounted. Admin routes
// sit behind the role-checking middleware; everything else is open.
func NewRouter(
	logger *slog.Logger,
	db *sql.DB,
	escrowSvc *escrow.Service,
	identitySvc *identity.Service,
	tokens *identity.TokenIssuer,
	allowedOrigins []string,
) http.Handler {
	h := &Handlers{
		escrowSvc:   escrowSvc,
		identitySvc: identitySvc,
		db:          db,
		logger:      logger,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
	}
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Identity.
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		// Transactions.
		r.Post("/transactions", h.CreateTransaction)
		r.Get("/transactions/{userId}", h.ListUserTransactions)
		r.Put("/transactions/{id}/confirm-delivery", h.ConfirmDelivery)
		r.Put("/transactions/{id}/dispute", h.OpenDispute)

		// Payments.
		r.Post("/payments/confirm", h.SubmitPayment)

		// Admin.
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(tokens))
			r.Get("/data", h.AdminData)
			r.Put("/verify", h.AdminVerify)
			r.Put("/release", h.AdminRelease)
			r.Put("/refund", h.AdminRefund)
			r.Delete("/delete-payment/{txId}", h.AdminDelete)
		})
	})

	return r
}
