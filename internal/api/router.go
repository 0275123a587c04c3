// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"petmarket/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(marketplaceHandler *handler.MarketplaceHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/pets", func(r chi.Router) {
		r.Post("/", marketplaceHandler.RegisterPet)
		r.Get("/{petID}", marketplaceHandler.GetPet)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/{userID}/credit", marketplaceHandler.Credit)
		r.Get("/{userID}/balance", marketplaceHandler.GetBalance)
	})

	// Purchase and cancel act on a listing, so they hang off its resource.
	r.Route("/listings", func(r chi.Router) {
		r.Post("/", marketplaceHandler.CreateListing)
		r.Get("/{listingID}", marketplaceHandler.GetListing)
		r.Post("/{listingID}/purchase", marketplaceHandler.Purchase)
		r.Post("/{listingID}/cancel", marketplaceHandler.Cancel)
	})

	logger.Debug("HTTP routes registered")
	return r
}
