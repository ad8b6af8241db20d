package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearbrook-health/patient-portal/internal/http/handlers"
	httpmiddleware "github.com/clearbrook-health/patient-portal/internal/http/middleware"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Booking         *handlers.BookingHandler
	AdminSync       *handlers.AdminSyncHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/clients/lookup", cfg.Booking.LookupClient)
		r.Get("/availability", cfg.Booking.ListAvailability)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		r.Post("/clients/sync", cfg.AdminSync.ForceSync)
		r.Get("/clients/sync/status", cfg.AdminSync.SyncStatus)
	})

	return r
}
