package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/hdwallet/internal/api/handlers"
	"github.com/Fantasim/hdwallet/internal/api/middleware"
	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/ledger"
	"github.com/Fantasim/hdwallet/internal/metrics"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(database *db.DB, svc *ledger.Service, cfg *config.Config, m *metrics.Metrics) (chi.Router, error) {
	allow, err := middleware.NewIPAllowlist(cfg.AllowedIPs)
	if err != nil {
		return nil, err
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(m))
	r.Use(chimw.Recoverer)
	r.Use(allow.Middleware)

	slog.Info("router initialized",
		"middleware", []string{"realIP", "requestLogging", "recoverer", "ipAllowlist"},
		"rateLimitRPS", cfg.RateLimitRPS,
		"rateLimitBurst", cfg.RateLimitBurst,
	)

	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(config.APITimeout))

		r.Get("/health", handlers.HealthHandler(database, Version))
		r.Get("/assets", handlers.ListAssets(svc.Registry()))
		r.Get("/validate", handlers.ValidateAddress(svc.Registry(), database))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/addresses", handlers.ListAddresses(svc, m))

			// Endpoints that derive keys are rate limited per client.
			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware)
				r.Post("/wallet", handlers.InitializeWallet(svc, m))
				r.Post("/addresses/next", handlers.NextAddresses(svc, m))
				r.Post("/addresses/verify", handlers.VerifyAddresses(svc, m))
			})
		})
	})

	return r, nil
}

// NewServer wraps handler in an http.Server with the configured timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       config.ServerReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.ServerWriteTimeout,
		IdleTimeout:       config.ServerIdleTimeout,
		MaxHeaderBytes:    config.ServerMaxHeaderBytes,
	}
}
