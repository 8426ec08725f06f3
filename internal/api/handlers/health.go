package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/config"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns a handler for the GET /api/health endpoint.
func HealthHandler(db Pinger, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		if err := db.Ping(r.Context()); err != nil {
			slog.Error("health check: database unreachable", "error", err)
			httputil.Error(w, http.StatusServiceUnavailable, config.ErrorDatabase, "database unreachable")
			return
		}

		httputil.JSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	}
}
