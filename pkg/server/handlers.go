package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/export"
	"github.com/nicktill/crowdwait/pkg/httpx"
	"github.com/nicktill/crowdwait/pkg/server/monitor"
	"github.com/nicktill/crowdwait/pkg/storage"
)

// Version is reported by the health check
const Version = "1.0.0"

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string                `json:"status"`
	Version     string                `json:"version"`
	Uptime      string                `json:"uptime"`
	Backend     string                `json:"backend"`
	Subscribers int                   `json:"subscribers"`
	Refresh     monitor.RefreshStatus `json:"refresh"`
}

// StatsResponse combines store statistics with disk usage.
type StatsResponse struct {
	*storage.Stats
	Disk *monitor.DiskUsage `json:"disk,omitempty"`
}

// handleHealth returns service health status.
func handleHealth(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := app.RefreshMonitor.Status()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !status.Healthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:      overallStatus,
			Version:     Version,
			Uptime:      Uptime().Round(time.Second).String(),
			Backend:     app.Config.Storage.Backend,
			Subscribers: app.Hub.Clients(),
			Refresh:     status,
		})
	}
}

// handleStats returns storage statistics.
func handleStats(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
		defer cancel()

		stats, err := app.Store.Stats(ctx)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		resp := StatsResponse{Stats: stats}
		if app.Config.Storage.Backend != "memory" {
			if usage, err := app.DiskMonitor.Usage(); err == nil {
				resp.Disk = &usage
			}
		}
		httpx.RespondJSON(w, http.StatusOK, resp)
	}
}

// handleEstimates serves the live snapshot. ?location= narrows it to one
// display name.
func handleEstimates(snapshot *export.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := snapshot.Load()
		if c == nil {
			httpx.RespondErrorString(w, http.StatusServiceUnavailable, "no estimates yet, waiting for the first refresh")
			return
		}

		name := r.URL.Query().Get("location")
		if name == "" {
			httpx.RespondJSON(w, http.StatusOK, c)
			return
		}

		estimates, ok := c.Estimates[name]
		if !ok {
			httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("no estimates for %q", name))
			return
		}
		narrowed := *c
		narrowed.Estimates = export.Estimates{name: estimates}
		httpx.RespondJSON(w, http.StatusOK, &narrowed)
	}
}

// handleRefresh runs one refresh synchronously.
func handleRefresh(refresher *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.RefreshTimeout)
		defer cancel()

		summary, err := refresher.RunOnce(ctx)
		if errors.Is(err, ErrRefreshInProgress) {
			httpx.RespondError(w, http.StatusConflict, err)
			return
		}
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, summary)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, app *App) {
	router.Use(corsMiddleware(app.Config.Server.Port))

	api := router.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/health", handleHealth(app)).Methods("GET")
	api.HandleFunc("/stats", handleStats(app)).Methods("GET")

	// Estimates
	api.HandleFunc("/estimates", handleEstimates(app.Snapshot)).Methods("GET")
	api.HandleFunc("/refresh", handleRefresh(app.Refresher)).Methods("POST")
	api.HandleFunc("/ws", app.Hub.HandleWebSocket(app.Snapshot)).Methods("GET")

	// Backup and restore
	api.HandleFunc("/export", app.ExportHandler.HandleExport).Methods("GET")
	api.HandleFunc("/import", app.ExportHandler.HandleImport).Methods("POST")

	// Prometheus-compatible scrape endpoint
	router.HandleFunc("/metrics", handleMetrics(app)).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
