package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/chat-relay/internal/adapter/api/handler"
	"github.com/V4T54L/chat-relay/internal/adapter/api/middleware"
)

// AdminDeps groups what the admin router serves.
type AdminDeps struct {
	APIKey        string
	Gatherer      prometheus.Gatherer
	Tenants       handler.TenantRegistry
	Sessions      handler.SessionControl
	Events        *handler.SSEBroker
	Dispatches    handler.DispatchInspector // nil when the audit stream is disabled
	DispatchGroup string
}

// NewAdminRouter creates and configures the HTTP router for admin operations.
// /health and /metrics are open; everything under /admin/ requires the
// admin API key.
func NewAdminRouter(deps AdminDeps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(deps.Dispatches, deps.DispatchGroup, logger)
	tenantHandler := handler.NewTenantHandler(deps.Tenants, deps.Sessions, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	secured := http.NewServeMux()

	// Tenants
	secured.HandleFunc("GET /admin/tenants", tenantHandler.ListTenants)
	secured.HandleFunc("POST /admin/tenants", tenantHandler.CreateTenant)
	secured.HandleFunc("DELETE /admin/tenants/{tenant}", tenantHandler.DeleteTenant)

	// Sessions
	secured.HandleFunc("GET /admin/sessions", tenantHandler.ListSessions)
	secured.HandleFunc("GET /admin/sessions/{tenant}", tenantHandler.GetSession)
	secured.HandleFunc("DELETE /admin/sessions/{tenant}", tenantHandler.DestroySession)
	secured.HandleFunc("POST /admin/sessions/{tenant}/reconnect", tenantHandler.ReconnectSession)
	secured.Handle("GET /admin/events", deps.Events)

	// Dispatch audit stream
	secured.HandleFunc("GET /admin/dispatches", adminHandler.GetRecent)
	secured.HandleFunc("GET /admin/dispatches/stream", adminHandler.GetOverview)
	secured.HandleFunc("GET /admin/dispatches/pending", adminHandler.GetPendingSummary)

	mux.Handle("/admin/", middleware.AdminAuth(deps.APIKey, logger)(secured))

	return middleware.Logging(logger)(mux)
}
