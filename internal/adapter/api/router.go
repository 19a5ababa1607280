package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/chat-relay/internal/adapter/api/handler"
	"github.com/V4T54L/chat-relay/internal/adapter/api/middleware"
	"github.com/V4T54L/chat-relay/internal/pkg/config"
	"github.com/V4T54L/chat-relay/internal/usecase"
)

// NewRouter creates and configures the public HTTP router of the relay.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	tenants *usecase.TenantAdmin,
	sessions *usecase.SessionManager,
	gateway *usecase.DispatchGateway,
	limiter *middleware.RateLimiter,
) http.Handler {
	mux := http.NewServeMux()

	sendHandler := handler.NewSendHandler(gateway, tenants, logger, cfg.MaxBodyBytes, cfg.SendTimeout)
	sessionHandler := handler.NewSessionHandler(tenants, sessions, logger)

	// Routes
	mux.Handle("POST /send-message", sendHandler)
	mux.HandleFunc("POST /sessions/login", sessionHandler.Login)
	mux.HandleFunc("GET /sessions/{tenant}/status", sessionHandler.Status)
	mux.HandleFunc("GET /sessions/{tenant}/qr", sessionHandler.QR)
	mux.HandleFunc("POST /sessions/{tenant}/logout", sessionHandler.Logout)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var h http.Handler = mux
	h = middleware.BodyLimit(cfg.MaxBodyBytes)(h)
	h = limiter.Middleware(h)
	return middleware.Logging(logger)(h)
}
