package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// TenantSecretHeader carries the tenant secret on tenant-scoped routes.
const TenantSecretHeader = "X-Tenant-Secret"

// TenantSessions is the tenant-facing side of tenant administration.
type TenantSessions interface {
	TenantAuthorizer
	Login(ctx context.Context, tenantID, secret string) (domain.SessionInfo, error)
	Logout(ctx context.Context, tenantID, secret string) error
}

// SessionQuery reads session state.
type SessionQuery interface {
	Status(tenantID string) domain.Status
	Session(tenantID string) (domain.SessionInfo, bool)
	LiveQRToken(tenantID string) (domain.QRToken, bool)
}

type loginRequest struct {
	Tenant string `json:"tenant"`
	Secret string `json:"secret"`
}

type statusResponse struct {
	TenantID string              `json:"tenant_id"`
	Status   domain.Status       `json:"status"`
	Session  *domain.SessionInfo `json:"session,omitempty"`
}

// SessionHandler serves the tenant session routes.
type SessionHandler struct {
	tenants  TenantSessions
	sessions SessionQuery
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(tenants TenantSessions, sessions SessionQuery, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{tenants: tenants, sessions: sessions, logger: logger}
}

// Login verifies the tenant secret and starts the session if needed.
// POST /sessions/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, h.logger, r, &req) {
		return
	}

	info, err := h.tenants.Login(r.Context(), req.Tenant, req.Secret)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

// Status reports the session status of a tenant.
// GET /sessions/{tenant}/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	resp := statusResponse{TenantID: tenantID, Status: h.sessions.Status(tenantID)}
	if info, ok := h.sessions.Session(tenantID); ok {
		resp.Status = info.Status
		resp.Session = &info
	}
	respondWithJSON(w, h.logger, http.StatusOK, resp)
}

// QR returns the live QR token, if any.
// GET /sessions/{tenant}/qr
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	tok, ok := h.sessions.LiveQRToken(tenantID)
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, "no QR code available")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, tok)
}

// Logout ends the tenant session and discards its stored state.
// POST /sessions/{tenant}/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if err := h.tenants.Logout(r.Context(), tenantID, r.Header.Get(TenantSecretHeader)); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.PathValue("tenant")
	if err := h.tenants.Authorize(r.Context(), tenantID, r.Header.Get(TenantSecretHeader)); err != nil {
		respondWithDomainError(w, h.logger, err)
		return "", false
	}
	return tenantID, true
}
