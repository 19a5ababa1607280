package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// TenantRegistry is the administrative side of tenant administration.
type TenantRegistry interface {
	Register(ctx context.Context, tenantID, secret string) (domain.SessionInfo, error)
	Delete(ctx context.Context, tenantID string) error
	Tenants(ctx context.Context) ([]string, error)
}

// SessionControl lists and steers registered sessions.
type SessionControl interface {
	Sessions() []domain.SessionInfo
	Session(tenantID string) (domain.SessionInfo, bool)
	Destroy(tenantID string) bool
	Reconnect(ctx context.Context, tenantID string) error
}

type registerRequest struct {
	Tenant string `json:"tenant"`
	Secret string `json:"secret"`
}

// TenantHandler serves the admin tenant and session routes.
type TenantHandler struct {
	tenants  TenantRegistry
	sessions SessionControl
	logger   *slog.Logger
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(tenants TenantRegistry, sessions SessionControl, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{tenants: tenants, sessions: sessions, logger: logger}
}

// ListTenants handles GET /admin/tenants.
func (h *TenantHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	ids, err := h.tenants.Tenants(r.Context())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string][]string{"tenants": ids})
}

// CreateTenant handles POST /admin/tenants.
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, h.logger, r, &req) {
		return
	}

	info, err := h.tenants.Register(r.Context(), req.Tenant, req.Secret)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("tenant registered", "tenant_id", req.Tenant)
	respondWithJSON(w, h.logger, http.StatusCreated, info)
}

// DeleteTenant handles DELETE /admin/tenants/{tenant}.
func (h *TenantHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.Delete(r.Context(), r.PathValue("tenant")); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /admin/sessions.
func (h *TenantHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.sessions.Sessions())
}

// GetSession handles GET /admin/sessions/{tenant}.
func (h *TenantHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, ok := h.sessions.Session(r.PathValue("tenant"))
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, domain.ErrSessionNotFound.Error())
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

// DestroySession handles DELETE /admin/sessions/{tenant}. Stored state is
// kept so the tenant can be restored without a new QR scan.
func (h *TenantHandler) DestroySession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Destroy(r.PathValue("tenant")) {
		respondWithError(w, h.logger, http.StatusNotFound, domain.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconnectSession handles POST /admin/sessions/{tenant}/reconnect.
func (h *TenantHandler) ReconnectSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reconnect(r.Context(), r.PathValue("tenant")); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
