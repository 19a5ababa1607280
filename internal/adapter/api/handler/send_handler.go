package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/chat-relay/internal/adapter/sanitize"
	"github.com/V4T54L/chat-relay/internal/domain"
)

// Dispatcher sends one message through a tenant's session.
type Dispatcher interface {
	Send(ctx context.Context, tenantID, target, content string) (domain.DispatchRecord, error)
}

// TenantAuthorizer checks a tenant secret.
type TenantAuthorizer interface {
	Authorize(ctx context.Context, tenantID, secret string) error
}

type sendRequest struct {
	Tenant string `json:"tenant"`
	Secret string `json:"secret"`
	To     string `json:"to"`
	Msg    string `json:"msg"`
}

type sendResponse struct {
	Success    bool   `json:"success"`
	To         string `json:"to"`
	DispatchID string `json:"dispatch_id"`
}

// SendHandler handles POST /send-message.
type SendHandler struct {
	dispatcher  Dispatcher
	auth        TenantAuthorizer
	logger      *slog.Logger
	maxBodySize int64
	sendTimeout time.Duration
}

// NewSendHandler creates a new SendHandler.
func NewSendHandler(dispatcher Dispatcher, auth TenantAuthorizer, logger *slog.Logger, maxBodySize int64, sendTimeout time.Duration) *SendHandler {
	return &SendHandler{
		dispatcher:  dispatcher,
		auth:        auth,
		logger:      logger,
		maxBodySize: maxBodySize,
		sendTimeout: sendTimeout,
	}
}

// ServeHTTP validates and authenticates the request, then performs a single
// synchronous send.
func (h *SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req sendRequest
	if !decodeJSON(w, h.logger, r, &req) {
		return
	}

	content, err := sanitize.Content(req.Msg)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "message is empty")
		return
	}
	if strings.TrimSpace(req.To) == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "recipient is required")
		return
	}

	if err := h.auth.Authorize(r.Context(), req.Tenant, req.Secret); err != nil {
		h.logger.Warn("send rejected", "tenant_id", req.Tenant, "remote_addr", r.RemoteAddr, "error", err)
		respondWithDomainError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	if h.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
	}

	rec, err := h.dispatcher.Send(ctx, req.Tenant, req.To, content)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, sendResponse{
		Success:    true,
		To:         rec.ChatID,
		DispatchID: rec.ID,
	})
}
