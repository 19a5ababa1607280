package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// DispatchInspector reads the dispatch audit stream.
type DispatchInspector interface {
	Overview(ctx context.Context) (*domain.StreamOverview, error)
	Recent(ctx context.Context, count int64) ([]domain.DispatchRecord, error)
	PendingSummary(ctx context.Context, group string) (*domain.PendingMessageSummary, error)
}

// AdminHandler handles HTTP requests for dispatch stream inspection.
type AdminHandler struct {
	uc     DispatchInspector
	group  string
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. uc may be nil when the
// dispatch audit stream is disabled.
func NewAdminHandler(uc DispatchInspector, group string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, group: group, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetOverview handles requests for the stream length and consumer groups.
// GET /admin/dispatches/stream
func (h *AdminHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	overview, err := h.uc.Overview(r.Context())
	if err != nil {
		h.logger.Error("failed to get stream overview", "error", err)
		respondWithError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, overview)
}

// GetRecent handles requests for the newest dispatch records.
// GET /admin/dispatches?count={count}
func (h *AdminHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var count int64
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		var err error
		count, err = strconv.ParseInt(countStr, 10, 64)
		if err != nil || count <= 0 {
			respondWithError(w, h.logger, http.StatusBadRequest, "invalid count parameter")
			return
		}
	}

	records, err := h.uc.Recent(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to read recent dispatches", "error", err)
		respondWithError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, records)
}

// GetPendingSummary handles requests for records not yet archived.
// GET /admin/dispatches/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	summary, err := h.uc.PendingSummary(r.Context(), h.group)
	if err != nil {
		h.logger.Error("failed to get pending summary", "error", err)
		respondWithError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

func (h *AdminHandler) enabled(w http.ResponseWriter) bool {
	if h.uc == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, "dispatch audit stream is disabled")
		return false
	}
	return true
}
