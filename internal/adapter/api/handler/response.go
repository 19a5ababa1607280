package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/chat-relay/internal/domain"
	"github.com/V4T54L/chat-relay/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, logger *slog.Logger, code int, msg string) {
	respondWithJSON(w, logger, code, errorResponse{Error: msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCredentialInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionNotReady), errors.Is(err, domain.ErrTenantExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRecipientInvalid),
		errors.Is(err, domain.ErrInvalidTenantID),
		errors.Is(err, usecase.ErrEmptySecret):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError writes the mapped status. Unclassified errors are
// logged and hidden from the caller.
func respondWithDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		respondWithError(w, logger, code, "internal server error")
		return
	}
	respondWithError(w, logger, code, err.Error())
}

// decodeJSON reads a JSON body, reporting oversize bodies separately.
func decodeJSON(w http.ResponseWriter, logger *slog.Logger, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithError(w, logger, http.StatusRequestEntityTooLarge, "payload too large")
			return false
		}
		respondWithError(w, logger, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
