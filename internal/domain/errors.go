package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")

	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotReady   = errors.New("session not ready")
	ErrQRBudgetExhausted = errors.New("qr attempt budget exhausted")
	ErrRecipientInvalid  = errors.New("recipient invalid")
	ErrTransport         = errors.New("transport error")
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrTenantExists      = errors.New("tenant already exists")
	ErrInvalidTenantID   = errors.New("invalid tenant id")
	ErrConnectionClosed  = errors.New("connection closed")
)
