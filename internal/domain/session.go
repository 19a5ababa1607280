package domain

import (
	"regexp"
	"strings"
	"time"
)

// Status is the lifecycle state of a tenant session.
type Status string

const (
	StatusUninitialized  Status = "UNINITIALIZED"
	StatusAwaitingQR     Status = "AWAITING_QR"
	StatusAuthenticating Status = "AUTHENTICATING"
	StatusReady          Status = "READY"
	StatusDisconnected   Status = "DISCONNECTED"
	StatusRetired        Status = "RETIRED"
)

// Terminal reports whether the status ends a session instance.
func (s Status) Terminal() bool {
	return s == StatusRetired
}

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateTenantID checks that id is usable both as a registry key and as
// a storage directory name.
func ValidateTenantID(id string) error {
	if !tenantIDPattern.MatchString(id) {
		return ErrInvalidTenantID
	}
	return nil
}

// QRToken is a short-lived value the tenant scans to authenticate.
type QRToken struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is unusable at t.
func (q QRToken) Expired(t time.Time) bool {
	return !t.Before(q.ExpiresAt)
}

// SessionInfo is a point-in-time projection of a live session.
type SessionInfo struct {
	TenantID        string           `json:"tenant_id"`
	Status          Status           `json:"status"`
	QRAttempts      int              `json:"qr_attempts"`
	QRExpiresAt     *time.Time       `json:"qr_expires_at,omitempty"`
	LastAuthFailure string           `json:"last_auth_failure,omitempty"`
	LastDisconnect  DisconnectReason `json:"last_disconnect,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SessionEvent is published whenever a session changes state.
type SessionEvent struct {
	TenantID string    `json:"tenant_id"`
	Status   Status    `json:"status"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// DisconnectReason is the closed set of reasons a transport may report when
// the link to the messaging network drops.
type DisconnectReason string

const (
	ReasonLoggedOut      DisconnectReason = "logged_out"
	ReasonInvalidSession DisconnectReason = "invalid_session"
	ReasonConnectFailed  DisconnectReason = "connect_failed"
	ReasonTransient      DisconnectReason = "transient"
)

// Unrecoverable reports whether the stored session can no longer be resumed
// and the tenant must scan a new QR code.
func (r DisconnectReason) Unrecoverable() bool {
	return r == ReasonLoggedOut || r == ReasonInvalidSession
}

var disconnectReasons = map[string]DisconnectReason{
	"logged_out":          ReasonLoggedOut,
	"logout":              ReasonLoggedOut,
	"unpaired":            ReasonLoggedOut,
	"invalid_session":     ReasonInvalidSession,
	"session_invalidated": ReasonInvalidSession,
	"connect_failed":      ReasonConnectFailed,
}

// ParseDisconnectReason maps a raw transport reason onto the closed
// enumeration. Matching is exact after case and separator folding; anything
// unknown is transient so that a recoverable session is never discarded.
func ParseDisconnectReason(raw string) DisconnectReason {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if r, ok := disconnectReasons[key]; ok {
		return r
	}
	return ReasonTransient
}
