package domain

import (
	"context"
	"time"
)

// Credential is the durable secret record of one tenant.
type Credential struct {
	TenantID   string    `json:"tenant_id"`
	SecretHash string    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// CredentialRepository persists tenant credentials.
type CredentialRepository interface {
	// Get returns ErrNotFound when the tenant has no credential.
	Get(ctx context.Context, tenantID string) (*Credential, error)

	// Create returns ErrTenantExists when a credential is already stored.
	Create(ctx context.Context, cred Credential) error

	// Delete is a no-op when the tenant has no credential.
	Delete(ctx context.Context, tenantID string) error

	List(ctx context.Context) ([]Credential, error)
}

// SessionStorage manages the per-tenant location the transport keeps its
// authentication state in.
type SessionStorage interface {
	// Location returns (creating if needed) the storage path for a tenant.
	Location(tenantID string) (string, error)

	// Exists reports whether stored state is present for a tenant.
	Exists(tenantID string) bool

	// Remove deletes stored state. Safe to call when absent.
	Remove(tenantID string) error
}

// DispatchBuffer is the durable stream dispatch records are appended to.
type DispatchBuffer interface {
	// Append adds a single dispatch record to the stream.
	Append(ctx context.Context, record DispatchRecord) error

	// ReadBatch reads records for a consumer of the given group.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]DispatchRecord, error)

	// Acknowledge marks records as archived.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error
}

// DispatchSink is the long-term store for dispatch records.
type DispatchSink interface {
	WriteBatch(ctx context.Context, records []DispatchRecord) error
}

// StreamAdminRepository inspects the dispatch stream.
type StreamAdminRepository interface {
	Overview(ctx context.Context, stream string) (*StreamOverview, error)
	Recent(ctx context.Context, stream string, count int64) ([]DispatchRecord, error)
	PendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
}

// SessionEventPublisher receives session state changes.
type SessionEventPublisher interface {
	Publish(event SessionEvent)
}

// Notifier raises operator alerts.
type Notifier interface {
	Notify(ctx context.Context, tenantID, subject, message string) error
}
