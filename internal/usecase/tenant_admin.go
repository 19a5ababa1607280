package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// TenantAdmin ties credentials to sessions for the administrative and
// tenant-facing entry points. Credential checks always happen before any
// session lookup.
type TenantAdmin struct {
	credentials *CredentialService
	sessions    *SessionManager
	storage     domain.SessionStorage
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewTenantAdmin creates a TenantAdmin.
func NewTenantAdmin(credentials *CredentialService, sessions *SessionManager, storage domain.SessionStorage, logger *slog.Logger) *TenantAdmin {
	return &TenantAdmin{
		credentials: credentials,
		sessions:    sessions,
		storage:     storage,
		locks:       newKeyedMutex(),
		logger:      logger.With("component", "tenant_admin"),
	}
}

// Register creates the tenant credential and activates its session.
func (a *TenantAdmin) Register(ctx context.Context, tenantID, secret string) (domain.SessionInfo, error) {
	unlock := a.locks.Lock(tenantID)
	defer unlock()

	if err := a.credentials.Create(ctx, tenantID, secret); err != nil {
		return domain.SessionInfo{}, err
	}
	info, err := a.sessions.Create(ctx, tenantID)
	if err != nil {
		// Roll back so the tenant can be registered again.
		if derr := a.credentials.Delete(ctx, tenantID); derr != nil {
			a.logger.Error("failed to roll back credential", "tenant_id", tenantID, "error", derr)
			return domain.SessionInfo{}, errors.Join(err, derr)
		}
		return domain.SessionInfo{}, err
	}
	return info, nil
}

// Delete tears down the session, its stored state and the credential.
func (a *TenantAdmin) Delete(ctx context.Context, tenantID string) error {
	unlock := a.locks.Lock(tenantID)
	defer unlock()

	if err := a.sessions.Discard(tenantID); err != nil {
		return err
	}
	if err := a.credentials.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	a.logger.Info("tenant deleted", "tenant_id", tenantID)
	return nil
}

// Authorize verifies a tenant secret.
func (a *TenantAdmin) Authorize(ctx context.Context, tenantID, secret string) error {
	return a.credentials.Verify(ctx, tenantID, secret)
}

// Login verifies the secret and creates the session if none is registered.
func (a *TenantAdmin) Login(ctx context.Context, tenantID, secret string) (domain.SessionInfo, error) {
	unlock := a.locks.Lock(tenantID)
	defer unlock()

	if err := a.credentials.Verify(ctx, tenantID, secret); err != nil {
		return domain.SessionInfo{}, err
	}
	return a.sessions.Create(ctx, tenantID)
}

// Logout verifies the secret, destroys the session and discards its stored
// state so the next login requires a new QR scan.
func (a *TenantAdmin) Logout(ctx context.Context, tenantID, secret string) error {
	unlock := a.locks.Lock(tenantID)
	defer unlock()

	if err := a.credentials.Verify(ctx, tenantID, secret); err != nil {
		return err
	}
	if err := a.sessions.Discard(tenantID); err != nil {
		return err
	}
	a.logger.Info("tenant logged out", "tenant_id", tenantID)
	return nil
}

// Tenants lists the registered tenant identifiers.
func (a *TenantAdmin) Tenants(ctx context.Context) ([]string, error) {
	return a.credentials.List(ctx)
}

// RestoreSessions recreates sessions for every tenant that still has stored
// transport state, so authenticated tenants resume without a new QR scan.
func (a *TenantAdmin) RestoreSessions(ctx context.Context) (int, error) {
	ids, err := a.credentials.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}
	restored := 0
	var errs []error
	for _, id := range ids {
		if !a.storage.Exists(id) {
			continue
		}
		if _, err := a.sessions.Create(ctx, id); err != nil {
			a.logger.Error("failed to restore session", "tenant_id", id, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		restored++
	}
	a.logger.Info("sessions restored", "count", restored, "tenants", len(ids))
	return restored, errors.Join(errs...)
}
