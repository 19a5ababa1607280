package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// ErrEmptySecret is returned when a tenant is registered without a secret.
var ErrEmptySecret = errors.New("secret must not be empty")

// CredentialService manages tenant secrets. Mutations for the same tenant
// are serialised so concurrent admin calls cannot lose updates.
type CredentialService struct {
	repo   domain.CredentialRepository
	locks  *keyedMutex
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(repo domain.CredentialRepository, logger *slog.Logger) *CredentialService {
	return &CredentialService{
		repo:   repo,
		locks:  newKeyedMutex(),
		logger: logger.With("component", "credential_service"),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Create stores a bcrypt hash of secret for tenantID.
func (s *CredentialService) Create(ctx context.Context, tenantID, secret string) error {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if secret == "" {
		return ErrEmptySecret
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	if err := s.repo.Create(ctx, domain.Credential{
		TenantID:   tenantID,
		SecretHash: string(hash),
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		return err
	}
	s.logger.Info("tenant credential created", "tenant_id", tenantID)
	return nil
}

// Verify checks secret against the stored credential. Unknown tenants and
// wrong secrets both yield domain.ErrCredentialInvalid.
func (s *CredentialService) Verify(ctx context.Context, tenantID, secret string) error {
	if tenantID == "" || secret == "" {
		return domain.ErrCredentialInvalid
	}
	cred, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCredentialInvalid
		}
		return fmt.Errorf("load credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return domain.ErrCredentialInvalid
	}
	return nil
}

// Delete removes the credential of tenantID.
func (s *CredentialService) Delete(ctx context.Context, tenantID string) error {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	if err := s.repo.Delete(ctx, tenantID); err != nil {
		return err
	}
	s.logger.Info("tenant credential deleted", "tenant_id", tenantID)
	return nil
}

// List returns the identifiers of all tenants with a credential.
func (s *CredentialService) List(ctx context.Context) ([]string, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(creds))
	for i, c := range creds {
		ids[i] = c.TenantID
	}
	return ids, nil
}
