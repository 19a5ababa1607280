package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/domain"
)

const uniqueViolation = "23505"

type cacheEntry struct {
	cred      *domain.Credential
	expiresAt time.Time
}

// CredentialRepository implements domain.CredentialRepository using PostgreSQL
// as the source of truth and an in-memory, time-based cache for lookups.
type CredentialRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.RelayMetrics
}

// NewCredentialRepository creates a new instance of the PostgreSQL credential repository.
func NewCredentialRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.RelayMetrics) *CredentialRepository {
	return &CredentialRepository{
		db:       db,
		logger:   logger.With("component", "postgres_credential_repository"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// Get returns the credential for tenantID. It first checks the local cache
// and falls back to the database if the entry is missing or expired.
// Misses are cached too, so unknown tenants do not hit the database on
// every request.
func (r *CredentialRepository) Get(ctx context.Context, tenantID string) (*domain.Credential, error) {
	// 1. Check cache with a read lock
	r.mu.RLock()
	entry, found := r.cache[tenantID]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.CredentialCacheHits.Inc()
		}
		return entry.lookup()
	}

	// 2. Cache miss or expired, query DB and update cache with a write lock
	if r.metrics != nil {
		r.metrics.CredentialCacheMiss.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check cache in case another goroutine populated it while waiting for the lock
	entry, found = r.cache[tenantID]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.lookup()
	}

	// 3. Query the database
	var cred domain.Credential
	query := `SELECT tenant_id, secret_hash, created_at FROM tenant_credentials WHERE tenant_id = $1`
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&cred.TenantID, &cred.SecretHash, &cred.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r.cache[tenantID] = cacheEntry{expiresAt: time.Now().Add(r.cacheTTL)}
		return nil, domain.ErrNotFound
	case err != nil:
		r.logger.Error("failed to load credential from database", "error", err)
		// Don't cache errors, let the next request retry from the DB
		return nil, fmt.Errorf("load credential: %w", err)
	}

	// 4. Update cache
	r.cache[tenantID] = cacheEntry{cred: &cred, expiresAt: time.Now().Add(r.cacheTTL)}
	c := cred
	return &c, nil
}

func (e cacheEntry) lookup() (*domain.Credential, error) {
	if e.cred == nil {
		return nil, domain.ErrNotFound
	}
	c := *e.cred
	return &c, nil
}

// Create inserts a credential, returning domain.ErrTenantExists on conflict.
func (r *CredentialRepository) Create(ctx context.Context, cred domain.Credential) error {
	query := `INSERT INTO tenant_credentials (tenant_id, secret_hash, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, cred.TenantID, cred.SecretHash, cred.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrTenantExists
		}
		return fmt.Errorf("store credential: %w", err)
	}
	r.invalidate(cred.TenantID)
	return nil
}

// Delete removes the credential of tenantID.
func (r *CredentialRepository) Delete(ctx context.Context, tenantID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tenant_credentials WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	r.invalidate(tenantID)
	return nil
}

// List returns every stored credential ordered by tenant.
func (r *CredentialRepository) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tenant_id, secret_hash, created_at FROM tenant_credentials ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []domain.Credential
	for rows.Next() {
		var c domain.Credential
		if err := rows.Scan(&c.TenantID, &c.SecretHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CredentialRepository) invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}
