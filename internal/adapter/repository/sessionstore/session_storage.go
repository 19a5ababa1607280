package sessionstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/V4T54L/chat-relay/internal/domain"
)

const (
	dirPrefix = "session-"
	dirPerm   = 0o700
)

// SessionStorage keeps one directory per tenant under a base directory. The
// transport owns the directory contents.
type SessionStorage struct {
	dir    string
	logger *slog.Logger
}

// NewSessionStorage creates the base directory if needed.
func NewSessionStorage(dir string, logger *slog.Logger) (*SessionStorage, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create session data directory %s: %w", dir, err)
	}
	return &SessionStorage{
		dir:    dir,
		logger: logger.With("component", "session_storage"),
	}, nil
}

func (s *SessionStorage) path(tenantID string) (string, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, dirPrefix+tenantID), nil
}

// Location returns the tenant's directory, creating it if needed.
func (s *SessionStorage) Location(tenantID string) (string, error) {
	p, err := s.path(tenantID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create session directory for %s: %w", tenantID, err)
	}
	return p, nil
}

// Exists reports whether the tenant's directory exists and is not empty.
func (s *SessionStorage) Exists(tenantID string) bool {
	p, err := s.path(tenantID)
	if err != nil {
		return false
	}
	entries, err := os.ReadDir(p)
	return err == nil && len(entries) > 0
}

// Remove deletes the tenant's directory and everything in it.
func (s *SessionStorage) Remove(tenantID string) error {
	p, err := s.path(tenantID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to remove session directory for %s: %w", tenantID, err)
	}
	s.logger.Info("session storage removed", "tenant_id", tenantID)
	return nil
}
