package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/V4T54L/chat-relay/internal/domain"
)

const filePerm = 0o600

// CredentialRepository implements domain.CredentialRepository on a single
// JSON file. Writes replace the file atomically; external edits are picked
// up by Watch.
type CredentialRepository struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	creds map[string]domain.Credential
}

// NewCredentialRepository loads path, creating an empty store if the file
// does not exist yet.
func NewCredentialRepository(path string, logger *slog.Logger) (*CredentialRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	r := &CredentialRepository{
		path:   path,
		logger: logger.With("component", "file_credential_repository"),
		creds:  make(map[string]domain.Credential),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CredentialRepository) Get(ctx context.Context, tenantID string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *CredentialRepository) Create(ctx context.Context, cred domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creds[cred.TenantID]; ok {
		return domain.ErrTenantExists
	}
	next := r.cloneLocked()
	next[cred.TenantID] = cred
	if err := r.persist(next); err != nil {
		return err
	}
	r.creds = next
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creds[tenantID]; !ok {
		return nil
	}
	next := r.cloneLocked()
	delete(next, tenantID)
	if err := r.persist(next); err != nil {
		return err
	}
	r.creds = next
	return nil
}

func (r *CredentialRepository) List(ctx context.Context) ([]domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Credential, 0, len(r.creds))
	for _, c := range r.creds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// Watch reloads the file whenever it is changed outside this process. It
// blocks until ctx is cancelled.
func (r *CredentialRepository) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	// Watch the directory: atomic replacement swaps the file's inode.
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(r.path), err)
	}
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				r.logger.Error("failed to reload credentials file", "error", err)
				continue
			}
			r.logger.Info("credentials file reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("credentials watcher error", "error", err)
		}
	}
}

func (r *CredentialRepository) reload() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.mu.Lock()
		r.creds = make(map[string]domain.Credential)
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var list []domain.Credential
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to parse credentials file: %w", err)
		}
	}
	creds := make(map[string]domain.Credential, len(list))
	for _, c := range list {
		creds[c.TenantID] = c
	}

	r.mu.Lock()
	r.creds = creds
	r.mu.Unlock()
	return nil
}

func (r *CredentialRepository) cloneLocked() map[string]domain.Credential {
	next := make(map[string]domain.Credential, len(r.creds)+1)
	for k, v := range r.creds {
		next[k] = v
	}
	return next
}

func (r *CredentialRepository) persist(creds map[string]domain.Credential) error {
	list := make([]domain.Credential, 0, len(creds))
	for _, c := range creds {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TenantID < list[j].TenantID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
