package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// MockDispatchBuffer is a mock implementation of domain.DispatchBuffer for testing.
type MockDispatchBuffer struct {
	mu              sync.Mutex
	Appended        []domain.DispatchRecord
	AckedMessageIDs []string
	ReadBatchResult []domain.DispatchRecord
	AppendErr       error
	ReadErr         error
	AckErr          error
}

func (m *MockDispatchBuffer) Append(ctx context.Context, record domain.DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Appended = append(m.Appended, record)
	return nil
}

func (m *MockDispatchBuffer) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockDispatchBuffer) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

// Records returns a copy of the appended records.
func (m *MockDispatchBuffer) Records() []domain.DispatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DispatchRecord(nil), m.Appended...)
}

// MockDispatchSink is a mock implementation of domain.DispatchSink.
type MockDispatchSink struct {
	mu       sync.Mutex
	Written  []domain.DispatchRecord
	Calls    int
	WriteErr error
}

func (m *MockDispatchSink) WriteBatch(ctx context.Context, records []domain.DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Written = append(m.Written, records...)
	return nil
}

// MockCredentialRepository is an in-memory domain.CredentialRepository.
type MockCredentialRepository struct {
	mu        sync.Mutex
	Creds     map[string]domain.Credential
	GetErr    error
	CreateErr error
	DeleteErr error
}

func NewMockCredentialRepository() *MockCredentialRepository {
	return &MockCredentialRepository{Creds: make(map[string]domain.Credential)}
}

func (m *MockCredentialRepository) Get(ctx context.Context, tenantID string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.Creds[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *MockCredentialRepository) Create(ctx context.Context, cred domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.Creds[cred.TenantID]; ok {
		return domain.ErrTenantExists
	}
	m.Creds[cred.TenantID] = cred
	return nil
}

func (m *MockCredentialRepository) Delete(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Creds, tenantID)
	return nil
}

func (m *MockCredentialRepository) List(ctx context.Context) ([]domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Credential, 0, len(m.Creds))
	for _, c := range m.Creds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// MockSessionStorage records storage calls without touching the filesystem.
type MockSessionStorage struct {
	mu          sync.Mutex
	Present     map[string]bool
	Removed     []string
	LocationErr error
	onRemove    func(tenantID string)
}

func NewMockSessionStorage() *MockSessionStorage {
	return &MockSessionStorage{Present: make(map[string]bool)}
}

func (m *MockSessionStorage) Location(tenantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LocationErr != nil {
		return "", m.LocationErr
	}
	m.Present[tenantID] = true
	return "/sessions/session-" + tenantID, nil
}

func (m *MockSessionStorage) Exists(tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Present[tenantID]
}

// SetOnRemove installs a hook that runs at the start of Remove, before the
// storage is deleted.
func (m *MockSessionStorage) SetOnRemove(fn func(tenantID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemove = fn
}

func (m *MockSessionStorage) Remove(tenantID string) error {
	m.mu.Lock()
	hook := m.onRemove
	m.mu.Unlock()
	if hook != nil {
		hook(tenantID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Present, tenantID)
	m.Removed = append(m.Removed, tenantID)
	return nil
}

// RemovedTenants returns a copy of the tenants whose storage was removed.
func (m *MockSessionStorage) RemovedTenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Removed...)
}

// MockNotifier captures alerts.
type MockNotifier struct {
	mu       sync.Mutex
	Subjects []string
}

func (m *MockNotifier) Notify(ctx context.Context, tenantID, subject, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subjects = append(m.Subjects, tenantID+":"+subject)
	return nil
}

func (m *MockNotifier) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Subjects...)
}
