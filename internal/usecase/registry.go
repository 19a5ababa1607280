package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// Registry maps tenant identifiers to live sessions. Removal marks the
// session released under the registry lock and destroys its connection
// after the mapping is gone, so a reader either finds a session that is
// still usable or does not find it at all.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	tombstones map[string]domain.Status
	now        func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		tombstones: make(map[string]domain.Status),
		now:        time.Now,
	}
}

// Get returns the session registered for tenantID.
func (r *Registry) Get(tenantID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tenantID]
	return s, ok
}

// Put registers s unless a session already exists for tenantID, in which
// case the existing session is returned with loaded set to true.
func (r *Registry) Put(tenantID string, s *Session) (actual *Session, loaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[tenantID]; ok {
		return existing, true
	}
	r.sessions[tenantID] = s
	delete(r.tombstones, tenantID)
	return s, false
}

// Remove releases and deregisters the session for tenantID. Any terminal
// marker for the tenant is cleared as well. Safe to call when absent.
func (r *Registry) Remove(tenantID string) (*Session, bool) {
	r.mu.Lock()
	delete(r.tombstones, tenantID)
	s, ok := r.sessions[tenantID]
	if ok {
		s.markReleased(domain.StatusDisconnected, r.now())
		delete(r.sessions, tenantID)
	}
	r.mu.Unlock()

	if ok {
		_ = s.teardown()
	}
	return s, ok
}

// removeSession deregisters s only if it is still the session registered
// for its tenant, so late events from a replaced session cannot evict the
// new one. When tombstone is set the final status is remembered for status
// queries until the tenant is created again.
func (r *Registry) removeSession(s *Session, final domain.Status, tombstone bool) bool {
	r.mu.Lock()
	current, ok := r.sessions[s.tenantID]
	if !ok || current != s {
		r.mu.Unlock()
		return false
	}
	s.markReleased(final, r.now())
	delete(r.sessions, s.tenantID)
	if tombstone {
		r.tombstones[s.tenantID] = final
	}
	r.mu.Unlock()

	_ = s.teardown()
	return true
}

// Tombstone returns the terminal status left behind by a retired session.
func (r *Registry) Tombstone(tenantID string) (domain.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.tombstones[tenantID]
	return st, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the registered sessions ordered by tenant.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].tenantID < out[j].tenantID })
	return out
}
