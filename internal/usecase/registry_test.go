package usecase

import (
	"testing"
	"time"

	"github.com/V4T54L/chat-relay/internal/domain"
	"github.com/V4T54L/chat-relay/internal/domain/mocks"
)

func TestRegistry_PutGetRemove(t *testing.T) {
	r := NewRegistry()
	conn := mocks.NewMockConnection()
	s := newSession("acme", conn, "/tmp/acme", time.Now())

	if _, ok := r.Get("acme"); ok {
		t.Fatal("expected empty registry")
	}

	actual, loaded := r.Put("acme", s)
	if loaded || actual != s {
		t.Fatalf("Put() = %p, %v; want %p, false", actual, loaded, s)
	}

	other := newSession("acme", mocks.NewMockConnection(), "/tmp/acme", time.Now())
	actual, loaded = r.Put("acme", other)
	if !loaded || actual != s {
		t.Errorf("second Put() should return the existing session")
	}

	if got, ok := r.Get("acme"); !ok || got != s {
		t.Errorf("Get() = %p, %v; want %p, true", got, ok, s)
	}

	removed, ok := r.Remove("acme")
	if !ok || removed != s {
		t.Fatalf("Remove() = %p, %v; want %p, true", removed, ok, s)
	}
	if conn.Destroys() != 1 {
		t.Errorf("expected connection destroyed once, got %d", conn.Destroys())
	}
	if s.Status() != domain.StatusDisconnected {
		t.Errorf("removed session status = %s, want DISCONNECTED", s.Status())
	}
	if _, ok := r.Remove("acme"); ok {
		t.Error("second Remove() should report absent")
	}
	if conn.Destroys() != 1 {
		t.Errorf("expected no second destroy, got %d", conn.Destroys())
	}
}

func TestRegistry_RemoveSessionIsCompareAndRemove(t *testing.T) {
	r := NewRegistry()
	stale := newSession("acme", mocks.NewMockConnection(), "", time.Now())
	r.Put("acme", stale)
	r.Remove("acme")

	fresh := newSession("acme", mocks.NewMockConnection(), "", time.Now())
	r.Put("acme", fresh)

	if r.removeSession(stale, domain.StatusRetired, true) {
		t.Fatal("a stale session must not evict its replacement")
	}
	if got, ok := r.Get("acme"); !ok || got != fresh {
		t.Error("fresh session should still be registered")
	}
	if _, ok := r.Tombstone("acme"); ok {
		t.Error("no tombstone expected")
	}
}

func TestRegistry_Tombstone(t *testing.T) {
	r := NewRegistry()
	s := newSession("acme", mocks.NewMockConnection(), "", time.Now())
	r.Put("acme", s)

	if !r.removeSession(s, domain.StatusRetired, true) {
		t.Fatal("removeSession() = false, want true")
	}
	if st, ok := r.Tombstone("acme"); !ok || st != domain.StatusRetired {
		t.Errorf("Tombstone() = %s, %v; want RETIRED, true", st, ok)
	}

	r.Put("acme", newSession("acme", mocks.NewMockConnection(), "", time.Now()))
	if _, ok := r.Tombstone("acme"); ok {
		t.Error("Put() should clear the tombstone")
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "acme", "mid"} {
		r.Put(id, newSession(id, mocks.NewMockConnection(), "", time.Now()))
	}

	snap := r.Snapshot()
	if len(snap) != 3 || r.Len() != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(snap))
	}
	want := []string{"acme", "mid", "zeta"}
	for i, s := range snap {
		if s.TenantID() != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, s.TenantID(), want[i])
		}
	}
}
