package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/V4T54L/chat-relay/internal/domain"
	"github.com/V4T54L/chat-relay/internal/domain/mocks"
)

func newTenantAdminFixture(t *testing.T) (*TenantAdmin, *managerFixture) {
	t.Helper()
	f := newManagerFixture(t, SessionManagerConfig{})
	creds := newTestCredentialService(mocks.NewMockCredentialRepository())
	return NewTenantAdmin(creds, f.manager, f.storage, discardLogger()), f
}

func TestTenantAdmin_RegisterAndDelete(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()

	info, err := admin.Register(ctx, "acme", "s3cret")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if info.TenantID != "acme" {
		t.Errorf("Register() = %+v", info)
	}
	if _, ok := f.manager.Lookup("acme"); !ok {
		t.Error("Register() should activate the session")
	}

	if _, err := admin.Register(ctx, "acme", "other"); !errors.Is(err, domain.ErrTenantExists) {
		t.Errorf("duplicate Register() error = %v, want ErrTenantExists", err)
	}

	if err := admin.Delete(ctx, "acme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := f.manager.Lookup("acme"); ok {
		t.Error("Delete() should destroy the session")
	}
	if f.storage.Exists("acme") {
		t.Error("Delete() should remove session storage")
	}
	if err := admin.Authorize(ctx, "acme", "s3cret"); !errors.Is(err, domain.ErrCredentialInvalid) {
		t.Errorf("Authorize() after delete error = %v", err)
	}
	if err := admin.Delete(ctx, "acme"); err != nil {
		t.Errorf("Delete() of absent tenant error = %v, want nil", err)
	}
}

func TestTenantAdmin_RegisterRollsBackOnSessionFailure(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()

	f.dialer.SetDialErr(errors.New("driver down"))
	if _, err := admin.Register(ctx, "acme", "s3cret"); err == nil {
		t.Fatal("Register() error = nil, want dial failure")
	}
	if err := admin.Authorize(ctx, "acme", "s3cret"); !errors.Is(err, domain.ErrCredentialInvalid) {
		t.Errorf("credential must be rolled back, Authorize() error = %v", err)
	}

	f.dialer.SetDialErr(nil)
	if _, err := admin.Register(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("retried Register() error = %v", err)
	}
	if _, ok := f.manager.Lookup("acme"); !ok {
		t.Error("retried Register() should activate the session")
	}
}

func TestTenantAdmin_LoginLogout(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()

	if err := admin.credentials.Create(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := admin.Login(ctx, "acme", "wrong"); !errors.Is(err, domain.ErrCredentialInvalid) {
		t.Errorf("Login() error = %v, want ErrCredentialInvalid", err)
	}
	if _, ok := f.manager.Lookup("acme"); ok {
		t.Fatal("a failed login must not create a session")
	}

	if _, err := admin.Login(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := admin.Login(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	if n := f.dialer.Count("acme"); n != 1 {
		t.Errorf("repeated login dialed %d handles, want 1", n)
	}

	if err := admin.Logout(ctx, "acme", "wrong"); !errors.Is(err, domain.ErrCredentialInvalid) {
		t.Errorf("Logout() error = %v, want ErrCredentialInvalid", err)
	}
	if err := admin.Logout(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := f.manager.Lookup("acme"); ok {
		t.Error("Logout() should destroy the session")
	}
	if f.storage.Exists("acme") {
		t.Error("Logout() should remove session storage")
	}
	if err := admin.Authorize(ctx, "acme", "s3cret"); err != nil {
		t.Errorf("credential should survive logout, Authorize() error = %v", err)
	}
}

func TestTenantAdmin_RestoreSessions(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()

	for _, id := range []string{"acme", "globex", "initech"} {
		if err := admin.credentials.Create(ctx, id, "pw"); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	f.storage.Present["acme"] = true
	f.storage.Present["initech"] = true

	n, err := admin.RestoreSessions(ctx)
	if err != nil {
		t.Fatalf("RestoreSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d sessions, want 2", n)
	}
	if _, ok := f.manager.Lookup("globex"); ok {
		t.Error("tenant without stored state must not be restored")
	}

	tenants, _ := admin.Tenants(ctx)
	if len(tenants) != 3 {
		t.Errorf("Tenants() = %v", tenants)
	}
}

func TestTenantAdmin_LoginWaitsForTenantOperations(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()
	if err := admin.credentials.Create(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Stand in for a Delete that is in progress.
	unlock := admin.locks.Lock("acme")
	done := make(chan error, 1)
	go func() {
		_, err := admin.Login(ctx, "acme", "s3cret")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if n := f.dialer.Count("acme"); n != 0 {
		t.Fatalf("Login() dialed %d handles while the tenant was locked", n)
	}
	if err := admin.credentials.Delete(ctx, "acme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	unlock()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrCredentialInvalid) {
			t.Errorf("Login() error = %v, want ErrCredentialInvalid", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Login() did not return")
	}
	if _, ok := f.manager.Lookup("acme"); ok {
		t.Error("Login() must not revive a deleted tenant")
	}
}

func TestTenantAdmin_LogoutWaitsForTenantOperations(t *testing.T) {
	admin, f := newTenantAdminFixture(t)
	ctx := context.Background()
	if _, err := admin.Register(ctx, "acme", "s3cret"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	unlock := admin.locks.Lock("acme")
	done := make(chan error, 1)
	go func() { done <- admin.Logout(ctx, "acme", "s3cret") }()

	time.Sleep(50 * time.Millisecond)
	if _, ok := f.manager.Lookup("acme"); !ok {
		t.Fatal("Logout() ran while the tenant was locked")
	}
	unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Logout() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Logout() did not return")
	}
	if _, ok := f.manager.Lookup("acme"); ok {
		t.Error("Logout() should destroy the session")
	}
}
