package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// Session is the live connection of one tenant. The mutable fields are
// guarded by mu and only written by the owning SessionManager.
type Session struct {
	tenantID   string
	conn       domain.Connection
	storageDir string
	createdAt  time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	internal chan domain.Event

	mu              sync.RWMutex
	status          domain.Status
	qrAttempts      int
	qr              *domain.QRToken
	qrTimer         *time.Timer
	qrGen           uint64
	lastAuthFailure string
	lastDisconnect  domain.DisconnectReason
	updatedAt       time.Time
	released        bool

	teardownOnce sync.Once
}

func newSession(tenantID string, conn domain.Connection, storageDir string, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		tenantID:   tenantID,
		conn:       conn,
		storageDir: storageDir,
		createdAt:  now,
		ctx:        ctx,
		cancel:     cancel,
		internal:   make(chan domain.Event, 1),
		status:     domain.StatusUninitialized,
		updatedAt:  now,
	}
}

// TenantID returns the tenant the session belongs to.
func (s *Session) TenantID() string {
	return s.tenantID
}

// Status returns the authoritative live status.
func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Info returns a snapshot of the session.
func (s *Session) Info() domain.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := domain.SessionInfo{
		TenantID:        s.tenantID,
		Status:          s.status,
		QRAttempts:      s.qrAttempts,
		LastAuthFailure: s.lastAuthFailure,
		LastDisconnect:  s.lastDisconnect,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
	if s.qr != nil {
		exp := s.qr.ExpiresAt
		info.QRExpiresAt = &exp
	}
	return info
}

// Send hands the message to the connection handle.
func (s *Session) Send(ctx context.Context, chatID, content string) error {
	return s.conn.SendMessage(ctx, chatID, content)
}

func (s *Session) liveQR(now time.Time) (domain.QRToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released || s.qr == nil || s.qr.Expired(now) {
		return domain.QRToken{}, false
	}
	return *s.qr, true
}

// clearQRLocked cancels the pending expiry timer and drops the token. The
// generation bump makes an already-fired timer callback a no-op.
func (s *Session) clearQRLocked() {
	if s.qrTimer != nil {
		s.qrTimer.Stop()
		s.qrTimer = nil
	}
	s.qrGen++
	s.qr = nil
}

// markReleased flips the session into its final status. It reports false if
// the session was already released. Callers hold the registry lock so that
// readers never see a registered session that is being torn down.
func (s *Session) markReleased(final domain.Status, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	s.clearQRLocked()
	s.status = final
	s.updatedAt = now
	return true
}

// teardown releases the connection handle exactly once.
func (s *Session) teardown() error {
	var err error
	s.teardownOnce.Do(func() {
		s.cancel()
		err = s.conn.Destroy()
	})
	return err
}

// inject queues an event produced outside the transport, such as a failed
// connect, so it is applied by the session's event loop.
func (s *Session) inject(ev domain.Event) {
	select {
	case s.internal <- ev:
	case <-s.ctx.Done():
	}
}
