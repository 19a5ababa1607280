package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/domain"
)

const (
	defaultMaxQRAttempts = 4
	defaultQRWindow      = 60 * time.Second
)

// SessionManagerConfig bounds the QR re-authentication budget.
type SessionManagerConfig struct {
	MaxQRAttempts int
	QRWindow      time.Duration
}

// SessionManagerOption customises a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithNotifier sets the operator alert sink.
func WithNotifier(n domain.Notifier) SessionManagerOption {
	return func(m *SessionManager) { m.notifier = n }
}

// WithPublisher sets the receiver of session state changes.
func WithPublisher(p domain.SessionEventPublisher) SessionManagerOption {
	return func(m *SessionManager) { m.publisher = p }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(rm *metrics.RelayMetrics) SessionManagerOption {
	return func(m *SessionManager) { m.metrics = rm }
}

// WithClock overrides the clock used for QR issue and expiry times.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.now = now
		m.registry.now = now
	}
}

// SessionManager owns the lifecycle of every tenant session: creation,
// transport event handling, the QR attempt budget and teardown.
type SessionManager struct {
	registry  *Registry
	locks     *keyedMutex
	dialer    domain.Dialer
	storage   domain.SessionStorage
	notifier  domain.Notifier
	publisher domain.SessionEventPublisher
	metrics   *metrics.RelayMetrics
	logger    *slog.Logger
	cfg       SessionManagerConfig
	now       func() time.Time
}

// NewSessionManager creates a SessionManager. Zero config values fall back
// to 4 QR attempts and a 60 second QR window.
func NewSessionManager(registry *Registry, dialer domain.Dialer, storage domain.SessionStorage, cfg SessionManagerConfig, logger *slog.Logger, opts ...SessionManagerOption) *SessionManager {
	if cfg.MaxQRAttempts <= 0 {
		cfg.MaxQRAttempts = defaultMaxQRAttempts
	}
	if cfg.QRWindow <= 0 {
		cfg.QRWindow = defaultQRWindow
	}
	m := &SessionManager{
		registry: registry,
		locks:    newKeyedMutex(),
		dialer:   dialer,
		storage:  storage,
		logger:   logger.With("component", "session_manager"),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a session for tenantID. If one is already registered it is
// returned unchanged. The connection is initiated asynchronously. Create
// waits for any teardown of the tenant that is still removing storage.
func (m *SessionManager) Create(ctx context.Context, tenantID string) (domain.SessionInfo, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return domain.SessionInfo{}, err
	}
	if s, ok := m.registry.Get(tenantID); ok {
		return s.Info(), nil
	}

	unlock := m.locks.Lock(tenantID)
	defer unlock()
	if s, ok := m.registry.Get(tenantID); ok {
		return s.Info(), nil
	}

	dir, err := m.storage.Location(tenantID)
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("prepare session storage: %w", err)
	}
	conn, err := m.dialer.Dial(tenantID, dir)
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("dial transport: %w", err)
	}

	s := newSession(tenantID, conn, dir, m.now())
	actual, loaded := m.registry.Put(tenantID, s)
	if loaded {
		// Lost a race with a concurrent Create; drop the spare handle.
		_ = s.teardown()
		return actual.Info(), nil
	}

	m.logger.Info("session created", "tenant_id", tenantID, "storage_dir", dir)
	m.transitioned(s, domain.StatusUninitialized, "")
	m.gaugeSessions()

	go m.run(s)
	go m.connect(s)

	return s.Info(), nil
}

// Reconnect re-initiates the connection of a registered session that is
// DISCONNECTED. Sessions in any other state are left alone.
func (m *SessionManager) Reconnect(ctx context.Context, tenantID string) error {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Status() != domain.StatusDisconnected {
		return nil
	}
	m.logger.Info("reconnecting session", "tenant_id", tenantID)
	go m.connect(s)
	return nil
}

// Destroy tears down the session for tenantID regardless of its state.
// It reports whether a session was registered; calling it again is a no-op.
func (m *SessionManager) Destroy(tenantID string) bool {
	s, ok := m.registry.Remove(tenantID)
	if !ok {
		return false
	}
	m.logger.Info("session destroyed", "tenant_id", tenantID)
	if m.metrics != nil {
		m.metrics.SessionsRetired.WithLabelValues("admin").Inc()
	}
	m.transitioned(s, domain.StatusDisconnected, "destroyed")
	m.gaugeSessions()
	return true
}

// Discard destroys the session of tenantID and deletes its stored state as
// one step with respect to Create.
func (m *SessionManager) Discard(tenantID string) error {
	unlock := m.locks.Lock(tenantID)
	defer unlock()

	m.Destroy(tenantID)
	if err := m.storage.Remove(tenantID); err != nil {
		return fmt.Errorf("remove session storage: %w", err)
	}
	return nil
}

// Status reports the live status of tenantID. Tenants whose session was
// retired by the QR budget report RETIRED until created again; unknown
// tenants report UNINITIALIZED.
func (m *SessionManager) Status(tenantID string) domain.Status {
	if s, ok := m.registry.Get(tenantID); ok {
		return s.Status()
	}
	if st, ok := m.registry.Tombstone(tenantID); ok {
		return st
	}
	return domain.StatusUninitialized
}

// Session returns a snapshot of the registered session for tenantID.
func (m *SessionManager) Session(tenantID string) (domain.SessionInfo, bool) {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return domain.SessionInfo{}, false
	}
	return s.Info(), true
}

// Sessions returns snapshots of all registered sessions.
func (m *SessionManager) Sessions() []domain.SessionInfo {
	snap := m.registry.Snapshot()
	out := make([]domain.SessionInfo, 0, len(snap))
	for _, s := range snap {
		out = append(out, s.Info())
	}
	return out
}

// LiveQRToken returns the current QR token if it has not expired.
func (m *SessionManager) LiveQRToken(tenantID string) (domain.QRToken, bool) {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return domain.QRToken{}, false
	}
	return s.liveQR(m.now())
}

// Lookup returns the registered session for tenantID.
func (m *SessionManager) Lookup(tenantID string) (*Session, bool) {
	return m.registry.Get(tenantID)
}

// Shutdown destroys every registered session.
func (m *SessionManager) Shutdown() {
	for _, s := range m.registry.Snapshot() {
		m.registry.Remove(s.tenantID)
	}
	m.gaugeSessions()
}

func (m *SessionManager) connect(s *Session) {
	if err := s.conn.Connect(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.inject(domain.Event{
			Kind:   domain.EventDisconnected,
			Reason: domain.ReasonConnectFailed,
			Detail: err.Error(),
		})
	}
}

// run applies the transport events of one session sequentially until the
// session is released.
func (m *SessionManager) run(s *Session) {
	events := s.conn.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.apply(s, ev)
		case ev := <-s.internal:
			m.apply(s, ev)
		}
	}
}

func (m *SessionManager) apply(s *Session, ev domain.Event) {
	switch ev.Kind {
	case domain.EventQR:
		m.onQR(s, ev.QR)
	case domain.EventAuthenticated:
		m.onAuthenticated(s)
	case domain.EventReady:
		m.onReady(s)
	case domain.EventAuthFailure:
		m.onAuthFailure(s, ev.Detail)
	case domain.EventDisconnected:
		m.onDisconnected(s, ev.Reason, ev.Detail)
	default:
		m.logger.Warn("ignoring unknown transport event", "tenant_id", s.tenantID, "kind", ev.Kind)
	}
}

func (m *SessionManager) onQR(s *Session, value string) {
	now := m.now()
	window := m.cfg.QRWindow

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	attempts := s.qrAttempts + 1
	if attempts > m.cfg.MaxQRAttempts {
		s.mu.Unlock()
		m.retire(s, attempts-1)
		return
	}
	s.qrAttempts = attempts
	s.clearQRLocked()
	gen := s.qrGen
	s.qr = &domain.QRToken{Value: value, IssuedAt: now, ExpiresAt: now.Add(window)}
	s.qrTimer = time.AfterFunc(window, func() { m.expireQR(s, gen) })
	s.status = domain.StatusAwaitingQR
	s.updatedAt = now
	s.mu.Unlock()

	if m.metrics != nil {
		m.metrics.QRIssued.Inc()
	}
	m.logger.Info("qr issued", "tenant_id", s.tenantID, "attempt", attempts, "max_attempts", m.cfg.MaxQRAttempts)
	m.transitioned(s, domain.StatusAwaitingQR, fmt.Sprintf("qr attempt %d/%d", attempts, m.cfg.MaxQRAttempts))
}

// expireQR drops the token issued under generation gen. A token replaced
// since then carries a newer generation and is left untouched.
func (m *SessionManager) expireQR(s *Session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.qrGen != gen {
		return
	}
	s.qr = nil
	s.qrTimer = nil
	m.logger.Debug("qr expired", "tenant_id", s.tenantID)
}

func (m *SessionManager) retire(s *Session, attempts int) {
	if !m.registry.removeSession(s, domain.StatusRetired, true) {
		return
	}
	m.logger.Warn("qr attempt budget exhausted, session retired",
		"tenant_id", s.tenantID, "attempts", attempts, "max_attempts", m.cfg.MaxQRAttempts)
	if m.metrics != nil {
		m.metrics.SessionsRetired.WithLabelValues("qr_budget").Inc()
	}
	m.transitioned(s, domain.StatusRetired, domain.ErrQRBudgetExhausted.Error())
	m.gaugeSessions()
	m.alert(s.tenantID, "QR attempts exhausted",
		fmt.Sprintf("tenant %s did not scan a QR code within %d attempts; the session was closed", s.tenantID, m.cfg.MaxQRAttempts))
}

func (m *SessionManager) onAuthenticated(s *Session) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.qrAttempts = 0
	s.clearQRLocked()
	s.lastAuthFailure = ""
	s.status = domain.StatusAuthenticating
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.logger.Info("session authenticated", "tenant_id", s.tenantID)
	m.transitioned(s, domain.StatusAuthenticating, "")
}

func (m *SessionManager) onReady(s *Session) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusReady
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.logger.Info("session ready", "tenant_id", s.tenantID)
	m.transitioned(s, domain.StatusReady, "")
}

func (m *SessionManager) onAuthFailure(s *Session, reason string) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.lastAuthFailure = reason
	s.updatedAt = m.now()
	status := s.status
	s.mu.Unlock()

	if m.metrics != nil {
		m.metrics.AuthFailures.Inc()
	}
	m.logger.Warn("authentication failure", "tenant_id", s.tenantID, "reason", reason, "status", status)
}

func (m *SessionManager) onDisconnected(s *Session, reason domain.DisconnectReason, detail string) {
	if reason == "" {
		reason = domain.ReasonTransient
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.clearQRLocked()
	s.status = domain.StatusDisconnected
	s.lastDisconnect = reason
	s.updatedAt = m.now()
	s.mu.Unlock()

	m.logger.Warn("session disconnected", "tenant_id", s.tenantID, "reason", reason, "detail", detail)
	m.transitioned(s, domain.StatusDisconnected, string(reason))

	if !reason.Unrecoverable() {
		return
	}
	if !m.discardSession(s) {
		return
	}
	if m.metrics != nil {
		m.metrics.SessionsRetired.WithLabelValues(string(reason)).Inc()
	}
	m.gaugeSessions()
	m.logger.Warn("session invalidated, storage removed", "tenant_id", s.tenantID, "reason", reason)
	m.alert(s.tenantID, "Session logged out",
		fmt.Sprintf("tenant %s was disconnected (%s) and must scan a new QR code", s.tenantID, reason))
}

// discardSession deregisters s and removes its storage while holding the
// tenant lock, so a concurrent Create cannot lose its fresh storage.
func (m *SessionManager) discardSession(s *Session) bool {
	unlock := m.locks.Lock(s.tenantID)
	defer unlock()

	if !m.registry.removeSession(s, domain.StatusDisconnected, false) {
		return false
	}
	if err := m.storage.Remove(s.tenantID); err != nil {
		m.logger.Error("failed to remove session storage", "tenant_id", s.tenantID, "error", err)
	}
	return true
}

func (m *SessionManager) transitioned(s *Session, status domain.Status, detail string) {
	if m.metrics != nil {
		m.metrics.SessionTransitions.WithLabelValues(string(status)).Inc()
	}
	if m.publisher != nil {
		m.publisher.Publish(domain.SessionEvent{
			TenantID: s.tenantID,
			Status:   status,
			Detail:   detail,
			At:       m.now(),
		})
	}
}

func (m *SessionManager) gaugeSessions() {
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.registry.Len()))
	}
}

func (m *SessionManager) alert(tenantID, subject, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(context.Background(), tenantID, subject, message); err != nil {
		m.logger.Error("failed to send alert", "tenant_id", tenantID, "error", err)
	}
}
