package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/adapter/phone"
	"github.com/V4T54L/chat-relay/internal/domain"
)

const auditTimeout = 2 * time.Second

// recipientInvalidMarkers are lower-cased fragments of transport errors that
// mean the target cannot receive messages (unregistered or blocked).
var recipientInvalidMarkers = []string{
	"no lid",
	"not found",
	"not registered",
	"not on whatsapp",
	"blocked",
	"evaluation failed",
	"invalid wid",
}

// SessionLookup finds the live session of a tenant.
type SessionLookup interface {
	Lookup(tenantID string) (*Session, bool)
}

// DispatchGateway sends a message through a tenant's session and reduces
// every failure to the dispatch error taxonomy.
type DispatchGateway struct {
	sessions   SessionLookup
	normalizer *phone.Normalizer
	audit      domain.DispatchBuffer
	metrics    *metrics.RelayMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatchGateway creates a DispatchGateway. audit and m may be nil.
func NewDispatchGateway(sessions SessionLookup, normalizer *phone.Normalizer, audit domain.DispatchBuffer, m *metrics.RelayMetrics, logger *slog.Logger) *DispatchGateway {
	return &DispatchGateway{
		sessions:   sessions,
		normalizer: normalizer,
		audit:      audit,
		metrics:    m,
		logger:     logger.With("component", "dispatch_gateway"),
		now:        time.Now,
	}
}

// Send performs a single synchronous send attempt. The returned error, if
// any, wraps one of domain.ErrSessionNotFound, domain.ErrSessionNotReady,
// domain.ErrRecipientInvalid or domain.ErrTransport. The call blocks until
// the transport answers or ctx is done.
func (g *DispatchGateway) Send(ctx context.Context, tenantID, target, content string) (domain.DispatchRecord, error) {
	start := g.now()
	rec := domain.DispatchRecord{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Target:   target,
		At:       start.UTC(),
	}

	err := g.send(ctx, &rec, content)

	rec.Outcome = domain.OutcomeOf(err)
	if err != nil {
		rec.Error = err.Error()
	}
	elapsed := g.now().Sub(start)
	rec.DurationMS = elapsed.Milliseconds()

	g.record(ctx, rec, elapsed)
	return rec, err
}

func (g *DispatchGateway) send(ctx context.Context, rec *domain.DispatchRecord, content string) error {
	s, ok := g.sessions.Lookup(rec.TenantID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if status := s.Status(); status != domain.StatusReady {
		return fmt.Errorf("%w: status %s", domain.ErrSessionNotReady, status)
	}

	chatID, err := g.normalizer.ChatID(rec.Target)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRecipientInvalid, err)
	}
	rec.ChatID = chatID

	if err := sendRecovered(ctx, s, chatID, content); err != nil {
		return classifySendError(err)
	}
	return nil
}

func sendRecovered(ctx context.Context, s *Session, chatID, content string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return s.Send(ctx, chatID, content)
}

// classifySendError maps a raw transport failure onto RecipientInvalid or
// Transport.
func classifySendError(err error) error {
	if errors.Is(err, domain.ErrRecipientInvalid) || errors.Is(err, domain.ErrTransport) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range recipientInvalidMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrRecipientInvalid, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrTransport, err)
}

func (g *DispatchGateway) record(ctx context.Context, rec domain.DispatchRecord, elapsed time.Duration) {
	attrs := []any{
		"dispatch_id", rec.ID,
		"tenant_id", rec.TenantID,
		"target", rec.Target,
		"outcome", rec.Outcome,
		"duration_ms", rec.DurationMS,
	}
	if rec.Outcome == domain.OutcomeSent {
		g.logger.Info("message dispatched", attrs...)
	} else {
		g.logger.Warn("message dispatch failed", append(attrs, "error", rec.Error)...)
	}

	if g.metrics != nil {
		g.metrics.DispatchTotal.WithLabelValues(string(rec.Outcome)).Inc()
		if rec.ChatID != "" {
			g.metrics.DispatchDuration.Observe(elapsed.Seconds())
		}
	}

	if g.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := g.audit.Append(auditCtx, rec); err != nil {
		g.logger.Warn("failed to append dispatch record to audit stream", "dispatch_id", rec.ID, "error", err)
	}
}
