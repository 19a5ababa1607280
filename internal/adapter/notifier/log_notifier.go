package notifier

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LogNotifier raises operator alerts as warning-level log records so they
// can be routed by whatever collects the relay's logs.
type LogNotifier struct {
	logger *slog.Logger
	sent   atomic.Int64
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(ctx context.Context, tenantID, subject, message string) error {
	n.sent.Add(1)
	n.logger.WarnContext(ctx, "operator alert",
		"tenant_id", tenantID,
		"subject", subject,
		"message", message,
	)
	return nil
}

// Sent returns the number of alerts raised so far.
func (n *LogNotifier) Sent() int64 {
	return n.sent.Load()
}
