package domain

import (
	"errors"
	"time"
)

// DispatchOutcome classifies the result of one send attempt.
type DispatchOutcome string

const (
	OutcomeSent             DispatchOutcome = "sent"
	OutcomeSessionNotFound  DispatchOutcome = "session_not_found"
	OutcomeSessionNotReady  DispatchOutcome = "session_not_ready"
	OutcomeRecipientInvalid DispatchOutcome = "recipient_invalid"
	OutcomeTransportError   DispatchOutcome = "transport_error"
)

// OutcomeOf maps a gateway error onto its outcome label.
func OutcomeOf(err error) DispatchOutcome {
	switch {
	case err == nil:
		return OutcomeSent
	case errors.Is(err, ErrSessionNotFound):
		return OutcomeSessionNotFound
	case errors.Is(err, ErrSessionNotReady):
		return OutcomeSessionNotReady
	case errors.Is(err, ErrRecipientInvalid):
		return OutcomeRecipientInvalid
	default:
		return OutcomeTransportError
	}
}

// DispatchRecord is the audit trail entry for one send attempt.
type DispatchRecord struct {
	ID         string          `json:"dispatch_id"`
	TenantID   string          `json:"tenant_id"`
	Target     string          `json:"target"`
	ChatID     string          `json:"chat_id,omitempty"`
	Outcome    DispatchOutcome `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	At         time.Time       `json:"at"`

	StreamMessageID string `json:"-"`
}
