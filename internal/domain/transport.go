package domain

import "context"

// EventKind identifies a connection lifecycle event.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
)

// Event is a typed lifecycle notification emitted by a Connection.
type Event struct {
	Kind   EventKind
	// QR is set for EventQR.
	QR     string
	// Reason is set for EventDisconnected.
	Reason DisconnectReason
	// Detail carries the raw transport message for auth failures and disconnects.
	Detail string
}

// Connection is the transport-level link for one tenant. Events for a single
// connection are delivered in the order the transport produced them.
type Connection interface {
	// Connect starts (or restarts) the link. It returns once the attempt has
	// been initiated; progress is reported through Events.
	Connect(ctx context.Context) error

	// Events returns the channel lifecycle events are delivered on.
	Events() <-chan Event

	// SendMessage blocks until the transport acknowledges or rejects the message.
	SendMessage(ctx context.Context, chatID, content string) error

	// Destroy releases the transport resources. Safe to call more than once.
	Destroy() error
}

// Dialer constructs connection handles.
type Dialer interface {
	Dial(tenantID, storageDir string) (Connection, error)
}
