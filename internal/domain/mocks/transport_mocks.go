package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// MockConnection is a scriptable domain.Connection. Tests push lifecycle
// events with Emit and inspect what the session manager did with it.
type MockConnection struct {
	mu         sync.Mutex
	events     chan domain.Event
	connects   int
	destroys   int
	sent       []SentMessage
	ConnectErr error
	SendFunc   func(ctx context.Context, chatID, content string) error
}

// SentMessage is one call to SendMessage.
type SentMessage struct {
	ChatID  string
	Content string
}

func NewMockConnection() *MockConnection {
	return &MockConnection{events: make(chan domain.Event, 64)}
}

func (c *MockConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.ConnectErr
}

func (c *MockConnection) Events() <-chan domain.Event {
	return c.events
}

func (c *MockConnection) SendMessage(ctx context.Context, chatID, content string) error {
	c.mu.Lock()
	fn := c.SendFunc
	c.sent = append(c.sent, SentMessage{ChatID: chatID, Content: content})
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx, chatID, content)
	}
	return nil
}

func (c *MockConnection) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroys++
	return nil
}

// Emit delivers an event as the transport would.
func (c *MockConnection) Emit(ev domain.Event) {
	c.events <- ev
}

func (c *MockConnection) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *MockConnection) Destroys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroys
}

func (c *MockConnection) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

// MockDialer hands out MockConnections and remembers them per tenant.
type MockDialer struct {
	mu      sync.Mutex
	conns   map[string][]*MockConnection
	DialErr error
	// Prepare, when set, configures each new connection before it is returned.
	Prepare func(tenantID string, c *MockConnection)
}

func NewMockDialer() *MockDialer {
	return &MockDialer{conns: make(map[string][]*MockConnection)}
}

func (d *MockDialer) Dial(tenantID, storageDir string) (domain.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	c := NewMockConnection()
	if d.Prepare != nil {
		d.Prepare(tenantID, c)
	}
	d.conns[tenantID] = append(d.conns[tenantID], c)
	return c, nil
}

// Last returns the most recent connection dialed for a tenant.
// SetDialErr makes subsequent Dial calls fail with err, or succeed when nil.
func (d *MockDialer) SetDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialErr = err
}

func (d *MockDialer) Last(tenantID string) *MockConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs := d.conns[tenantID]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

// Count returns how many connections were dialed for a tenant.
func (d *MockDialer) Count(tenantID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns[tenantID])
}
