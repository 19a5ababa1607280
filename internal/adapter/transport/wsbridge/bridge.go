// Package wsbridge implements domain.Connection as a websocket link to a chat
// driver sidecar that owns the actual messaging client.
package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/V4T54L/chat-relay/internal/domain"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	eventBuffer      = 64
)

// Dialer builds bridge connections against one driver endpoint.
type Dialer struct {
	base   *url.URL
	logger *slog.Logger
}

// NewDialer parses the driver URL. http and https schemes are rewritten to
// ws and wss.
func NewDialer(driverURL string, logger *slog.Logger) (*Dialer, error) {
	u, err := url.Parse(driverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid driver url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported driver url scheme %q", u.Scheme)
	}
	return &Dialer{base: u, logger: logger.With("component", "wsbridge")}, nil
}

// Dial returns an unconnected handle for tenantID.
func (d *Dialer) Dial(tenantID, storageDir string) (domain.Connection, error) {
	u := *d.base
	u.Path = strings.TrimRight(u.Path, "/") + "/sessions/" + url.PathEscape(tenantID)
	q := u.Query()
	q.Set("data_dir", storageDir)
	u.RawQuery = q.Encode()

	return &Connection{
		endpoint: u.String(),
		tenantID: tenantID,
		logger:   d.logger.With("tenant_id", tenantID),
		events:   make(chan domain.Event, eventBuffer),
		pending:  make(map[string]chan error),
		closed:   make(chan struct{}),
	}, nil
}

// Connection is one tenant's link to the driver.
type Connection struct {
	endpoint string
	tenantID string
	logger   *slog.Logger
	events   chan domain.Event

	mu      sync.Mutex
	ws      *websocket.Conn
	pending map[string]chan error

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Connect dials the driver and starts reading frames. Calling it again
// replaces the current link.
func (c *Connection) Connect(ctx context.Context) error {
	if c.isClosed() {
		return domain.ErrConnectionClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial driver: %w", err)
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		_ = ws.Close()
		return domain.ErrConnectionClosed
	}
	old := c.ws
	c.ws = ws
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	go c.readLoop(ws)
	return nil
}

// Events returns the lifecycle event channel.
func (c *Connection) Events() <-chan domain.Event {
	return c.events
}

// SendMessage writes a send frame and waits for its result.
func (c *Connection) SendMessage(ctx context.Context, chatID, content string) error {
	c.mu.Lock()
	ws := c.ws
	if ws == nil || c.isClosed() {
		c.mu.Unlock()
		return domain.ErrConnectionClosed
	}
	id := uuid.NewString()
	result := make(chan error, 1)
	c.pending[id] = result
	c.mu.Unlock()

	defer c.dropPending(id)

	frame := sendFrame{Type: frameSend, ID: id, ChatID: chatID, Content: content}
	if err := c.write(ws, frame); err != nil {
		return fmt.Errorf("write send frame: %w", err)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return domain.ErrConnectionClosed
	}
}

// Destroy closes the link and fails every pending send.
func (c *Connection) Destroy() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		ws := c.ws
		c.ws = nil
		for id, ch := range c.pending {
			ch <- domain.ErrConnectionClosed
			delete(c.pending, id)
		}
		c.mu.Unlock()

		if ws != nil {
			c.writeMu.Lock()
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "destroyed"),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			err = ws.Close()
		}
	})
	return err
}

func (c *Connection) write(ws *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteJSON(v)
}

func (c *Connection) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Connection) readLoop(ws *websocket.Conn) {
	sawDisconnect := false
	for {
		var frame inboundFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if c.isClosed() || !c.current(ws) {
				return
			}
			c.detach(ws)
			if !sawDisconnect {
				c.logger.Warn("Driver link lost", "error", err)
				c.emit(domain.Event{
					Kind:   domain.EventDisconnected,
					Reason: domain.ReasonTransient,
					Detail: linkLostDetail(err),
				})
			}
			return
		}

		switch frame.Type {
		case frameQR:
			c.emit(domain.Event{Kind: domain.EventQR, QR: frame.QR})
		case frameAuthenticated:
			c.emit(domain.Event{Kind: domain.EventAuthenticated})
		case frameReady:
			c.emit(domain.Event{Kind: domain.EventReady})
		case frameAuthFailure:
			c.emit(domain.Event{Kind: domain.EventAuthFailure, Detail: frame.Detail})
		case frameDisconnected:
			sawDisconnect = true
			c.emit(domain.Event{
				Kind:   domain.EventDisconnected,
				Reason: domain.ParseDisconnectReason(frame.Reason),
				Detail: frame.Reason,
			})
		case frameSendResult:
			c.resolve(frame)
		default:
			c.logger.Debug("Ignoring unknown driver frame", "type", frame.Type)
		}
	}
}

func (c *Connection) current(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws == ws
}

// detach forgets ws and fails the sends that were waiting on it.
func (c *Connection) detach(ws *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != ws {
		return
	}
	c.ws = nil
	for id, ch := range c.pending {
		ch <- domain.ErrConnectionClosed
		delete(c.pending, id)
	}
}

func (c *Connection) resolve(frame inboundFrame) {
	c.mu.Lock()
	ch, ok := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if frame.OK {
		ch <- nil
		return
	}
	msg := frame.Error
	if msg == "" {
		msg = "send rejected by driver"
	}
	ch <- errors.New(msg)
}

func (c *Connection) emit(ev domain.Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func linkLostDetail(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Sprintf("driver closed link: %d %s", closeErr.Code, closeErr.Text)
	}
	return err.Error()
}
