package wsbridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// fakeDriver upgrades every request and hands the server side to script.
func fakeDriver(t *testing.T, script func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		script(r, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *Connection {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := NewDialer(srv.URL, logger)
	if err != nil {
		t.Fatalf("NewDialer() error = %v", err)
	}
	conn, err := d.Dial("acme", "/data/session-acme")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	c := conn.(*Connection)
	t.Cleanup(func() { _ = c.Destroy() })
	return c
}

func nextEvent(t *testing.T, c *Connection) domain.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func TestNewDialer_Schemes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:3001", false},
		{"https://driver.internal", false},
		{"ws://localhost:3001/base/", false},
		{"ftp://localhost", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := NewDialer(tt.url, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDialer(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestConnection_LifecycleFrames(t *testing.T) {
	gotPath := make(chan string, 1)
	srv := fakeDriver(t, func(r *http.Request, conn *websocket.Conn) {
		gotPath <- r.URL.Path + "?" + r.URL.RawQuery
		frames := []inboundFrame{
			{Type: frameQR, QR: "qr-1"},
			{Type: frameAuthenticated},
			{Type: frameReady},
			{Type: frameAuthFailure, Detail: "bad pairing"},
			{Type: frameDisconnected, Reason: "LOGOUT"},
			{Type: frameDisconnected, Reason: "network timeout"},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})

	c := dial(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if p := <-gotPath; !strings.HasPrefix(p, "/sessions/acme?") || !strings.Contains(p, "data_dir=%2Fdata%2Fsession-acme") {
		t.Errorf("unexpected driver path %q", p)
	}

	want := []domain.Event{
		{Kind: domain.EventQR, QR: "qr-1"},
		{Kind: domain.EventAuthenticated},
		{Kind: domain.EventReady},
		{Kind: domain.EventAuthFailure, Detail: "bad pairing"},
		{Kind: domain.EventDisconnected, Reason: domain.ReasonLoggedOut, Detail: "LOGOUT"},
		{Kind: domain.EventDisconnected, Reason: domain.ReasonTransient, Detail: "network timeout"},
	}
	for i, w := range want {
		if got := nextEvent(t, c); got != w {
			t.Errorf("event %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestConnection_SendMessage(t *testing.T) {
	srv := fakeDriver(t, func(_ *http.Request, conn *websocket.Conn) {
		for {
			var f sendFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			res := inboundFrame{Type: frameSendResult, ID: f.ID, OK: true}
			if strings.HasPrefix(f.ChatID, "000") {
				res = inboundFrame{Type: frameSendResult, ID: f.ID, Error: "No LID for user"}
			}
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		}
	})

	c := dial(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := c.SendMessage(context.Background(), "5585985304415@s.whatsapp.net", "hi"); err != nil {
		t.Errorf("SendMessage() error = %v, want nil", err)
	}

	err := c.SendMessage(context.Background(), "0001@s.whatsapp.net", "hi")
	if err == nil || err.Error() != "No LID for user" {
		t.Errorf("SendMessage() error = %v, want driver rejection", err)
	}
}

func TestConnection_DestroyFailsPendingSend(t *testing.T) {
	received := make(chan struct{})
	srv := fakeDriver(t, func(_ *http.Request, conn *websocket.Conn) {
		var f sendFrame
		if err := conn.ReadJSON(&f); err == nil {
			close(received)
		}
		_, _, _ = conn.ReadMessage()
	})

	c := dial(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SendMessage(context.Background(), "5585985304415@s.whatsapp.net", "hi")
	}()

	<-received
	_ = c.Destroy()
	_ = c.Destroy()

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrConnectionClosed) {
			t.Errorf("SendMessage() error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending send was not released by Destroy")
	}

	if err := c.SendMessage(context.Background(), "x", "y"); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("SendMessage() after Destroy error = %v, want ErrConnectionClosed", err)
	}
	if err := c.Connect(context.Background()); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("Connect() after Destroy error = %v, want ErrConnectionClosed", err)
	}
}

func TestConnection_LinkLossEmitsTransientDisconnect(t *testing.T) {
	srv := fakeDriver(t, func(_ *http.Request, conn *websocket.Conn) {
		_ = conn.WriteJSON(inboundFrame{Type: frameReady})
	})

	c := dial(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if ev := nextEvent(t, c); ev.Kind != domain.EventReady {
		t.Fatalf("first event = %+v, want ready", ev)
	}
	ev := nextEvent(t, c)
	if ev.Kind != domain.EventDisconnected || ev.Reason != domain.ReasonTransient {
		t.Errorf("event = %+v, want transient disconnect", ev)
	}

	if err := c.SendMessage(context.Background(), "x", "y"); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("SendMessage() on lost link error = %v, want ErrConnectionClosed", err)
	}
}

func TestConnection_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := dial(t, srv)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect() against a non-websocket endpoint should fail")
	}
}
