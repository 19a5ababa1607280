package handler

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/chat-relay/internal/domain"
)

func TestSSEBroker_BroadcastsSessionEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewSSEBroker(ctx, logger)
	srv := httptest.NewServer(broker)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for broker.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(domain.SessionEvent{TenantID: "acme", Status: domain.StatusReady, At: time.Now()})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the event arrived")
			}
			if strings.HasPrefix(line, "data: ") {
				if !strings.Contains(line, `"tenant_id":"acme"`) || !strings.Contains(line, `"status":"READY"`) {
					t.Errorf("unexpected event payload %q", line)
				}
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the session event")
		}
	}
}

func TestSSEBroker_PublishNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	broker := NewSSEBroker(ctx, logger)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sseEventBuffer*2; i++ {
			broker.Publish(domain.SessionEvent{TenantID: "acme"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full queue")
	}
}
