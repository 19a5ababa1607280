package redis

import (
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/chat-relay/internal/domain"
)

func TestDecodeRecords(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messages := []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{payloadField: `{"dispatch_id":"a","tenant_id":"acme","target":"85985304415","outcome":"sent","duration_ms":12,"at":"2026-01-01T00:00:00Z"}`}},
		{ID: "2-0", Values: map[string]interface{}{"data": "wrong field"}},
		{ID: "3-0", Values: map[string]interface{}{payloadField: `{not json`}},
		{ID: "4-0", Values: map[string]interface{}{payloadField: `{"dispatch_id":"b","tenant_id":"acme","outcome":"transport_error","error":"boom"}`}},
	}

	records := decodeRecords(messages, logger)

	if len(records) != 2 {
		t.Fatalf("expected 2 decoded records, got %d", len(records))
	}
	if records[0].ID != "a" || records[0].StreamMessageID != "1-0" || records[0].Outcome != domain.OutcomeSent {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].ID != "b" || records[1].StreamMessageID != "4-0" || records[1].Error != "boom" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}
