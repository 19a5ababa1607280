package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/domain"
	"github.com/V4T54L/chat-relay/internal/domain/mocks"
)

func TestArchiveDispatchUseCase_ArchiveBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testRecords := []domain.DispatchRecord{
		{ID: "1", StreamMessageID: "msg1", TenantID: "acme", Outcome: domain.OutcomeSent},
		{ID: "2", StreamMessageID: "msg2", TenantID: "acme", Outcome: domain.OutcomeTransportError},
	}

	t.Run("Successful Archive", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.NewRelayMetrics(reg)
		buffer := &mocks.MockDispatchBuffer{ReadBatchResult: testRecords}
		sink := &mocks.MockDispatchSink{}
		uc := NewArchiveDispatchUseCase(buffer, sink, m, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ArchiveBatch(context.Background())

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != len(testRecords) {
			t.Errorf("expected archived count to be %d, got %d", len(testRecords), count)
		}
		if len(sink.Written) != 2 {
			t.Errorf("expected 2 records written to sink, got %d", len(sink.Written))
		}
		if len(buffer.AckedMessageIDs) != 2 || buffer.AckedMessageIDs[0] != "msg1" {
			t.Errorf("expected msg1 and msg2 to be acked, got %v", buffer.AckedMessageIDs)
		}
		if got := metricValue(t, reg, "chat_relay_audit_archived_records_total"); got != 2 {
			t.Errorf("expected archived_records_total 2, got %v", got)
		}
	})

	t.Run("Sink Failure Leaves Records Pending", func(t *testing.T) {
		buffer := &mocks.MockDispatchBuffer{ReadBatchResult: testRecords}
		sink := &mocks.MockDispatchSink{WriteErr: errors.New("database is down")}
		uc := NewArchiveDispatchUseCase(buffer, sink, nil, logger, "group", "consumer", 2, time.Millisecond)

		count, err := uc.ArchiveBatch(context.Background())

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if count != 0 {
			t.Errorf("expected archived count to be 0, got %d", count)
		}
		if sink.Calls != 2 {
			t.Errorf("expected 2 write attempts, got %d", sink.Calls)
		}
		if len(buffer.AckedMessageIDs) != 0 {
			t.Errorf("expected no acks after sink failure, got %v", buffer.AckedMessageIDs)
		}
	})

	t.Run("Buffer Read Error", func(t *testing.T) {
		buffer := &mocks.MockDispatchBuffer{ReadErr: errors.New("redis connection failed")}
		sink := &mocks.MockDispatchSink{}
		uc := NewArchiveDispatchUseCase(buffer, sink, nil, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ArchiveBatch(context.Background())

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if count != 0 {
			t.Errorf("expected archived count to be 0, got %d", count)
		}
	})

	t.Run("Ack Failure", func(t *testing.T) {
		buffer := &mocks.MockDispatchBuffer{ReadBatchResult: testRecords, AckErr: errors.New("ack failed")}
		sink := &mocks.MockDispatchSink{}
		uc := NewArchiveDispatchUseCase(buffer, sink, nil, logger, "group", "consumer", 3, time.Millisecond)

		if _, err := uc.ArchiveBatch(context.Background()); err == nil {
			t.Fatal("expected an error, got nil")
		}
		if len(sink.Written) != 2 {
			t.Errorf("expected records to reach the sink before the ack, got %d", len(sink.Written))
		}
	})

	t.Run("No Records to Archive", func(t *testing.T) {
		buffer := &mocks.MockDispatchBuffer{ReadBatchResult: []domain.DispatchRecord{}}
		sink := &mocks.MockDispatchSink{}
		uc := NewArchiveDispatchUseCase(buffer, sink, nil, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ArchiveBatch(context.Background())

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 0 {
			t.Errorf("expected archived count to be 0, got %d", count)
		}
		if sink.Calls != 0 {
			t.Error("sink should not be called with no records")
		}
	})
}
