package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/domain"
)

const (
	defaultArchiveBatchSize    = 500
	defaultArchiveRetryCount   = 3
	defaultArchiveRetryBackoff = 1 * time.Second
)

// ArchiveDispatchUseCase moves dispatch records from the audit stream into
// the long-term archive.
type ArchiveDispatchUseCase struct {
	buffer       domain.DispatchBuffer
	sink         domain.DispatchSink
	metrics      *metrics.RelayMetrics
	logger       *slog.Logger
	group        string
	consumer     string
	retryCount   int
	retryBackoff time.Duration
}

// NewArchiveDispatchUseCase creates the archiver. Non-positive retry
// settings fall back to 3 attempts with a one second backoff.
func NewArchiveDispatchUseCase(buffer domain.DispatchBuffer, sink domain.DispatchSink, m *metrics.RelayMetrics, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *ArchiveDispatchUseCase {
	if retryCount <= 0 {
		retryCount = defaultArchiveRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultArchiveRetryBackoff
	}
	return &ArchiveDispatchUseCase{
		buffer:       buffer,
		sink:         sink,
		metrics:      m,
		logger:       logger.With("component", "dispatch_archiver"),
		group:        group,
		consumer:     consumer,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// ArchiveBatch reads a batch of records, writes them to the sink and
// acknowledges them in the stream on success.
func (uc *ArchiveDispatchUseCase) ArchiveBatch(ctx context.Context) (int, error) {
	records, err := uc.buffer.ReadBatch(ctx, uc.group, uc.consumer, defaultArchiveBatchSize)
	if err != nil {
		uc.logger.Error("failed to read dispatch batch from stream", "error", err)
		return 0, err
	}

	if len(records) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read batch of dispatch records", "count", len(records))

	if err := uc.writeWithRetry(ctx, records); err != nil {
		// Left unacknowledged; the records stay pending and are read again.
		uc.logger.Error("failed to archive dispatch batch after retries", "error", err)
		return 0, err
	}

	messageIDs := make([]string, len(records))
	for i, rec := range records {
		messageIDs[i] = rec.StreamMessageID
	}

	if err := uc.buffer.Acknowledge(ctx, uc.group, messageIDs...); err != nil {
		// Archived but not acked: they will be archived again, the sink upserts by dispatch_id.
		uc.logger.Error("failed to acknowledge dispatch records", "error", err)
		return 0, err
	}

	if uc.metrics != nil {
		uc.metrics.ArchivedRecords.Add(float64(len(records)))
	}
	uc.logger.Info("archived dispatch batch", "count", len(records))
	return len(records), nil
}

// Run archives batches every interval until ctx is cancelled.
func (uc *ArchiveDispatchUseCase) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping dispatch archiver")
			return
		case <-ticker.C:
			// Drain while there is a backlog.
			for {
				n, err := uc.ArchiveBatch(ctx)
				if err != nil || n == 0 || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (uc *ArchiveDispatchUseCase) writeWithRetry(ctx context.Context, records []domain.DispatchRecord) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.sink.WriteBatch(ctx, records)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write dispatch batch to archive, retrying...", "attempt", i+1, "error", err)
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
