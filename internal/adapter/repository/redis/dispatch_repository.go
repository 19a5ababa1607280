package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/chat-relay/internal/adapter/metrics"
	"github.com/V4T54L/chat-relay/internal/domain"
)

const (
	payloadField    = "payload"
	streamMaxLength = 100_000
	readBlock       = 2 * time.Second
)

// ErrStreamUnavailable is returned by Append while Redis is unreachable.
var ErrStreamUnavailable = errors.New("dispatch stream unavailable")

// DispatchRepository implements domain.DispatchBuffer on a Redis Stream.
// Appends are skipped while Redis is known to be down; a background health
// check flips availability back.
type DispatchRepository struct {
	client      *redis.Client
	logger      *slog.Logger
	stream      string
	metrics     *metrics.RelayMetrics
	isAvailable atomic.Bool
}

// NewDispatchRepository creates a Redis-backed DispatchRepository and makes
// sure the consumer group exists. A Redis outage at startup is not fatal.
func NewDispatchRepository(client *redis.Client, logger *slog.Logger, stream, group string, m *metrics.RelayMetrics) *DispatchRepository {
	repo := &DispatchRepository{
		client:  client,
		logger:  logger.With("component", "redis_dispatch_repository"),
		stream:  stream,
		metrics: m,
	}
	repo.setAvailable(true)

	if err := repo.setupConsumerGroup(context.Background(), group); err != nil {
		repo.setAvailable(false)
		repo.logger.Error("Failed to setup consumer group, Redis may be unavailable on startup", "error", err)
	}

	return repo
}

// StartHealthCheck monitors Redis connectivity until ctx is cancelled.
func (r *DispatchRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Starting Redis health check")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			err := r.client.Ping(ctx).Err()
			if err != nil {
				if r.isAvailable.CompareAndSwap(true, false) {
					r.gauge(false)
					r.logger.Error("Redis connection lost", "error", err)
				}
			} else if r.isAvailable.CompareAndSwap(false, true) {
				r.gauge(true)
				r.logger.Info("Redis connection recovered")
			}
		}
	}
}

// Available reports the last known Redis availability.
func (r *DispatchRepository) Available() bool {
	return r.isAvailable.Load()
}

func (r *DispatchRepository) setAvailable(ok bool) {
	r.isAvailable.Store(ok)
	r.gauge(ok)
}

func (r *DispatchRepository) gauge(ok bool) {
	if r.metrics == nil {
		return
	}
	if ok {
		r.metrics.AuditStreamAvailable.Set(1)
	} else {
		r.metrics.AuditStreamAvailable.Set(0)
	}
}

func (r *DispatchRepository) setupConsumerGroup(ctx context.Context, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Append adds a dispatch record to the stream.
func (r *DispatchRepository) Append(ctx context.Context, record domain.DispatchRecord) error {
	if !r.isAvailable.Load() {
		return ErrStreamUnavailable
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: streamMaxLength,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		if isNetworkError(err) && r.isAvailable.CompareAndSwap(true, false) {
			r.gauge(false)
			r.logger.Error("Redis connection lost during write", "error", err)
		}
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadBatch reads a batch of records from the stream for a consumer group.
func (r *DispatchRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.DispatchRecord, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.stream, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 {
		return nil, nil
	}
	return decodeRecords(streams[0].Messages, r.logger), nil
}

// Acknowledge acknowledges archived messages in the stream.
func (r *DispatchRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// decodeRecords turns stream messages into records, skipping malformed ones.
func decodeRecords(messages []redis.XMessage, logger *slog.Logger) []domain.DispatchRecord {
	records := make([]domain.DispatchRecord, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values[payloadField].(string)
		if !ok {
			logger.Warn("Invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}

		var rec domain.DispatchRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			logger.Warn("Failed to unmarshal dispatch record from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		rec.StreamMessageID = msg.ID
		records = append(records, rec)
	}
	return records
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
