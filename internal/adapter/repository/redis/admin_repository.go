package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/chat-relay/internal/domain"
)

// AdminRepository implements domain.StreamAdminRepository for Redis.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAdminRepository creates a new Redis admin repository.
func NewAdminRepository(client *redis.Client, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger,
	}
}

// Overview returns the stream length and its consumer groups.
func (r *AdminRepository) Overview(ctx context.Context, stream string) (*domain.StreamOverview, error) {
	length, err := r.client.XLen(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get length of stream %s: %w", stream, err)
	}

	groups, err := r.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", stream, err)
	}

	overview := &domain.StreamOverview{
		Length: length,
		Groups: make([]domain.ConsumerGroupInfo, len(groups)),
		At:     time.Now().UTC(),
	}
	for i, g := range groups {
		overview.Groups[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return overview, nil
}

// Recent returns the newest count records, newest first.
func (r *AdminRepository) Recent(ctx context.Context, stream string, count int64) ([]domain.DispatchRecord, error) {
	messages, err := r.client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent records from stream %s: %w", stream, err)
	}
	return decodeRecords(messages, r.logger), nil
}

// PendingSummary retrieves a summary of records not yet archived by a group.
func (r *AdminRepository) PendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	pending, err := r.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary for stream %s, group %s: %w", stream, group, err)
	}

	return pendingSummary(pending), nil
}

func pendingSummary(p *redis.XPending) *domain.PendingMessageSummary {
	return &domain.PendingMessageSummary{
		Total:          p.Count,
		FirstMessageID: p.Lower,
		LastMessageID:  p.Higher,
		ConsumerTotals: p.Consumers,
	}
}
