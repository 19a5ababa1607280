package usecase

import (
	"context"

	"github.com/V4T54L/chat-relay/internal/domain"
)

const defaultRecentCount = 100

// AdminDispatchUseCase exposes the dispatch audit stream to operators.
type AdminDispatchUseCase struct {
	repo   domain.StreamAdminRepository
	stream string
}

// NewAdminDispatchUseCase creates a new AdminDispatchUseCase.
func NewAdminDispatchUseCase(repo domain.StreamAdminRepository, stream string) *AdminDispatchUseCase {
	return &AdminDispatchUseCase{repo: repo, stream: stream}
}

func (uc *AdminDispatchUseCase) Overview(ctx context.Context) (*domain.StreamOverview, error) {
	return uc.repo.Overview(ctx, uc.stream)
}

func (uc *AdminDispatchUseCase) Recent(ctx context.Context, count int64) ([]domain.DispatchRecord, error) {
	if count <= 0 {
		count = defaultRecentCount
	}
	return uc.repo.Recent(ctx, uc.stream, count)
}

func (uc *AdminDispatchUseCase) PendingSummary(ctx context.Context, group string) (*domain.PendingMessageSummary, error) {
	return uc.repo.PendingSummary(ctx, uc.stream, group)
}
