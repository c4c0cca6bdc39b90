package service

import (
	"context"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/database"
)

// LocationService answers read queries over what the sinks have written.
type LocationService struct {
	repo database.PositionStore
}

func NewLocationService(repo database.PositionStore) *LocationService {
	return &LocationService{repo: repo}
}

func (s *LocationService) GetCurrentPosition(ctx context.Context, userID string) (*domain.CurrentPosition, error) {
	return s.repo.GetCurrentPosition(ctx, userID)
}

func (s *LocationService) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.HistoryPoint, error) {
	return s.repo.GetHistory(ctx, query)
}
