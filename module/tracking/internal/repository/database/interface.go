package database

import (
	"context"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

// PositionStore persists the two durable outputs of a tracking session.
type PositionStore interface {
	WriteCurrentPosition(ctx context.Context, pos *domain.CurrentPosition) error
	AppendHistory(ctx context.Context, sessionID string, point *domain.HistoryPoint) error
	GetCurrentPosition(ctx context.Context, userID string) (*domain.CurrentPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.HistoryPoint, error)
}
