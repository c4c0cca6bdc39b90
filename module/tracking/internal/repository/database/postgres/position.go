package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/database"
)

var _ database.PositionStore = (*PositionRepo)(nil)

var ErrNotFound = errors.New("not found")

type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

func (r *PositionRepo) WriteCurrentPosition(ctx context.Context, pos *domain.CurrentPosition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO current_positions (user_id, latitude, longitude, accuracy, geohash, distance, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy = EXCLUDED.accuracy,
			geohash = EXCLUDED.geohash,
			distance = EXCLUDED.distance,
			updated_at = EXCLUDED.updated_at`,
		pos.UserID, pos.Lat, pos.Lon, pos.Accuracy, pos.Geohash, pos.Distance, pos.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert current position %s: %w", pos.UserID, err)
	}
	return nil
}

func (r *PositionRepo) AppendHistory(ctx context.Context, sessionID string, point *domain.HistoryPoint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO position_history (id, session_id, latitude, longitude, accuracy, speed, captured_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		point.ID, sessionID, point.Lat, point.Lon, point.Accuracy, nullFloat(point.Speed), point.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return nil
}

func (r *PositionRepo) GetCurrentPosition(ctx context.Context, userID string) (*domain.CurrentPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, accuracy, geohash, distance, updated_at FROM current_positions WHERE user_id = $1`,
		userID,
	)

	var pos domain.CurrentPosition
	err := row.Scan(&pos.UserID, &pos.Lat, &pos.Lon, &pos.Accuracy, &pos.Geohash, &pos.Distance, &pos.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current position %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (r *PositionRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.HistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, latitude, longitude, accuracy, speed, captured_at FROM position_history WHERE session_id = $1 AND captured_at >= $2 AND captured_at <= $3 ORDER BY captured_at ASC`,
		query.SessionID, query.Start, query.End,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.HistoryPoint
	for rows.Next() {
		var (
			p     domain.HistoryPoint
			speed sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Lat, &p.Lon, &p.Accuracy, &speed, &p.CapturedAt); err != nil {
			return nil, err
		}
		if speed.Valid {
			p.Speed = &speed.Float64
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
