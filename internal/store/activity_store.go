package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stepcoin/internal/models"

	"github.com/shopspring/decimal"
)

type ActivityStore struct {
	db DB
}

func NewActivityStore(db DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) RecordSample(ctx context.Context, tx Execer, sample models.ActivitySample) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_samples (user_id, steps, distance_meters, sampled_at)
		VALUES ($1, $2, $3, $4)
	`, sample.UserID, sample.Steps, sample.DistanceMeters, sample.SampledAt)
	return err
}

func (s *ActivityStore) LatestSample(ctx context.Context, userID string) (models.ActivitySample, error) {
	var row models.ActivitySample
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, steps, distance_meters, sampled_at
		FROM activity_samples
		WHERE user_id = $1
		ORDER BY sampled_at DESC, id DESC
		LIMIT 1
	`, userID)
	if err != nil {
		return models.ActivitySample{}, err
	}
	return row, nil
}

// AddDaily accumulates newly observed activity into the UTC day bucket.
func (s *ActivityStore) AddDaily(ctx context.Context, tx Execer, userID string, day time.Time, steps int64, distance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_activity (user_id, day, steps, distance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, day) DO UPDATE
		SET steps = daily_activity.steps + EXCLUDED.steps,
		    distance = daily_activity.distance + EXCLUDED.distance
	`, userID, models.Day(day), steps, distance)
	return err
}

func (s *ActivityStore) DailySteps(ctx context.Context, tx Getter, userID string, day time.Time) (int64, error) {
	var steps int64
	err := tx.GetContext(ctx, &steps, `
		SELECT steps
		FROM daily_activity
		WHERE user_id = $1 AND day = $2
	`, userID, models.Day(day))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return steps, err
}

func (s *ActivityStore) History(ctx context.Context, userID string, days int) ([]models.DailyActivity, error) {
	rows := []models.DailyActivity{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, day, steps, distance
		FROM daily_activity
		WHERE user_id = $1
		ORDER BY day DESC
		LIMIT $2
	`, userID, days)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
