package store

import (
	"context"
	"database/sql"
	"errors"

	"stepcoin/internal/models"

	"github.com/shopspring/decimal"
)

type CursorStore struct {
	db DB
}

func NewCursorStore(db DB) *CursorStore {
	return &CursorStore{db: db}
}

// Get returns the cursor for userID, or a zero cursor when none was saved yet.
// Callers hold the wallet row lock.
func (s *CursorStore) Get(ctx context.Context, tx Getter, userID string) (models.StepCursor, error) {
	var row models.StepCursor
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, last_counted_steps, last_seen_steps, last_seen_distance, distance_counted, last_sampled_at
		FROM step_cursors
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StepCursor{
			UserID:           userID,
			LastSeenDistance: decimal.Zero,
			DistanceCounted:  decimal.Zero,
		}, nil
	}
	if err != nil {
		return models.StepCursor{}, err
	}
	return row, nil
}

func (s *CursorStore) Save(ctx context.Context, tx Execer, cursor models.StepCursor) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO step_cursors (user_id, last_counted_steps, last_seen_steps, last_seen_distance, distance_counted, last_sampled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET last_counted_steps = EXCLUDED.last_counted_steps,
		    last_seen_steps = EXCLUDED.last_seen_steps,
		    last_seen_distance = EXCLUDED.last_seen_distance,
		    distance_counted = EXCLUDED.distance_counted,
		    last_sampled_at = EXCLUDED.last_sampled_at
	`, cursor.UserID, cursor.LastCountedSteps, cursor.LastSeenSteps, cursor.LastSeenDistance, cursor.DistanceCounted, cursor.LastSampledAt)
	return err
}
