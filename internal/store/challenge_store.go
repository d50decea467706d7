package store

import (
	"context"

	"stepcoin/internal/models"
)

type ChallengeStore struct {
	db DB
}

func NewChallengeStore(db DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func (s *ChallengeStore) Create(ctx context.Context, tx Execer, c models.Challenge) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO challenges (id, title, description, entry_fee, reward, start_date, end_date, type, goal, daily_target)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.Title, c.Description, c.EntryFee, c.Reward, c.StartDate, c.EndDate, string(c.Type), c.Goal, c.DailyTarget)
	return err
}

// participants is always derived, never stored.
const challengeColumns = `
		SELECT c.id, c.title, c.description, c.entry_fee, c.reward, c.start_date, c.end_date,
		       c.type, c.goal, c.daily_target, c.created_at,
		       (SELECT COUNT(1) FROM user_challenges uc WHERE uc.challenge_id = c.id) AS participants_count
		FROM challenges c
`

func (s *ChallengeStore) List(ctx context.Context) ([]models.Challenge, error) {
	rows := []models.Challenge{}
	err := s.db.SelectContext(ctx, &rows, challengeColumns+`
		ORDER BY c.start_date, c.title
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ChallengeStore) GetByID(ctx context.Context, challengeID string) (models.Challenge, error) {
	var row models.Challenge
	err := s.db.GetContext(ctx, &row, challengeColumns+`
		WHERE c.id = $1
	`, challengeID)
	if err != nil {
		return models.Challenge{}, err
	}
	return row, nil
}
