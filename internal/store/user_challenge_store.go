package store

import (
	"context"

	"stepcoin/internal/models"
)

type UserChallengeStore struct {
	db DB
}

func NewUserChallengeStore(db DB) *UserChallengeStore {
	return &UserChallengeStore{db: db}
}

const userChallengeColumns = `id, user_id, challenge_id, current_progress, steps_mark, distance_mark, last_streak_day, completed, completed_at, joined_at`

func (s *UserChallengeStore) Get(ctx context.Context, tx Getter, userID, challengeID string) (models.UserChallenge, error) {
	var row models.UserChallenge
	err := tx.GetContext(ctx, &row, `
		SELECT `+userChallengeColumns+`
		FROM user_challenges
		WHERE user_id = $1 AND challenge_id = $2
	`, userID, challengeID)
	if err != nil {
		return models.UserChallenge{}, err
	}
	return row, nil
}

func (s *UserChallengeStore) Create(ctx context.Context, tx Execer, uc models.UserChallenge) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_challenges (id, user_id, challenge_id, current_progress, steps_mark, distance_mark, completed, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`, uc.ID, uc.UserID, uc.ChallengeID, uc.CurrentProgress, uc.StepsMark, uc.DistanceMark, uc.JoinedAt)
	return err
}

// Delete removes a participation that has not been completed.
func (s *UserChallengeStore) Delete(ctx context.Context, tx Execer, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM user_challenges
		WHERE id = $1 AND completed = false
	`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *UserChallengeStore) ListActive(ctx context.Context, tx Selecter, userID string) ([]models.UserChallenge, error) {
	rows := []models.UserChallenge{}
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+userChallengeColumns+`
		FROM user_challenges
		WHERE user_id = $1 AND completed = false
		ORDER BY joined_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *UserChallengeStore) ListByUser(ctx context.Context, userID string) ([]models.UserChallengeDetail, error) {
	rows := []models.UserChallengeDetail{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT uc.id, uc.user_id, uc.challenge_id, uc.current_progress, uc.steps_mark, uc.distance_mark,
		       uc.last_streak_day, uc.completed, uc.completed_at, uc.joined_at,
		       c.title, c.type, c.goal, c.reward, c.end_date
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1
		ORDER BY uc.joined_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateProgress stores progress and marks for a participation that is still open.
func (s *UserChallengeStore) UpdateProgress(ctx context.Context, tx Execer, uc models.UserChallenge) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE user_challenges
		SET current_progress = $1, steps_mark = $2, distance_mark = $3, last_streak_day = $4
		WHERE id = $5 AND completed = false
	`, uc.CurrentProgress, uc.StepsMark, uc.DistanceMark, uc.LastStreakDay, uc.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkCompleted flips completed exactly once. Zero rows affected means the
// participation was already completed by someone else.
func (s *UserChallengeStore) MarkCompleted(ctx context.Context, tx Execer, uc models.UserChallenge) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE user_challenges
		SET current_progress = $1, steps_mark = $2, distance_mark = $3, last_streak_day = $4,
		    completed = true, completed_at = $5
		WHERE id = $6 AND completed = false
	`, uc.CurrentProgress, uc.StepsMark, uc.DistanceMark, uc.LastStreakDay, uc.CompletedAt, uc.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
