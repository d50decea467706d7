package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stepcoin/internal/activity"
	"stepcoin/internal/models"
	"stepcoin/internal/services"
)

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Accruer interface {
	Accrue(ctx context.Context, userID string, sample models.ActivitySample) (services.AccrualResult, error)
}

type Ticker interface {
	Tick(ctx context.Context, userID string) (services.TickResult, error)
}

// SyncJob pulls a sample for every wallet holder, credits the steps and
// advances their challenges. A failure for one user does not stop the rest.
type SyncJob struct {
	users      UserLister
	source     activity.Source
	accrual    Accruer
	challenges Ticker
}

func NewSyncJob(users UserLister, source activity.Source, accrual Accruer, challenges Ticker) *SyncJob {
	return &SyncJob{users: users, source: source, accrual: accrual, challenges: challenges}
}

// Run is shaped to be passed to AddTask.
func (j *SyncJob) Run(ctx context.Context) error {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	failed := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.SyncUser(ctx, userID); err != nil {
			failed++
			slog.Warn("activity sync failed", "user_id", userID, "error", err)
		}
	}
	slog.Debug("activity sync done", "users", len(userIDs), "failed", failed)
	return nil
}

func (j *SyncJob) SyncUser(ctx context.Context, userID string) error {
	sample, err := j.source.Sample(ctx, userID)
	switch {
	case errors.Is(err, activity.ErrNoData):
	case err != nil:
		return fmt.Errorf("sample: %w", err)
	default:
		result, err := j.accrual.Accrue(ctx, userID, sample)
		if err != nil {
			return fmt.Errorf("accrue: %w", err)
		}
		if result.CoinsCredited > 0 {
			slog.Info("steps credited", "user_id", userID, "coins", result.CoinsCredited, "steps", result.NewSteps)
		}
	}
	if _, err := j.challenges.Tick(ctx, userID); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}
