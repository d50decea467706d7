package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stepcoin/internal/db"
	"stepcoin/internal/models"
	"stepcoin/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Challenges runs the join, progress and completion state machine. Entry
// fees and rewards move through the ledger in the same transaction as the
// participation change.
type Challenges struct {
	txRunner       db.TxRunner
	ledger         *Ledger
	challenges     ChallengeStore
	userChallenges UserChallengeStore
	cursors        CursorStore
	activity       ActivityStore
	audit          AuditStore
	now            func() time.Time
}

func NewChallenges(txRunner db.TxRunner, ledger *Ledger, challenges ChallengeStore, userChallenges UserChallengeStore, cursors CursorStore, activity ActivityStore, audit AuditStore) *Challenges {
	return &Challenges{
		txRunner:       txRunner,
		ledger:         ledger,
		challenges:     challenges,
		userChallenges: userChallenges,
		cursors:        cursors,
		activity:       activity,
		audit:          audit,
		now:            time.Now,
	}
}

type TickResult struct {
	Updated   int                    `json:"updated"`
	Completed []models.UserChallenge `json:"completed"`
	Rewarded  int64                  `json:"rewarded"`
}

func (c *Challenges) Catalog(ctx context.Context) ([]models.Challenge, error) {
	return c.challenges.List(ctx)
}

func (c *Challenges) UserChallenges(ctx context.Context, userID string) ([]models.UserChallengeDetail, error) {
	return c.userChallenges.ListByUser(ctx, userID)
}

func (c *Challenges) Join(ctx context.Context, userID, challengeID string) (models.UserChallenge, error) {
	challenge, err := c.challenge(ctx, challengeID)
	if err != nil {
		return models.UserChallenge{}, err
	}
	now := c.now().UTC()
	if challenge.Ended(now) {
		return models.UserChallenge{}, ErrChallengeEnded
	}
	var created models.UserChallenge
	var wallet models.Wallet
	err = c.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = c.ledger.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := c.userChallenges.Get(ctx, tx, userID, challengeID); err == nil {
			return ErrAlreadyJoined
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if challenge.EntryFee > 0 {
			if _, err := c.ledger.debit(ctx, tx, &wallet, challenge.EntryFee, fmt.Sprintf("Joined %s challenge", challenge.Title)); err != nil {
				return err
			}
		}
		cursor, err := c.cursors.Get(ctx, tx, userID)
		if err != nil {
			return err
		}
		created = models.UserChallenge{
			ID:              uuid.NewString(),
			UserID:          userID,
			ChallengeID:     challengeID,
			CurrentProgress: decimal.Zero,
			StepsMark:       wallet.StepsCounted,
			DistanceMark:    cursor.DistanceCounted,
			JoinedAt:        now,
		}
		if err := c.userChallenges.Create(ctx, tx, created); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadyJoined
			}
			return err
		}
		return c.log(ctx, tx, userID, "challenge_joined", created.ID, map[string]any{
			"challenge_id": challengeID,
			"entry_fee":    challenge.EntryFee,
		})
	})
	if err != nil {
		return models.UserChallenge{}, err
	}
	if challenge.EntryFee > 0 {
		c.ledger.publish(wallet)
	}
	return created, nil
}

// Leave abandons an open participation. The entry fee is not refunded.
func (c *Challenges) Leave(ctx context.Context, userID, challengeID string) error {
	return c.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := c.ledger.lockWallet(ctx, tx, userID); err != nil {
			return err
		}
		uc, err := c.userChallenges.Get(ctx, tx, userID, challengeID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotJoined
		}
		if err != nil {
			return err
		}
		if uc.Completed {
			return ErrChallengeAlreadyCompleted
		}
		rows, err := c.userChallenges.Delete(ctx, tx, uc.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrChallengeAlreadyCompleted
		}
		return c.log(ctx, tx, userID, "challenge_left", uc.ID, map[string]any{
			"challenge_id": challengeID,
			"progress":     uc.CurrentProgress.String(),
		})
	})
}

// Tick advances every open, unexpired participation of userID from the
// activity observed since the previous tick.
func (c *Challenges) Tick(ctx context.Context, userID string) (TickResult, error) {
	var result TickResult
	var wallet models.Wallet
	err := c.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result = TickResult{Completed: []models.UserChallenge{}}
		wallet, err = c.tick(ctx, tx, userID, &result)
		return err
	})
	if err != nil {
		return TickResult{}, err
	}
	if result.Rewarded > 0 {
		c.ledger.publish(wallet)
	}
	return result, nil
}

func (c *Challenges) tick(ctx context.Context, tx store.Tx, userID string, result *TickResult) (models.Wallet, error) {
	wallet, err := c.ledger.lockWallet(ctx, tx, userID)
	if err != nil {
		return wallet, err
	}
	active, err := c.userChallenges.ListActive(ctx, tx, userID)
	if err != nil {
		return wallet, err
	}
	if len(active) == 0 {
		return wallet, nil
	}
	cursor, err := c.cursors.Get(ctx, tx, userID)
	if err != nil {
		return wallet, err
	}
	now := c.now().UTC()
	today := models.Day(now)
	todaySteps, err := c.activity.DailySteps(ctx, tx, userID, today)
	if err != nil {
		return wallet, err
	}
	catalog := map[string]models.Challenge{}
	for _, uc := range active {
		challenge, ok := catalog[uc.ChallengeID]
		if !ok {
			challenge, err = c.challenge(ctx, uc.ChallengeID)
			if err != nil {
				return wallet, err
			}
			catalog[uc.ChallengeID] = challenge
		}
		if challenge.Ended(now) {
			continue
		}
		next := advance(challenge, uc, wallet.StepsCounted, cursor.DistanceCounted, todaySteps, now)
		if !next.Completed {
			if _, err := c.userChallenges.UpdateProgress(ctx, tx, next); err != nil {
				return wallet, err
			}
			result.Updated++
			continue
		}
		rows, err := c.userChallenges.MarkCompleted(ctx, tx, next)
		if err != nil {
			return wallet, err
		}
		if rows == 0 {
			continue
		}
		result.Updated++
		result.Completed = append(result.Completed, next)
		if challenge.Reward > 0 {
			if _, err := c.ledger.credit(ctx, tx, &wallet, challenge.Reward, "Challenge completed: "+challenge.Title); err != nil {
				return wallet, err
			}
			result.Rewarded += challenge.Reward
		}
		if err := c.log(ctx, tx, userID, "challenge_completed", next.ID, map[string]any{
			"challenge_id": challenge.ID,
			"reward":       challenge.Reward,
		}); err != nil {
			return wallet, err
		}
		slog.Info("challenge completed", "user_id", userID, "challenge", challenge.Title, "reward", challenge.Reward)
	}
	return wallet, nil
}

// advance computes the next state of uc. Marks always move to the current
// totals so activity is counted once; before the start date only the marks
// move.
func advance(challenge models.Challenge, uc models.UserChallenge, stepsCounted int64, distanceCounted decimal.Decimal, todaySteps int64, now time.Time) models.UserChallenge {
	next := uc
	next.StepsMark = stepsCounted
	next.DistanceMark = distanceCounted
	if !challenge.Started(now) {
		return next
	}
	inc := decimal.Zero
	switch challenge.Type {
	case models.ChallengeSteps:
		if d := stepsCounted - uc.StepsMark; d > 0 {
			inc = decimal.NewFromInt(d)
		}
	case models.ChallengeDistance:
		if d := distanceCounted.Sub(uc.DistanceMark); d.IsPositive() {
			inc = d
		}
	case models.ChallengeStreak:
		today := models.Day(now)
		target := challenge.DailyTarget
		if target <= 0 {
			target = models.DefaultDailyTarget
		}
		counted := uc.LastStreakDay != nil && !models.Day(*uc.LastStreakDay).Before(today)
		if !counted && todaySteps >= target {
			inc = decimal.NewFromInt(1)
			next.LastStreakDay = &today
		}
	}
	progress := uc.CurrentProgress.Add(inc)
	if progress.GreaterThanOrEqual(challenge.Goal) {
		progress = challenge.Goal
		completedAt := now
		next.Completed = true
		next.CompletedAt = &completedAt
	}
	next.CurrentProgress = progress
	return next
}

// Seed validates and inserts catalog entries in one transaction.
func (c *Challenges) Seed(ctx context.Context, actorID string, entries []models.Challenge) ([]models.Challenge, error) {
	created := make([]models.Challenge, 0, len(entries))
	for _, entry := range entries {
		entry, err := normalizeChallenge(entry)
		if err != nil {
			return nil, err
		}
		created = append(created, entry)
	}
	if len(created) == 0 {
		return created, nil
	}
	err := c.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, entry := range created {
			if err := c.challenges.Create(ctx, tx, entry); err != nil {
				return err
			}
			if err := c.log(ctx, tx, actorID, "challenge_created", entry.ID, map[string]any{
				"title": entry.Title,
				"type":  entry.Type,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func normalizeChallenge(entry models.Challenge) (models.Challenge, error) {
	entry.Title = strings.TrimSpace(entry.Title)
	if entry.Title == "" {
		return entry, fmt.Errorf("%w: title is required", ErrInvalidChallenge)
	}
	if !entry.Type.Valid() {
		return entry, fmt.Errorf("%w: unknown type %q", ErrInvalidChallenge, entry.Type)
	}
	entry.Goal = entry.Goal.Round(2)
	if !entry.Goal.IsPositive() {
		return entry, fmt.Errorf("%w: goal must be positive", ErrInvalidChallenge)
	}
	if entry.EntryFee < 0 || entry.Reward < 0 {
		return entry, fmt.Errorf("%w: fee and reward must not be negative", ErrInvalidChallenge)
	}
	if entry.StartDate.IsZero() || entry.EndDate.IsZero() || entry.EndDate.Before(entry.StartDate) {
		return entry, fmt.Errorf("%w: start date must not be after end date", ErrInvalidChallenge)
	}
	if entry.DailyTarget <= 0 {
		entry.DailyTarget = models.DefaultDailyTarget
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ParticipantsCount = 0
	return entry, nil
}

func (c *Challenges) challenge(ctx context.Context, challengeID string) (models.Challenge, error) {
	challenge, err := c.challenges.GetByID(ctx, challengeID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (c *Challenges) log(ctx context.Context, tx store.Execer, actorID, action, entityID string, payload map[string]any) error {
	data, _ := json.Marshal(payload)
	return c.audit.Log(ctx, tx, actorID, action, "user_challenge", entityID, string(data))
}
