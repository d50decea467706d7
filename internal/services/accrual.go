package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stepcoin/internal/db"
	"stepcoin/internal/models"
	"stepcoin/internal/store"
	"stepcoin/internal/validator"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const StepsPerCoin = 1000

type AccrualResult struct {
	CoinsCredited int64           `json:"coins_credited"`
	StepDelta     int64           `json:"step_delta"`
	NewSteps      int64           `json:"new_steps"`
	DistanceDelta decimal.Decimal `json:"distance_delta"`
	Stale         bool            `json:"stale"`
	Reset         bool            `json:"reset"`
	Wallet        models.Wallet   `json:"wallet"`
}

// Accrual turns cumulative activity samples into coin credits.
type Accrual struct {
	txRunner db.TxRunner
	ledger   *Ledger
	cursors  CursorStore
	activity ActivityStore
	now      func() time.Time
}

func NewAccrual(txRunner db.TxRunner, ledger *Ledger, cursors CursorStore, activity ActivityStore) *Accrual {
	return &Accrual{
		txRunner: txRunner,
		ledger:   ledger,
		cursors:  cursors,
		activity: activity,
		now:      time.Now,
	}
}

// Accrue applies one cumulative sample. Replaying a sample, or any sample
// older than the last one applied, is a no-op. A newer sample with fewer steps
// means the source reset and re-baselines the cursor without crediting.
// Distance is stored to the centimetre.
func (a *Accrual) Accrue(ctx context.Context, userID string, sample models.ActivitySample) (AccrualResult, error) {
	if sample.Steps < 0 || sample.Steps > validator.MaxSampleSteps || sample.DistanceMeters.IsNegative() {
		return AccrualResult{}, ErrInvalidSample
	}
	sample.DistanceMeters = sample.DistanceMeters.Round(2)
	if sample.SampledAt.IsZero() {
		sample.SampledAt = a.now()
	}
	sample.SampledAt = sample.SampledAt.UTC()
	sample.UserID = userID

	var result AccrualResult
	err := a.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = a.accrue(ctx, tx, userID, sample)
		return err
	})
	if err != nil {
		return AccrualResult{}, err
	}
	if result.CoinsCredited > 0 || result.NewSteps > 0 {
		a.ledger.publish(result.Wallet)
	}
	return result, nil
}

func (a *Accrual) accrue(ctx context.Context, tx store.Tx, userID string, sample models.ActivitySample) (AccrualResult, error) {
	result := AccrualResult{DistanceDelta: decimal.Zero}
	wallet, err := a.ledger.lockWallet(ctx, tx, userID)
	if err != nil {
		return result, err
	}
	result.Wallet = wallet
	cursor, err := a.cursors.Get(ctx, tx, userID)
	if err != nil {
		return result, fmt.Errorf("load cursor: %w", err)
	}
	if staleSample(cursor, sample) {
		result.Stale = true
		return result, nil
	}

	var newSteps int64
	distanceDelta := decimal.Zero
	if sample.Steps < cursor.LastSeenSteps {
		result.Reset = true
		cursor.LastCountedSteps = sample.Steps
		cursor.LastSeenSteps = sample.Steps
	} else {
		newSteps = sample.Steps - cursor.LastSeenSteps
		cursor.LastSeenSteps = sample.Steps
	}
	if sample.DistanceMeters.LessThan(cursor.LastSeenDistance) {
		cursor.LastSeenDistance = sample.DistanceMeters
	} else {
		distanceDelta = sample.DistanceMeters.Sub(cursor.LastSeenDistance)
		cursor.LastSeenDistance = sample.DistanceMeters
		cursor.DistanceCounted = cursor.DistanceCounted.Add(distanceDelta)
	}

	delta := sample.Steps - cursor.LastCountedSteps
	if delta < 0 {
		delta = 0
	}
	coins := delta / StepsPerCoin

	wallet.StepsCounted += newSteps
	if coins > 0 {
		if _, err := a.ledger.credit(ctx, tx, &wallet, coins, fmt.Sprintf("Earned for %d steps", delta)); err != nil {
			return result, err
		}
		cursor.LastCountedSteps += delta
	} else if newSteps > 0 {
		wallet.LastUpdated = a.now().UTC()
		if err := a.ledger.wallets.Update(ctx, tx, wallet); err != nil {
			return result, fmt.Errorf("update wallet: %w", err)
		}
	}

	sampledAt := sample.SampledAt
	cursor.UserID = userID
	cursor.LastSampledAt = &sampledAt
	if err := a.cursors.Save(ctx, tx, cursor); err != nil {
		return result, fmt.Errorf("save cursor: %w", err)
	}
	if err := a.activity.RecordSample(ctx, tx, sample); err != nil {
		return result, fmt.Errorf("record sample: %w", err)
	}
	if newSteps > 0 || distanceDelta.IsPositive() {
		if err := a.activity.AddDaily(ctx, tx, userID, sample.SampledAt, newSteps, distanceDelta); err != nil {
			return result, fmt.Errorf("add daily activity: %w", err)
		}
	}

	if result.Reset {
		slog.Info("activity source reset", "user_id", userID, "steps", sample.Steps)
	}
	result.CoinsCredited = coins
	result.StepDelta = delta
	result.NewSteps = newSteps
	result.DistanceDelta = distanceDelta
	result.Wallet = wallet
	return result, nil
}

// staleSample reports whether sample is older than the last one applied. A
// sample carrying the same timestamp still counts when it reports more steps.
func staleSample(cursor models.StepCursor, sample models.ActivitySample) bool {
	if cursor.LastSampledAt == nil {
		return false
	}
	last := *cursor.LastSampledAt
	if sample.SampledAt.Before(last) {
		return true
	}
	return sample.SampledAt.Equal(last) && sample.Steps <= cursor.LastSeenSteps
}
