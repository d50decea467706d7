package services

import (
	"context"
	"math"

	"stepcoin/internal/models"
)

const (
	stepsPerScorePoint  = 100000
	maxStepScore        = 50
	pointsPerEarnedTx   = 5
	maxTransactionScore = 50
)

// CalculateFitnessScore blends lifetime steps with the number of earning
// events into a 0-100 score.
func CalculateFitnessScore(wallet models.Wallet, earnedCount int64) int {
	stepScore := math.Min(float64(wallet.StepsCounted)/stepsPerScorePoint, maxStepScore)
	txScore := math.Min(float64(earnedCount)*pointsPerEarnedTx, maxTransactionScore)
	score := int(math.Floor(stepScore + txScore))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (l *Ledger) FitnessScore(ctx context.Context, userID string) (int, error) {
	wallet, err := l.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	earned, err := l.ledger.CountByKind(ctx, userID, models.KindEarned)
	if err != nil {
		return 0, err
	}
	return CalculateFitnessScore(wallet, earned), nil
}
