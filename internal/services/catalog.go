package services

import (
	"time"

	"stepcoin/internal/models"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// DemoCatalog returns the starter challenges, dated relative to now.
func DemoCatalog(now time.Time) []models.Challenge {
	now = now.UTC()
	return []models.Challenge{
		{
			Title:       "Weekend Warrior",
			Description: "Walk 20,000 steps over the weekend",
			EntryFee:    5,
			Reward:      20,
			StartDate:   now.Add(-1 * day),
			EndDate:     now.Add(3 * day),
			Type:        models.ChallengeSteps,
			Goal:        decimal.NewFromInt(20000),
		},
		{
			Title:       "Marathon Month",
			Description: "Cover a full marathon distance in one month",
			EntryFee:    10,
			Reward:      50,
			StartDate:   now.Add(-5 * day),
			EndDate:     now.Add(25 * day),
			Type:        models.ChallengeDistance,
			Goal:        decimal.NewFromInt(42200),
		},
		{
			Title:       "Daily 10K",
			Description: "Hit 10,000 steps every day for a week",
			EntryFee:    7,
			Reward:      30,
			StartDate:   now,
			EndDate:     now.Add(7 * day),
			Type:        models.ChallengeStreak,
			Goal:        decimal.NewFromInt(7),
			DailyTarget: models.DefaultDailyTarget,
		},
	}
}
