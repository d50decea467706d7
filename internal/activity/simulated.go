package activity

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"stepcoin/internal/models"

	"github.com/shopspring/decimal"
)

const (
	minDailySteps = 3000
	maxDailySteps = 15000

	minStepsPerPull = 50
	maxStepsPerPull = 250
)

var metersPerStep = decimal.RequireFromString("0.7")

type counter struct {
	day    time.Time
	target int64
	steps  int64
}

// Simulated fakes a wearable. Each user draws a daily total between
// minDailySteps and maxDailySteps, and every pull walks the counter toward it
// by a bounded random increment. Counters start over at UTC midnight.
type Simulated struct {
	mu       sync.Mutex
	rng      *rand.Rand
	counters map[string]*counter
	now      func() time.Time
}

func NewSimulated(seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		rng:      rand.New(rand.NewSource(seed)),
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (s *Simulated) Sample(ctx context.Context, userID string) (models.ActivitySample, error) {
	if err := ctx.Err(); err != nil {
		return models.ActivitySample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	today := models.Day(now)
	c, ok := s.counters[userID]
	if !ok || c.day.Before(today) {
		c = &counter{
			day:    today,
			target: minDailySteps + s.rng.Int63n(maxDailySteps-minDailySteps+1),
		}
		s.counters[userID] = c
	}
	c.steps = min(c.target, c.steps+minStepsPerPull+s.rng.Int63n(maxStepsPerPull-minStepsPerPull+1))
	return models.ActivitySample{
		UserID:         userID,
		Steps:          c.steps,
		DistanceMeters: decimal.NewFromInt(c.steps).Mul(metersPerStep),
		SampledAt:      now,
	}, nil
}
