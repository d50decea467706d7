package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Wallet is the per-user coin balance. Coins only move through the ledger.
type Wallet struct {
	UserID       string    `db:"user_id" json:"user_id"`
	Coins        int64     `db:"coins" json:"coins"`
	TotalEarned  int64     `db:"total_earned" json:"total_earned"`
	StepsCounted int64     `db:"steps_counted" json:"steps_counted"`
	LastUpdated  time.Time `db:"last_updated" json:"last_updated"`
}

type TransactionKind string

const (
	KindEarned TransactionKind = "earned"
	KindSpent  TransactionKind = "spent"
)

type Transaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Amount      int64           `db:"amount" json:"amount"`
	Kind        TransactionKind `db:"kind" json:"kind"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"timestamp"`
}

// Signed returns the amount as it affects the balance.
func (t Transaction) Signed() int64 {
	if t.Kind == KindSpent {
		return -t.Amount
	}
	return t.Amount
}

// StepCursor tracks what the accrual engine has already consumed from the
// activity source. LastCountedSteps is the coin watermark and may lag
// LastSeenSteps while a sub-1000 remainder is banked.
type StepCursor struct {
	UserID           string          `db:"user_id" json:"user_id"`
	LastCountedSteps int64           `db:"last_counted_steps" json:"last_counted_steps"`
	LastSeenSteps    int64           `db:"last_seen_steps" json:"last_seen_steps"`
	LastSeenDistance decimal.Decimal `db:"last_seen_distance" json:"last_seen_distance"`
	DistanceCounted  decimal.Decimal `db:"distance_counted" json:"distance_counted"`
	LastSampledAt    *time.Time      `db:"last_sampled_at" json:"last_sampled_at,omitempty"`
}

type ChallengeType string

const (
	ChallengeSteps    ChallengeType = "steps"
	ChallengeDistance ChallengeType = "distance"
	ChallengeStreak   ChallengeType = "streak"
)

func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeSteps, ChallengeDistance, ChallengeStreak:
		return true
	}
	return false
}

const DefaultDailyTarget int64 = 10000

type Challenge struct {
	ID                string          `db:"id" json:"id"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	EntryFee          int64           `db:"entry_fee" json:"entry_fee"`
	Reward            int64           `db:"reward" json:"reward"`
	StartDate         time.Time       `db:"start_date" json:"start_date"`
	EndDate           time.Time       `db:"end_date" json:"end_date"`
	Type              ChallengeType   `db:"type" json:"type"`
	Goal              decimal.Decimal `db:"goal" json:"goal"`
	DailyTarget       int64           `db:"daily_target" json:"daily_target"`
	ParticipantsCount int64           `db:"participants_count" json:"participants_count"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Ended reports whether the challenge window has closed at now.
func (c Challenge) Ended(now time.Time) bool {
	return now.After(c.EndDate)
}

func (c Challenge) Started(now time.Time) bool {
	return !now.Before(c.StartDate)
}

type UserChallenge struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	ChallengeID     string          `db:"challenge_id" json:"challenge_id"`
	CurrentProgress decimal.Decimal `db:"current_progress" json:"current_progress"`
	StepsMark       int64           `db:"steps_mark" json:"-"`
	DistanceMark    decimal.Decimal `db:"distance_mark" json:"-"`
	LastStreakDay   *time.Time      `db:"last_streak_day" json:"last_streak_day,omitempty"`
	Completed       bool            `db:"completed" json:"completed"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	JoinedAt        time.Time       `db:"joined_at" json:"joined_at"`
}

// UserChallengeDetail is a participation row joined with its catalog entry.
type UserChallengeDetail struct {
	UserChallenge
	Title   string          `db:"title" json:"title"`
	Type    ChallengeType   `db:"type" json:"type"`
	Goal    decimal.Decimal `db:"goal" json:"goal"`
	Reward  int64           `db:"reward" json:"reward"`
	EndDate time.Time       `db:"end_date" json:"end_date"`
}

type ActivitySample struct {
	UserID         string          `db:"user_id" json:"user_id"`
	Steps          int64           `db:"steps" json:"steps"`
	DistanceMeters decimal.Decimal `db:"distance_meters" json:"distance_meters"`
	SampledAt      time.Time       `db:"sampled_at" json:"sampled_at"`
}

type DailyActivity struct {
	UserID   string          `db:"user_id" json:"user_id"`
	Day      time.Time       `db:"day" json:"day"`
	Steps    int64           `db:"steps" json:"steps"`
	Distance decimal.Decimal `db:"distance" json:"distance"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
