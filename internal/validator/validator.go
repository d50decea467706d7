package validator

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

var (
	ErrInvalidSteps     = errors.New("steps must not be negative")
	ErrTooManySteps     = errors.New("steps exceed the daily maximum")
	ErrInvalidDistance  = errors.New("distance must not be negative")
	ErrSampleInFuture   = errors.New("sampled_at is in the future")
	ErrInvalidChallenge = errors.New("invalid challenge id")
)

// maxClockSkew tolerates devices whose clocks run slightly ahead.
const maxClockSkew = 5 * time.Minute

// MaxSampleSteps bounds a single cumulative reading. No device counts a
// million steps in one day.
const MaxSampleSteps = 1_000_000

func ValidateSample(steps int64, distance decimal.Decimal, sampledAt, now time.Time) error {
	if steps < 0 {
		return ErrInvalidSteps
	}
	if steps > MaxSampleSteps {
		return ErrTooManySteps
	}
	if distance.IsNegative() {
		return ErrInvalidDistance
	}
	if !sampledAt.IsZero() && sampledAt.After(now.Add(maxClockSkew)) {
		return ErrSampleInFuture
	}
	return nil
}

func ValidateChallengeID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidChallenge
	}
	return nil
}
