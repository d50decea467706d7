package services

import "errors"

var (
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrWalletNotFound            = errors.New("wallet not found")
	ErrInvalidSample             = errors.New("invalid activity sample")
	ErrChallengeNotFound         = errors.New("challenge not found")
	ErrAlreadyJoined             = errors.New("challenge already joined")
	ErrNotJoined                 = errors.New("challenge not joined")
	ErrChallengeAlreadyCompleted = errors.New("challenge already completed")
	ErrChallengeEnded            = errors.New("challenge has ended")
	ErrInvalidChallenge          = errors.New("invalid challenge")
)
