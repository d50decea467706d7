package store

import (
	"context"
	"time"

	"stepcoin/internal/models"
)

type WalletStore struct {
	db DB
}

type WalletWithUser struct {
	UserID       string    `db:"user_id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Coins        int64     `db:"coins"`
	TotalEarned  int64     `db:"total_earned"`
	StepsCounted int64     `db:"steps_counted"`
	LastUpdated  time.Time `db:"last_updated"`
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// Create inserts a zero valued wallet and is a no-op when one exists.
func (s *WalletStore) Create(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, coins, total_earned, steps_counted)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, coins, total_earned, steps_counted, last_updated
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, coins, total_earned, steps_counted, last_updated
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) Update(ctx context.Context, tx Execer, wallet models.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET coins = $1, total_earned = $2, steps_counted = $3, last_updated = $4
		WHERE user_id = $5
	`, wallet.Coins, wallet.TotalEarned, wallet.StepsCounted, wallet.LastUpdated, wallet.UserID)
	return err
}

func (s *WalletStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM wallets ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *WalletStore) ListAllWithUsers(ctx context.Context, limit, offset int) ([]WalletWithUser, error) {
	var rows []WalletWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.user_id, u.username, u.email, w.coins, w.total_earned, w.steps_counted, w.last_updated
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		ORDER BY u.created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
