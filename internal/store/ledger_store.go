package store

import (
	"context"

	"stepcoin/internal/models"
)

// LedgerStore persists the append-only coin transaction log.
type LedgerStore struct {
	db DB
}

type TransactionWithUser struct {
	models.Transaction
	Username string `db:"username"`
}

type WalletReconciliation struct {
	UserID     string `db:"user_id"`
	Coins      int64  `db:"coins"`
	LedgerSum  int64  `db:"ledger_sum"`
	Difference int64  `db:"difference"`
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Insert(ctx context.Context, tx Execer, txn models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO coin_transactions (id, user_id, amount, kind, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txn.ID, txn.UserID, txn.Amount, string(txn.Kind), txn.Description, txn.CreatedAt)
	return err
}

// ListByUser pages a user's history, most recent first. Ids are UUIDv7 so
// they break ties between rows sharing a timestamp.
func (s *LedgerStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, kind, description, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) ListAll(ctx context.Context, limit, offset int) ([]TransactionWithUser, error) {
	rows := []TransactionWithUser{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.user_id, t.amount, t.kind, t.description, t.created_at, u.username
		FROM coin_transactions t
		JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) CountByKind(ctx context.Context, userID string, kind models.TransactionKind) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM coin_transactions
		WHERE user_id = $1 AND kind = $2
	`, userID, string(kind))
	return count, err
}

const reconcileQuery = `
		SELECT w.user_id,
		       w.coins,
		       COALESCE(SUM(CASE WHEN t.kind = 'earned' THEN t.amount ELSE -t.amount END), 0) AS ledger_sum,
		       (w.coins - COALESCE(SUM(CASE WHEN t.kind = 'earned' THEN t.amount ELSE -t.amount END), 0)) AS difference
		FROM wallets w
		LEFT JOIN coin_transactions t ON t.user_id = w.user_id
`

func (s *LedgerStore) ReconcileUser(ctx context.Context, userID string) (WalletReconciliation, error) {
	var row WalletReconciliation
	err := s.db.GetContext(ctx, &row, reconcileQuery+`
		WHERE w.user_id = $1
		GROUP BY w.user_id, w.coins
	`, userID)
	if err != nil {
		return WalletReconciliation{}, err
	}
	return row, nil
}

func (s *LedgerStore) ReconcileAll(ctx context.Context) ([]WalletReconciliation, error) {
	rows := []WalletReconciliation{}
	err := s.db.SelectContext(ctx, &rows, reconcileQuery+`
		GROUP BY w.user_id, w.coins
		ORDER BY w.user_id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
