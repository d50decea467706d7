package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stepcoin/internal/db"
	"stepcoin/internal/models"
	"stepcoin/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Ledger owns wallet balances and the transaction log. credit and debit are
// the only code paths that change coins; other services call them with the
// wallet row already locked inside their own transaction.
type Ledger struct {
	txRunner db.TxRunner
	wallets  WalletStore
	ledger   LedgerStore
	audit    AuditStore
	hub      WalletHub
	now      func() time.Time
}

func NewLedger(txRunner db.TxRunner, wallets WalletStore, ledger LedgerStore, audit AuditStore, hub WalletHub) *Ledger {
	return &Ledger{
		txRunner: txRunner,
		wallets:  wallets,
		ledger:   ledger,
		audit:    audit,
		hub:      hub,
		now:      time.Now,
	}
}

// EnsureWallet creates an empty wallet for userID if it does not exist yet.
func (l *Ledger) EnsureWallet(ctx context.Context, tx store.Execer, userID string) error {
	if err := l.wallets.Create(ctx, tx, userID); err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, description string) (models.Transaction, error) {
	if amount <= 0 {
		return models.Transaction{}, ErrInvalidAmount
	}
	var txn models.Transaction
	var wallet models.Wallet
	err := l.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = l.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		txn, err = l.credit(ctx, tx, &wallet, amount, description)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	l.publish(wallet)
	return txn, nil
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, description string) (models.Transaction, error) {
	if amount <= 0 {
		return models.Transaction{}, ErrInvalidAmount
	}
	var txn models.Transaction
	var wallet models.Wallet
	err := l.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = l.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		txn, err = l.debit(ctx, tx, &wallet, amount, description)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	l.publish(wallet)
	return txn, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := l.wallets.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

// History pages the transaction log, most recent first.
func (l *Ledger) History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return l.ledger.ListByUser(ctx, userID, limit, offset)
}

func (l *Ledger) SelfCheck(ctx context.Context, userID string) (store.WalletReconciliation, error) {
	row, err := l.ledger.ReconcileUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.WalletReconciliation{}, ErrWalletNotFound
	}
	return row, err
}

// Reconcile reports every wallet whose balance disagrees with its log.
func (l *Ledger) Reconcile(ctx context.Context) ([]store.WalletReconciliation, error) {
	rows, err := l.ledger.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}
	mismatched := make([]store.WalletReconciliation, 0)
	for _, row := range rows {
		if row.Difference != 0 {
			mismatched = append(mismatched, row)
		}
	}
	return mismatched, nil
}

func (l *Ledger) lockWallet(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error) {
	wallet, err := l.wallets.GetForUpdate(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return models.Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}
	return wallet, nil
}

func (l *Ledger) credit(ctx context.Context, tx store.Execer, wallet *models.Wallet, amount int64, description string) (models.Transaction, error) {
	if amount <= 0 {
		return models.Transaction{}, ErrInvalidAmount
	}
	wallet.Coins += amount
	wallet.TotalEarned += amount
	return l.record(ctx, tx, wallet, amount, models.KindEarned, description)
}

func (l *Ledger) debit(ctx context.Context, tx store.Execer, wallet *models.Wallet, amount int64, description string) (models.Transaction, error) {
	if amount <= 0 {
		return models.Transaction{}, ErrInvalidAmount
	}
	if wallet.Coins < amount {
		return models.Transaction{}, ErrInsufficientFunds
	}
	wallet.Coins -= amount
	return l.record(ctx, tx, wallet, amount, models.KindSpent, description)
}

func (l *Ledger) record(ctx context.Context, tx store.Execer, wallet *models.Wallet, amount int64, kind models.TransactionKind, description string) (models.Transaction, error) {
	now := l.now().UTC()
	wallet.LastUpdated = now
	id, err := uuid.NewV7()
	if err != nil {
		return models.Transaction{}, err
	}
	txn := models.Transaction{
		ID:          id.String(),
		UserID:      wallet.UserID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		CreatedAt:   now,
	}
	if err := l.wallets.Update(ctx, tx, *wallet); err != nil {
		return models.Transaction{}, fmt.Errorf("update wallet: %w", err)
	}
	if err := l.ledger.Insert(ctx, tx, txn); err != nil {
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	data, _ := json.Marshal(map[string]any{
		"amount":      amount,
		"kind":        kind,
		"description": description,
		"coins_after": wallet.Coins,
	})
	if err := l.audit.Log(ctx, tx, wallet.UserID, "coins_"+string(kind), "transaction", txn.ID, string(data)); err != nil {
		return models.Transaction{}, err
	}
	slog.Debug("ledger movement", "user_id", wallet.UserID, "kind", kind, "amount", amount, "coins", wallet.Coins)
	return txn, nil
}

func (l *Ledger) publish(wallet models.Wallet) {
	if l.hub == nil {
		return
	}
	l.hub.BroadcastWallet(wallet.UserID, walletUpdate(wallet))
}
