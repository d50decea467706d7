package services

import (
	"context"
	"time"

	"stepcoin/internal/models"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"

	"github.com/shopspring/decimal"
)

type WalletStore interface {
	Create(ctx context.Context, tx store.Execer, userID string) error
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	Update(ctx context.Context, tx store.Execer, wallet models.Wallet) error
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, txn models.Transaction) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	CountByKind(ctx context.Context, userID string, kind models.TransactionKind) (int64, error)
	ReconcileUser(ctx context.Context, userID string) (store.WalletReconciliation, error)
	ReconcileAll(ctx context.Context) ([]store.WalletReconciliation, error)
}

type CursorStore interface {
	Get(ctx context.Context, tx store.Getter, userID string) (models.StepCursor, error)
	Save(ctx context.Context, tx store.Execer, cursor models.StepCursor) error
}

type ActivityStore interface {
	RecordSample(ctx context.Context, tx store.Execer, sample models.ActivitySample) error
	AddDaily(ctx context.Context, tx store.Execer, userID string, day time.Time, steps int64, distance decimal.Decimal) error
	DailySteps(ctx context.Context, tx store.Getter, userID string, day time.Time) (int64, error)
}

type ChallengeStore interface {
	Create(ctx context.Context, tx store.Execer, c models.Challenge) error
	List(ctx context.Context) ([]models.Challenge, error)
	GetByID(ctx context.Context, challengeID string) (models.Challenge, error)
}

type UserChallengeStore interface {
	Get(ctx context.Context, tx store.Getter, userID, challengeID string) (models.UserChallenge, error)
	Create(ctx context.Context, tx store.Execer, uc models.UserChallenge) error
	Delete(ctx context.Context, tx store.Execer, id string) (int64, error)
	ListActive(ctx context.Context, tx store.Selecter, userID string) ([]models.UserChallenge, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserChallengeDetail, error)
	UpdateProgress(ctx context.Context, tx store.Execer, uc models.UserChallenge) (int64, error)
	MarkCompleted(ctx context.Context, tx store.Execer, uc models.UserChallenge) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type WalletHub interface {
	BroadcastWallet(userID string, update websocket.WalletUpdate)
}

func walletUpdate(w models.Wallet) websocket.WalletUpdate {
	return websocket.WalletUpdate{
		Type:         "wallet",
		Coins:        w.Coins,
		TotalEarned:  w.TotalEarned,
		StepsCounted: w.StepsCounted,
		LastUpdated:  w.LastUpdated,
	}
}
