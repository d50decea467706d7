package handlers

import (
	"context"

	"stepcoin/internal/models"
	"stepcoin/internal/services"
	"stepcoin/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type WalletStore interface {
	ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.WalletWithUser, error)
}

type LedgerStore interface {
	ListAll(ctx context.Context, limit, offset int) ([]store.TransactionWithUser, error)
}

type ActivityStore interface {
	History(ctx context.Context, userID string, days int) ([]models.DailyActivity, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
	ListRoles(ctx context.Context, userID string) ([]string, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

type WalletService interface {
	EnsureWallet(ctx context.Context, tx store.Execer, userID string) error
	Balance(ctx context.Context, userID string) (models.Wallet, error)
	History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	FitnessScore(ctx context.Context, userID string) (int, error)
	SelfCheck(ctx context.Context, userID string) (store.WalletReconciliation, error)
	Reconcile(ctx context.Context) ([]store.WalletReconciliation, error)
}

type AccrualService interface {
	Accrue(ctx context.Context, userID string, sample models.ActivitySample) (services.AccrualResult, error)
}

type ChallengeService interface {
	Catalog(ctx context.Context) ([]models.Challenge, error)
	UserChallenges(ctx context.Context, userID string) ([]models.UserChallengeDetail, error)
	Join(ctx context.Context, userID, challengeID string) (models.UserChallenge, error)
	Leave(ctx context.Context, userID, challengeID string) error
	Tick(ctx context.Context, userID string) (services.TickResult, error)
	Seed(ctx context.Context, actorID string, entries []models.Challenge) ([]models.Challenge, error)
}
