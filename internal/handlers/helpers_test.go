package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"stepcoin/internal/auth"
	"stepcoin/internal/config"
	"stepcoin/internal/models"
	"stepcoin/internal/services"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn    func(ctx context.Context, email string) (models.User, error)
	getByUsernameFn func(ctx context.Context, username string) (models.User, error)
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, nil
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubWalletStore struct {
	listAllWithUsersFn func(ctx context.Context, limit, offset int) ([]store.WalletWithUser, error)
}

func (s stubWalletStore) ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.WalletWithUser, error) {
	if s.listAllWithUsersFn == nil {
		return nil, nil
	}
	return s.listAllWithUsersFn(ctx, limit, offset)
}

type stubLedgerStore struct {
	listAllFn func(ctx context.Context, limit, offset int) ([]store.TransactionWithUser, error)
}

func (s stubLedgerStore) ListAll(ctx context.Context, limit, offset int) ([]store.TransactionWithUser, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubActivityStore struct {
	historyFn func(ctx context.Context, userID string, days int) ([]models.DailyActivity, error)
}

func (s stubActivityStore) History(ctx context.Context, userID string, days int) ([]models.DailyActivity, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, userID, days)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, tx store.Execer, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
	listRolesFn   func(ctx context.Context, userID string) ([]string, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return false, nil
	}
	return s.hasAnyAdminFn(ctx)
}

func (s stubAdminStore) ListRoles(ctx context.Context, userID string) ([]string, error) {
	if s.listRolesFn == nil {
		return []string{}, nil
	}
	return s.listRolesFn(ctx, userID)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubWalletService struct {
	ensureWalletFn func(ctx context.Context, tx store.Execer, userID string) error
	balanceFn      func(ctx context.Context, userID string) (models.Wallet, error)
	historyFn      func(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	fitnessFn      func(ctx context.Context, userID string) (int, error)
	selfCheckFn    func(ctx context.Context, userID string) (store.WalletReconciliation, error)
	reconcileFn    func(ctx context.Context) ([]store.WalletReconciliation, error)
}

func (s stubWalletService) EnsureWallet(ctx context.Context, tx store.Execer, userID string) error {
	if s.ensureWalletFn == nil {
		return nil
	}
	return s.ensureWalletFn(ctx, tx, userID)
}

func (s stubWalletService) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	if s.balanceFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.balanceFn(ctx, userID)
}

func (s stubWalletService) History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, userID, limit, offset)
}

func (s stubWalletService) FitnessScore(ctx context.Context, userID string) (int, error) {
	if s.fitnessFn == nil {
		return 0, nil
	}
	return s.fitnessFn(ctx, userID)
}

func (s stubWalletService) SelfCheck(ctx context.Context, userID string) (store.WalletReconciliation, error) {
	if s.selfCheckFn == nil {
		return store.WalletReconciliation{UserID: userID}, nil
	}
	return s.selfCheckFn(ctx, userID)
}

func (s stubWalletService) Reconcile(ctx context.Context) ([]store.WalletReconciliation, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

type stubAccrual struct {
	accrueFn func(ctx context.Context, userID string, sample models.ActivitySample) (services.AccrualResult, error)
}

func (s stubAccrual) Accrue(ctx context.Context, userID string, sample models.ActivitySample) (services.AccrualResult, error) {
	if s.accrueFn == nil {
		return services.AccrualResult{}, nil
	}
	return s.accrueFn(ctx, userID, sample)
}

type stubChallenges struct {
	catalogFn        func(ctx context.Context) ([]models.Challenge, error)
	userChallengesFn func(ctx context.Context, userID string) ([]models.UserChallengeDetail, error)
	joinFn           func(ctx context.Context, userID, challengeID string) (models.UserChallenge, error)
	leaveFn          func(ctx context.Context, userID, challengeID string) error
	tickFn           func(ctx context.Context, userID string) (services.TickResult, error)
	seedFn           func(ctx context.Context, actorID string, entries []models.Challenge) ([]models.Challenge, error)
}

func (s stubChallenges) Catalog(ctx context.Context) ([]models.Challenge, error) {
	if s.catalogFn == nil {
		return nil, nil
	}
	return s.catalogFn(ctx)
}

func (s stubChallenges) UserChallenges(ctx context.Context, userID string) ([]models.UserChallengeDetail, error) {
	if s.userChallengesFn == nil {
		return nil, nil
	}
	return s.userChallengesFn(ctx, userID)
}

func (s stubChallenges) Join(ctx context.Context, userID, challengeID string) (models.UserChallenge, error) {
	if s.joinFn == nil {
		return models.UserChallenge{UserID: userID, ChallengeID: challengeID}, nil
	}
	return s.joinFn(ctx, userID, challengeID)
}

func (s stubChallenges) Leave(ctx context.Context, userID, challengeID string) error {
	if s.leaveFn == nil {
		return nil
	}
	return s.leaveFn(ctx, userID, challengeID)
}

func (s stubChallenges) Tick(ctx context.Context, userID string) (services.TickResult, error) {
	if s.tickFn == nil {
		return services.TickResult{}, nil
	}
	return s.tickFn(ctx, userID)
}

func (s stubChallenges) Seed(ctx context.Context, actorID string, entries []models.Challenge) ([]models.Challenge, error) {
	if s.seedFn == nil {
		return entries, nil
	}
	return s.seedFn(ctx, actorID, entries)
}

// testDeps holds the collaborators of a Handler under test. Zero values are
// permissive stubs.
type testDeps struct {
	txRunner   fakeTxRunner
	users      stubUserStore
	wallets    stubWalletStore
	ledger     stubLedgerStore
	activity   stubActivityStore
	admin      stubAdminStore
	audit      stubAuditStore
	wallet     stubWalletService
	accrual    stubAccrual
	challenges stubChallenges
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(deps.txRunner, cfg, deps.users, deps.wallets, deps.ledger, deps.activity, deps.admin, deps.audit, deps.wallet, deps.accrual, deps.challenges, websocket.NewHub())
}

// serve routes a request through the full router, authenticated as userID
// when it is not empty.
func serve(t *testing.T, handler *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	decodeBody(t, rr, &payload)
	return payload["error"]
}
