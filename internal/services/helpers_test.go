package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"stepcoin/internal/models"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type memState struct {
	wallets        map[string]models.Wallet
	txns           []models.Transaction
	cursors        map[string]models.StepCursor
	challenges     map[string]models.Challenge
	userChallenges map[string]models.UserChallenge
	samples        []models.ActivitySample
	dailySteps     map[string]int64
	audit          []string
}

func (s *memState) clone() *memState {
	c := &memState{
		wallets:        make(map[string]models.Wallet, len(s.wallets)),
		txns:           append([]models.Transaction(nil), s.txns...),
		cursors:        make(map[string]models.StepCursor, len(s.cursors)),
		challenges:     make(map[string]models.Challenge, len(s.challenges)),
		userChallenges: make(map[string]models.UserChallenge, len(s.userChallenges)),
		samples:        append([]models.ActivitySample(nil), s.samples...),
		dailySteps:     make(map[string]int64, len(s.dailySteps)),
		audit:          append([]string(nil), s.audit...),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.cursors {
		c.cursors[k] = v
	}
	for k, v := range s.challenges {
		c.challenges[k] = v
	}
	for k, v := range s.userChallenges {
		c.userChallenges[k] = v
	}
	for k, v := range s.dailySteps {
		c.dailySteps[k] = v
	}
	return c
}

// memBackend stands in for Postgres. The tx runner holds txMu for the whole
// callback, which models the per-user row lock, and restores a snapshot when
// the callback fails.
type memBackend struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState

	failInsert error
	failJoin   error
	txCount    int
}

func newMemBackend() *memBackend {
	return &memBackend{state: (&memState{}).clone()}
}

func (b *memBackend) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()
	b.mu.Lock()
	snapshot := b.state.clone()
	b.txCount++
	b.mu.Unlock()
	if err := fn(nil); err != nil {
		b.mu.Lock()
		b.state = snapshot
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *memBackend) read(fn func(s *memState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.state)
}

func (b *memBackend) wallet(userID string) models.Wallet {
	var w models.Wallet
	b.read(func(s *memState) { w = s.wallets[userID] })
	return w
}

func (b *memBackend) transactions(userID string) []models.Transaction {
	var out []models.Transaction
	b.read(func(s *memState) {
		for _, txn := range s.txns {
			if txn.UserID == userID {
				out = append(out, txn)
			}
		}
	})
	return out
}

func (b *memBackend) setSteps(userID string, steps int64) {
	b.read(func(s *memState) {
		w := s.wallets[userID]
		w.StepsCounted = steps
		s.wallets[userID] = w
	})
}

func (b *memBackend) addChallenge(c models.Challenge) {
	b.read(func(s *memState) { s.challenges[c.ID] = c })
}

func dailyKey(userID string, day time.Time) string {
	return userID + "|" + models.Day(day).Format(time.DateOnly)
}

type memWallets struct{ b *memBackend }

func (m memWallets) Create(_ context.Context, _ store.Execer, userID string) error {
	m.b.read(func(s *memState) {
		if _, ok := s.wallets[userID]; !ok {
			s.wallets[userID] = models.Wallet{UserID: userID}
		}
	})
	return nil
}

func (m memWallets) GetByUser(_ context.Context, userID string) (models.Wallet, error) {
	var (
		w  models.Wallet
		ok bool
	)
	m.b.read(func(s *memState) { w, ok = s.wallets[userID] })
	if !ok {
		return models.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (m memWallets) GetForUpdate(ctx context.Context, _ store.Getter, userID string) (models.Wallet, error) {
	return m.GetByUser(ctx, userID)
}

func (m memWallets) Update(_ context.Context, _ store.Execer, wallet models.Wallet) error {
	m.b.read(func(s *memState) { s.wallets[wallet.UserID] = wallet })
	return nil
}

type memLedger struct{ b *memBackend }

func (m memLedger) Insert(_ context.Context, _ store.Execer, txn models.Transaction) error {
	if m.b.failInsert != nil {
		return m.b.failInsert
	}
	m.b.read(func(s *memState) { s.txns = append(s.txns, txn) })
	return nil
}

func (m memLedger) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	all := m.b.transactions(userID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []models.Transaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m memLedger) CountByKind(_ context.Context, userID string, kind models.TransactionKind) (int64, error) {
	var n int64
	for _, txn := range m.b.transactions(userID) {
		if txn.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (m memLedger) ReconcileUser(_ context.Context, userID string) (store.WalletReconciliation, error) {
	w, ok := models.Wallet{}, false
	m.b.read(func(s *memState) { w, ok = s.wallets[userID] })
	if !ok {
		return store.WalletReconciliation{}, sql.ErrNoRows
	}
	var sum int64
	for _, txn := range m.b.transactions(userID) {
		sum += txn.Signed()
	}
	return store.WalletReconciliation{UserID: userID, Coins: w.Coins, LedgerSum: sum, Difference: w.Coins - sum}, nil
}

func (m memLedger) ReconcileAll(ctx context.Context) ([]store.WalletReconciliation, error) {
	var ids []string
	m.b.read(func(s *memState) {
		for id := range s.wallets {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	rows := make([]store.WalletReconciliation, 0, len(ids))
	for _, id := range ids {
		row, err := m.ReconcileUser(ctx, id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type memCursors struct{ b *memBackend }

func (m memCursors) Get(_ context.Context, _ store.Getter, userID string) (models.StepCursor, error) {
	var (
		c  models.StepCursor
		ok bool
	)
	m.b.read(func(s *memState) { c, ok = s.cursors[userID] })
	if !ok {
		return models.StepCursor{UserID: userID, LastSeenDistance: decimal.Zero, DistanceCounted: decimal.Zero}, nil
	}
	return c, nil
}

func (m memCursors) Save(_ context.Context, _ store.Execer, cursor models.StepCursor) error {
	m.b.read(func(s *memState) { s.cursors[cursor.UserID] = cursor })
	return nil
}

type memActivity struct{ b *memBackend }

func (m memActivity) RecordSample(_ context.Context, _ store.Execer, sample models.ActivitySample) error {
	m.b.read(func(s *memState) { s.samples = append(s.samples, sample) })
	return nil
}

func (m memActivity) AddDaily(_ context.Context, _ store.Execer, userID string, day time.Time, steps int64, _ decimal.Decimal) error {
	m.b.read(func(s *memState) { s.dailySteps[dailyKey(userID, day)] += steps })
	return nil
}

func (m memActivity) DailySteps(_ context.Context, _ store.Getter, userID string, day time.Time) (int64, error) {
	var steps int64
	m.b.read(func(s *memState) { steps = s.dailySteps[dailyKey(userID, day)] })
	return steps, nil
}

type memChallenges struct{ b *memBackend }

func (m memChallenges) Create(_ context.Context, _ store.Execer, c models.Challenge) error {
	m.b.addChallenge(c)
	return nil
}

func (m memChallenges) participants(s *memState, challengeID string) int64 {
	var n int64
	for _, uc := range s.userChallenges {
		if uc.ChallengeID == challengeID {
			n++
		}
	}
	return n
}

func (m memChallenges) List(context.Context) ([]models.Challenge, error) {
	out := []models.Challenge{}
	m.b.read(func(s *memState) {
		for _, c := range s.challenges {
			c.ParticipantsCount = m.participants(s, c.ID)
			out = append(out, c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m memChallenges) GetByID(_ context.Context, challengeID string) (models.Challenge, error) {
	var (
		c  models.Challenge
		ok bool
	)
	m.b.read(func(s *memState) {
		c, ok = s.challenges[challengeID]
		c.ParticipantsCount = m.participants(s, challengeID)
	})
	if !ok {
		return models.Challenge{}, sql.ErrNoRows
	}
	return c, nil
}

type memUserChallenges struct{ b *memBackend }

func (m memUserChallenges) Get(_ context.Context, _ store.Getter, userID, challengeID string) (models.UserChallenge, error) {
	var (
		found models.UserChallenge
		ok    bool
	)
	m.b.read(func(s *memState) {
		for _, uc := range s.userChallenges {
			if uc.UserID == userID && uc.ChallengeID == challengeID {
				found, ok = uc, true
			}
		}
	})
	if !ok {
		return models.UserChallenge{}, sql.ErrNoRows
	}
	return found, nil
}

func (m memUserChallenges) Create(_ context.Context, _ store.Execer, uc models.UserChallenge) error {
	if m.b.failJoin != nil {
		return m.b.failJoin
	}
	m.b.read(func(s *memState) { s.userChallenges[uc.ID] = uc })
	return nil
}

func (m memUserChallenges) Delete(_ context.Context, _ store.Execer, id string) (int64, error) {
	var rows int64
	m.b.read(func(s *memState) {
		if uc, ok := s.userChallenges[id]; ok && !uc.Completed {
			delete(s.userChallenges, id)
			rows = 1
		}
	})
	return rows, nil
}

func (m memUserChallenges) ListActive(_ context.Context, _ store.Selecter, userID string) ([]models.UserChallenge, error) {
	out := []models.UserChallenge{}
	m.b.read(func(s *memState) {
		for _, uc := range s.userChallenges {
			if uc.UserID == userID && !uc.Completed {
				out = append(out, uc)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memUserChallenges) ListByUser(_ context.Context, userID string) ([]models.UserChallengeDetail, error) {
	out := []models.UserChallengeDetail{}
	m.b.read(func(s *memState) {
		for _, uc := range s.userChallenges {
			if uc.UserID != userID {
				continue
			}
			c := s.challenges[uc.ChallengeID]
			out = append(out, models.UserChallengeDetail{UserChallenge: uc, Title: c.Title, Type: c.Type, Goal: c.Goal, Reward: c.Reward, EndDate: c.EndDate})
		}
	})
	return out, nil
}

func (m memUserChallenges) save(uc models.UserChallenge, markCompleted bool) int64 {
	var rows int64
	m.b.read(func(s *memState) {
		current, ok := s.userChallenges[uc.ID]
		if !ok || current.Completed {
			return
		}
		uc.Completed = markCompleted
		s.userChallenges[uc.ID] = uc
		rows = 1
	})
	return rows
}

func (m memUserChallenges) UpdateProgress(_ context.Context, _ store.Execer, uc models.UserChallenge) (int64, error) {
	return m.save(uc, false), nil
}

func (m memUserChallenges) MarkCompleted(_ context.Context, _ store.Execer, uc models.UserChallenge) (int64, error) {
	return m.save(uc, true), nil
}

func (m memUserChallenges) byChallenge(userID, challengeID string) (models.UserChallenge, bool) {
	uc, err := m.Get(context.Background(), nil, userID, challengeID)
	return uc, err == nil
}

type memAudit struct{ b *memBackend }

func (m memAudit) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	m.b.read(func(s *memState) { s.audit = append(s.audit, action) })
	return nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.WalletUpdate
}

func (h *recordingHub) BroadcastWallet(_ string, update websocket.WalletUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

type fixture struct {
	backend    *memBackend
	hub        *recordingHub
	ledger     *Ledger
	accrual    *Accrual
	challenges *Challenges
	ucs        memUserChallenges
	now        time.Time
}

func newFixture(t *testing.T, userIDs ...string) *fixture {
	t.Helper()
	b := newMemBackend()
	hub := &recordingHub{}
	f := &fixture{
		backend: b,
		hub:     hub,
		ucs:     memUserChallenges{b},
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.ledger = NewLedger(b, memWallets{b}, memLedger{b}, memAudit{b}, hub)
	f.ledger.now = clock
	f.accrual = NewAccrual(b, f.ledger, memCursors{b}, memActivity{b})
	f.accrual.now = clock
	f.challenges = NewChallenges(b, f.ledger, memChallenges{b}, f.ucs, memCursors{b}, memActivity{b}, memAudit{b})
	f.challenges.now = clock
	for _, id := range userIDs {
		if err := f.ledger.EnsureWallet(context.Background(), nil, id); err != nil {
			t.Fatalf("ensure wallet: %v", err)
		}
	}
	return f
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}

func (f *fixture) sample(steps int64, meters int64) models.ActivitySample {
	return models.ActivitySample{
		Steps:          steps,
		DistanceMeters: decimal.NewFromInt(meters),
		SampledAt:      f.advance(time.Minute),
	}
}

func (f *fixture) fund(t *testing.T, userID string, coins int64) {
	t.Helper()
	if _, err := f.ledger.Credit(context.Background(), userID, coins, "Test funding"); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
}

func (f *fixture) assertLedgerBalanced(t *testing.T, userID string) {
	t.Helper()
	var sum int64
	for _, txn := range f.backend.transactions(userID) {
		if txn.Amount <= 0 {
			t.Fatalf("transaction amount must be positive: %#v", txn)
		}
		sum += txn.Signed()
	}
	w := f.backend.wallet(userID)
	if w.Coins != sum {
		t.Fatalf("ledger out of balance: coins=%d sum=%d", w.Coins, sum)
	}
	if w.Coins < 0 {
		t.Fatalf("negative balance: %d", w.Coins)
	}
}
