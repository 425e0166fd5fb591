package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ── Test harness ──────────────────────────────────────────────────────────────

type harness struct {
	db       *sqlx.DB
	accounts *repository.AccountRepository
	holding  *repository.HoldingRepository
	bets     *repository.BetRepository
	stores   service.Stores
	locks    *service.KeyedMutex
	ledger   *service.LedgerService
	settle   *service.SettlementService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Options{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		holding:  repository.NewHoldingRepository(db),
		bets:     repository.NewBetRepository(db),
		locks:    service.NewKeyedMutex(),
	}
	h.stores = service.Stores{DB: db, Accounts: h.accounts, Holding: h.holding, Bets: h.bets}
	h.rebuild(t, h.stores)
	return h
}

// rebuild recreates both services over st, e.g. to inject a failing store.
func (h *harness) rebuild(t *testing.T, st service.Stores) {
	t.Helper()
	cfg := &config.LedgerConfig{MatchupTimeout: time.Second}
	h.ledger = service.NewLedgerService(st, h.locks, cfg, zap.NewNop())
	h.settle = service.NewSettlementService(st, h.locks, zap.NewNop())
}

func (h *harness) seedAccount(t *testing.T, username, balance string) {
	t.Helper()
	now := time.Now().UTC()
	tx, err := h.db.Beginx()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err = h.accounts.Create(context.Background(), tx, &domain.Account{
		Username:  username,
		Balance:   dec(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		_ = tx.Rollback()
		t.Fatalf("seed account %s: %v", username, err)
	}
	if err = tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func (h *harness) balance(t *testing.T, username string) decimal.Decimal {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), username)
	if err != nil {
		t.Fatalf("balance %s: %v", username, err)
	}
	return b
}

func (h *harness) holdingState(t *testing.T) *domain.HoldingState {
	t.Helper()
	s, err := h.holding.Get(context.Background())
	if err != nil {
		t.Fatalf("holding: %v", err)
	}
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyline(amount string, odds int) domain.PlaceBetRequest {
	return domain.PlaceBetRequest{
		GameID:  "g1",
		Team:    "Boston Celtics",
		BetType: domain.BetTypeMoneyline,
		Odds:    odds,
		Amount:  dec(amount),
	}
}

func assertMoney(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

// ── Fakes ─────────────────────────────────────────────────────────────────────

// matchupFunc adapts a function to service.MatchupResolver.
type matchupFunc func(ctx context.Context, gameID string) (string, error)

func (f matchupFunc) LookupMatchup(ctx context.Context, gameID string) (string, error) {
	return f(ctx, gameID)
}

// recordingNotifier captures WS notifications.
type recordingNotifier struct {
	placed  chan *domain.PlacementResult
	settled chan *domain.SettlementResult
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		placed:  make(chan *domain.PlacementResult, 16),
		settled: make(chan *domain.SettlementResult, 16),
	}
}

func (n *recordingNotifier) NotifyBetPlaced(_ string, res *domain.PlacementResult) { n.placed <- res }
func (n *recordingNotifier) NotifyBetSettled(_ string, res *domain.SettlementResult) {
	n.settled <- res
}

// waitFor receives from ch or fails after a second.
func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		var zero T
		t.Fatal("timed out waiting for notification")
		return zero
	}
}

// guardedCounter counts outcomes from many goroutines.
type guardedCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *guardedCounter) add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[key]++
}
