package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/events"
	"github.com/evetabi/sportsbook/internal/metrics"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stores (implemented by the repository package)
// ──────────────────────────────────────────────────────────────────────────────

// AccountStore holds user balances.
type AccountStore interface {
	Get(ctx context.Context, username string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, username string) (*domain.Account, error)
	Debit(ctx context.Context, tx *sqlx.Tx, username string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, tx *sqlx.Tx, username string, amount decimal.Decimal) (decimal.Decimal, error)
}

// HoldingStore holds escrowed stakes and the house's funds.
type HoldingStore interface {
	Get(ctx context.Context) (*domain.HoldingState, error)
	CreditHolding(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error)
	DebitHolding(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error)
	CreditHouse(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error)
	DebitHouse(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error)
}

// BetLedger is the append-only bet log.
type BetLedger interface {
	Append(ctx context.Context, tx *sqlx.Tx, b *domain.BetRecord) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BetRecord, error)
	ListByOwner(ctx context.Context, username string) ([]*domain.BetRecord, error)
	ListOpen(ctx context.Context, limit, offset int) ([]*domain.BetRecord, error)
	Resolve(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, outcome domain.BetOutcome) (*domain.BetRecord, error)
}

// Stores bundles the transactional database with the three stores that live
// in it. Every money movement runs in one transaction on DB.
type Stores struct {
	DB       *sqlx.DB
	Accounts AccountStore
	Holding  HoldingStore
	Bets     BetLedger
}

// ──────────────────────────────────────────────────────────────────────────────
// Collaborators injected post-construction
// ──────────────────────────────────────────────────────────────────────────────

// MatchupResolver names a game. Implemented by odds.Provider.
type MatchupResolver interface {
	LookupMatchup(ctx context.Context, gameID string) (string, error)
}

// Notifier pushes ledger changes to connected clients. Implemented by ws.Hub.
type Notifier interface {
	NotifyBetPlaced(username string, res *domain.PlacementResult)
	NotifyBetSettled(username string, res *domain.SettlementResult)
}

// ──────────────────────────────────────────────────────────────────────────────
// LedgerService
// ──────────────────────────────────────────────────────────────────────────────

// LedgerService is the ledger coordinator: it places bets by moving the stake
// from the account into the holding pool and appending the bet record, all in
// one transaction.
type LedgerService struct {
	st    Stores
	locks *KeyedMutex
	cfg   *config.LedgerConfig
	log   *zap.Logger

	matchups  MatchupResolver
	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
}

// NewLedgerService creates a LedgerService. locks must be shared with the
// SettlementService so both serialise on the same usernames.
func NewLedgerService(st Stores, locks *KeyedMutex, cfg *config.LedgerConfig, log *zap.Logger) *LedgerService {
	return &LedgerService{
		st:        st,
		locks:     locks,
		cfg:       cfg,
		log:       log.Named("ledger"),
		publisher: events.NopPublisher{},
	}
}

// SetMatchupResolver injects the odds provider.
func (s *LedgerService) SetMatchupResolver(m MatchupResolver) { s.matchups = m }

// SetPublisher injects the event publisher.
func (s *LedgerService) SetPublisher(p events.Publisher) { s.publisher = p }

// SetNotifier injects the WS hub.
func (s *LedgerService) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics injects the Prometheus collectors.
func (s *LedgerService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet validates the request, debits the stake from username, credits it
// to the holding pool and appends the bet record. Either all three effects
// are committed or none is.
func (s *LedgerService) PlaceBet(ctx context.Context, username string, req domain.PlaceBetRequest) (res *domain.PlacementResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObservePlacement(placementResult(err), started) }()

	// ── 1. Input validation ──────────────────────────────────────────────────
	if err = req.Validate(); err != nil {
		return nil, err
	}
	payout, err := domain.ComputePayout(req.Amount, req.Odds)
	if err != nil {
		return nil, err
	}

	// ── 2. Matchup label (never under the account lock) ──────────────────────
	matchup := s.resolveMatchup(ctx, req.GameID)

	// ── 3. Serialise with other operations on this account ───────────────────
	unlock := s.locks.Lock(username)
	defer unlock()

	// ── 4. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 5. Lock account and check balance ────────────────────────────────────
	acct, err := s.st.Accounts.GetForUpdate(ctx, tx, username)
	if err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: account", err)
	}
	if !acct.CanCover(req.Amount) {
		err = domain.ErrInsufficientFunds
		return nil, err
	}

	// ── 6. Move the stake into escrow ────────────────────────────────────────
	balance, err := s.st.Accounts.Debit(ctx, tx, username, req.Amount)
	if err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: debit", err)
	}
	if _, err = s.st.Holding.CreditHolding(ctx, tx, req.Amount); err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: credit holding", err)
	}

	// ── 7. Append the bet ────────────────────────────────────────────────────
	bet := &domain.BetRecord{
		ID:              uuid.New(),
		Username:        username,
		GameID:          req.GameID,
		Team:            req.Team,
		BetType:         req.BetType,
		Odds:            req.Odds,
		Amount:          req.Amount,
		PotentialPayout: payout,
		SpreadValue:     req.SpreadValue,
		TotalValue:      req.TotalValue,
		Matchup:         matchup,
		PlacedAt:        time.Now().UTC(),
	}
	if _, err = s.st.Bets.Append(ctx, tx, bet); err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: append", err)
	}

	// ── 8. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, s.persistErr("ledger_service.PlaceBet: commit", err)
	}

	res = &domain.PlacementResult{Balance: balance, Bet: bet}
	s.log.Info("bet placed",
		zap.String("bet_id", bet.ID.String()),
		zap.String("username", username),
		zap.String("amount", bet.Amount.StringFixed(2)),
		zap.Int("odds", bet.Odds),
	)

	// ── 9. Async: event + WS push ────────────────────────────────────────────
	go s.postPlaceAsync(res)

	return res, nil
}

// resolveMatchup asks the odds provider for the game label, bounded by the
// configured timeout. Every failure degrades to UnknownMatchup.
func (s *LedgerService) resolveMatchup(ctx context.Context, gameID string) string {
	if s.matchups == nil {
		s.metrics.MatchupFallback()
		return domain.UnknownMatchup
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MatchupTimeout)
	defer cancel()

	type lookup struct {
		label string
		err   error
	}
	ch := make(chan lookup, 1)
	go func() {
		label, err := s.matchups.LookupMatchup(ctx, gameID)
		ch <- lookup{label: label, err: err}
	}()

	var r lookup
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
	}

	if r.err != nil {
		s.log.Warn("matchup lookup failed", zap.String("game_id", gameID), zap.Error(r.err))
	}
	if r.err != nil || r.label == "" || r.label == domain.UnknownMatchup {
		s.metrics.MatchupFallback()
		return domain.UnknownMatchup
	}
	return r.label
}

// postPlaceAsync publishes the BetPlaced event and notifies the owner.
// Failures are logged and never affect the committed bet.
func (s *LedgerService) postPlaceAsync(res *domain.PlacementResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.PublishBetPlaced(ctx, events.NewBetPlaced(res)); err != nil {
		s.log.Warn("publish bet placed", zap.String("bet_id", res.Bet.ID.String()), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyBetPlaced(res.Bet.Username, res)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetBalance returns the current balance of username.
func (s *LedgerService) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	acct, err := s.st.Accounts.Get(ctx, username)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger_service.GetBalance: %w", err)
	}
	return acct.Balance, nil
}

// ListBets returns every bet of username in placement order.
func (s *LedgerService) ListBets(ctx context.Context, username string) ([]*domain.BetRecord, error) {
	bets, err := s.st.Bets.ListByOwner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.ListBets: %w", err)
	}
	return bets, nil
}

// GetBet returns a single bet only if it belongs to username.
func (s *LedgerService) GetBet(ctx context.Context, username string, id uuid.UUID) (*domain.BetRecord, error) {
	bet, err := s.st.Bets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.GetBet: %w", err)
	}
	if bet.Username != username {
		return nil, domain.ErrForbidden
	}
	return bet, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Error helpers
// ──────────────────────────────────────────────────────────────────────────────

// persistErr wraps err with op. Storage failures that are not one of the
// domain sentinels are additionally marked ErrPersistence and logged.
func (s *LedgerService) persistErr(op string, err error) error {
	return wrapStoreErr(s.log, op, err)
}

func wrapStoreErr(log *zap.Logger, op string, err error) error {
	if domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsConflict(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Error("ledger persistence failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

func placementResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultPlaced
	case errors.Is(err, domain.ErrInsufficientFunds):
		return metrics.ResultInsufficient
	case domain.IsValidation(err), domain.IsNotFound(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
