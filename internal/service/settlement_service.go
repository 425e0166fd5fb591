package service

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/events"
	"github.com/evetabi/sportsbook/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService resolves bets and performs the operator money movements
// of the back-office.
type SettlementService struct {
	st    Stores
	locks *KeyedMutex
	log   *zap.Logger

	publisher events.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
}

// NewSettlementService creates a SettlementService sharing locks with the
// LedgerService.
func NewSettlementService(st Stores, locks *KeyedMutex, log *zap.Logger) *SettlementService {
	return &SettlementService{
		st:        st,
		locks:     locks,
		log:       log.Named("settlement"),
		publisher: events.NopPublisher{},
	}
}

// SetPublisher injects the event publisher.
func (s *SettlementService) SetPublisher(p events.Publisher) { s.publisher = p }

// SetNotifier injects the WS hub.
func (s *SettlementService) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics injects the Prometheus collectors.
func (s *SettlementService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// ──────────────────────────────────────────────────────────────────────────────
// ResolveBet
// ──────────────────────────────────────────────────────────────────────────────

// ResolveBet settles an open bet:
//
//	won:  stake leaves the holding pool, winnings leave the house, owner gets the payout
//	lost: stake moves from the holding pool to the house
//	push: stake goes back to the owner
//
// If the house cannot cover the winnings nothing changes and the bet stays open.
func (s *SettlementService) ResolveBet(ctx context.Context, betID uuid.UUID, outcome domain.BetOutcome) (res *domain.SettlementResult, err error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	if !outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}
	open, err := s.st.Bets.GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ResolveBet: get bet: %w", err)
	}

	// ── 2. Serialise with placements of the same owner ───────────────────────
	unlock := s.locks.Lock(open.Username)
	defer unlock()

	// ── 3. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 4. Mark resolved (fails on a second attempt) ─────────────────────────
	bet, err := s.st.Bets.Resolve(ctx, tx, betID, outcome)
	if err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: resolve", err)
	}

	// ── 5. Release the stake from escrow ─────────────────────────────────────
	holding, err := s.st.Holding.DebitHolding(ctx, tx, bet.Amount)
	if err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: debit holding", err)
	}

	// ── 6. Route the money by outcome ────────────────────────────────────────
	credited := decimal.Zero
	switch outcome {
	case domain.OutcomeWon:
		if winnings := bet.Winnings(); winnings.IsPositive() {
			if holding, err = s.st.Holding.DebitHouse(ctx, tx, winnings); err != nil {
				return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: debit house", err)
			}
		}
		credited = bet.PotentialPayout
	case domain.OutcomeLost:
		if holding, err = s.st.Holding.CreditHouse(ctx, tx, bet.Amount); err != nil {
			return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: credit house", err)
		}
	case domain.OutcomePush:
		credited = bet.Amount
	}

	// ── 7. Pay the owner ─────────────────────────────────────────────────────
	var balance decimal.Decimal
	if credited.IsPositive() {
		balance, err = s.st.Accounts.Credit(ctx, tx, bet.Username, credited)
	} else {
		var acct *domain.Account
		if acct, err = s.st.Accounts.GetForUpdate(ctx, tx, bet.Username); err == nil {
			balance = acct.Balance
		}
	}
	if err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: owner", err)
	}

	// ── 8. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.ResolveBet: commit", err)
	}

	res = &domain.SettlementResult{
		Bet:      bet,
		Credited: credited,
		Balance:  balance,
		Holding:  *holding,
	}
	s.metrics.Settled(string(outcome))
	s.log.Info("bet settled",
		zap.String("bet_id", bet.ID.String()),
		zap.String("username", bet.Username),
		zap.String("outcome", string(outcome)),
		zap.String("credited", credited.StringFixed(2)),
	)

	go s.postSettleAsync(res)

	return res, nil
}

func (s *SettlementService) postSettleAsync(res *domain.SettlementResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.PublishBetSettled(ctx, events.NewBetSettled(res)); err != nil {
		s.log.Warn("publish bet settled", zap.String("bet_id", res.Bet.ID.String()), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyBetSettled(res.Bet.Username, res)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Operator money movements
// ──────────────────────────────────────────────────────────────────────────────

// CreditAccount deposits amount into username's account.
func (s *SettlementService) CreditAccount(ctx context.Context, username string, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	if err = domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	tx, err := s.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, wrapStoreErr(s.log, "settlement_service.CreditAccount: begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if balance, err = s.st.Accounts.Credit(ctx, tx, username, amount); err != nil {
		return decimal.Zero, wrapStoreErr(s.log, "settlement_service.CreditAccount", err)
	}
	if err = tx.Commit(); err != nil {
		return decimal.Zero, wrapStoreErr(s.log, "settlement_service.CreditAccount: commit", err)
	}

	s.log.Info("account credited", zap.String("username", username), zap.String("amount", amount.StringFixed(2)))
	return balance, nil
}

// FundHouse adds amount to the house balance.
func (s *SettlementService) FundHouse(ctx context.Context, amount decimal.Decimal) (h *domain.HoldingState, err error) {
	if err = domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	tx, err := s.st.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.FundHouse: begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if h, err = s.st.Holding.CreditHouse(ctx, tx, amount); err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.FundHouse", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, wrapStoreErr(s.log, "settlement_service.FundHouse: commit", err)
	}

	s.log.Info("house funded", zap.String("amount", amount.StringFixed(2)))
	return h, nil
}

// SeedHouse funds the house with amount only when it is still empty. Called
// once at startup.
func (s *SettlementService) SeedHouse(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	h, err := s.st.Holding.Get(ctx)
	if err != nil {
		return fmt.Errorf("settlement_service.SeedHouse: %w", err)
	}
	if !h.HouseBalance.IsZero() {
		return nil
	}
	_, err = s.FundHouse(ctx, amount)
	return err
}

// HoldingState returns the current escrow and house balances.
func (s *SettlementService) HoldingState(ctx context.Context) (*domain.HoldingState, error) {
	h, err := s.st.Holding.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.HoldingState: %w", err)
	}
	return h, nil
}

// ListAccountBets returns every bet of username for operators.
func (s *SettlementService) ListAccountBets(ctx context.Context, username string) ([]*domain.BetRecord, error) {
	if _, err := s.st.Accounts.Get(ctx, username); err != nil {
		return nil, fmt.Errorf("settlement_service.ListAccountBets: %w", err)
	}
	bets, err := s.st.Bets.ListByOwner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ListAccountBets: %w", err)
	}
	return bets, nil
}

// ListOpenBets pages through unresolved bets, oldest first.
func (s *SettlementService) ListOpenBets(ctx context.Context, limit, offset int) ([]*domain.BetRecord, error) {
	bets, err := s.st.Bets.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ListOpenBets: %w", err)
	}
	return bets, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk
// ──────────────────────────────────────────────────────────────────────────────

// Exposure summarises what the house stands to pay if every open bet wins.
type Exposure struct {
	OpenBets      int             `json:"open_bets"`
	TotalStaked   decimal.Decimal `json:"total_staked"`
	WorstCaseLoss decimal.Decimal `json:"worst_case_loss"` // sum of winnings over open bets
	HouseBalance  decimal.Decimal `json:"house_balance"`
	Covered       bool            `json:"covered"` // house balance >= worst case
	ComputedAt    time.Time       `json:"computed_at"`
}

const exposurePage = 500

// Exposure walks every open bet and compares the worst case to the house.
func (s *SettlementService) Exposure(ctx context.Context) (*Exposure, error) {
	h, err := s.st.Holding.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.Exposure: %w", err)
	}

	e := &Exposure{HouseBalance: h.HouseBalance, ComputedAt: time.Now().UTC()}
	for offset := 0; ; offset += exposurePage {
		page, err := s.st.Bets.ListOpen(ctx, exposurePage, offset)
		if err != nil {
			return nil, fmt.Errorf("settlement_service.Exposure: %w", err)
		}
		for _, b := range page {
			e.OpenBets++
			e.TotalStaked = e.TotalStaked.Add(b.Amount)
			e.WorstCaseLoss = e.WorstCaseLoss.Add(b.Winnings())
		}
		if len(page) < exposurePage {
			break
		}
	}
	e.Covered = e.HouseBalance.GreaterThanOrEqual(e.WorstCaseLoss)
	return e, nil
}
