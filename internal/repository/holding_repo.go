package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// HoldingRepository handles the singleton holding row: escrowed stakes of
// open bets plus the house's own funds.
type HoldingRepository struct {
	db *sqlx.DB
}

// NewHoldingRepository creates a new HoldingRepository.
func NewHoldingRepository(db *sqlx.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// Get returns the current holding state outside any transaction.
func (r *HoldingRepository) Get(ctx context.Context) (*domain.HoldingState, error) {
	var h domain.HoldingState
	if err := r.db.GetContext(ctx, &h,
		`SELECT holding_balance, house_balance, updated_at FROM holding WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("holding_repo.Get: %w", err)
	}
	return &h, nil
}

// GetForUpdate reads the holding row inside a transaction, row-locking it on
// backends that support it.
func (r *HoldingRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx) (*domain.HoldingState, error) {
	var h domain.HoldingState
	if err := tx.GetContext(ctx, &h,
		`SELECT holding_balance, house_balance, updated_at FROM holding WHERE id = 1`+lockClause(tx)); err != nil {
		return nil, fmt.Errorf("holding_repo.GetForUpdate: %w", err)
	}
	return &h, nil
}

// CreditHolding moves amount into escrow.
func (r *HoldingRepository) CreditHolding(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return r.adjust(ctx, tx, "CreditHolding", amount, decimal.Zero)
}

// DebitHolding releases amount from escrow. Fails with ErrInsufficientFunds
// when the holding balance is smaller than amount.
func (r *HoldingRepository) DebitHolding(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return r.adjust(ctx, tx, "DebitHolding", amount.Neg(), decimal.Zero)
}

// CreditHouse adds amount to the house balance.
func (r *HoldingRepository) CreditHouse(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return r.adjust(ctx, tx, "CreditHouse", decimal.Zero, amount)
}

// DebitHouse takes amount from the house balance. Fails with
// ErrInsufficientFunds when the house cannot cover it.
func (r *HoldingRepository) DebitHouse(ctx context.Context, tx *sqlx.Tx, amount decimal.Decimal) (*domain.HoldingState, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return r.adjust(ctx, tx, "DebitHouse", decimal.Zero, amount.Neg())
}

// adjust applies signed deltas to both balances. Exactly one delta is
// non-zero for every public operation.
func (r *HoldingRepository) adjust(ctx context.Context, tx *sqlx.Tx, op string, holdingDelta, houseDelta decimal.Decimal) (*domain.HoldingState, error) {
	h, err := r.GetForUpdate(ctx, tx)
	if err != nil {
		return nil, err
	}

	next := domain.HoldingState{
		HoldingBalance: h.HoldingBalance.Add(holdingDelta),
		HouseBalance:   h.HouseBalance.Add(houseDelta),
		UpdatedAt:      time.Now().UTC(),
	}
	if next.HoldingBalance.IsNegative() || next.HouseBalance.IsNegative() {
		return h, domain.ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, tx.Rebind(
		`UPDATE holding SET holding_balance = ?, house_balance = ?, updated_at = ? WHERE id = 1`),
		next.HoldingBalance, next.HouseBalance, next.UpdatedAt); err != nil {
		return nil, fmt.Errorf("holding_repo.%s: %w", op, err)
	}
	return &next, nil
}
