package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// IsWholeCents reports whether a has no digits beyond the second decimal place.
// Balances are stored as NUMERIC(18,2), so anything finer would be rounded away
// by the store.
func IsWholeCents(a decimal.Decimal) bool {
	return a.Equal(a.Truncate(2))
}

// ValidateAmount accepts positive, whole-cent money amounts.
func ValidateAmount(a decimal.Decimal) error {
	if !a.IsPositive() || !IsWholeCents(a) {
		return ErrInvalidAmount
	}
	return nil
}

// ComputePayout returns the total return (stake included) of a winning bet at
// the given American odds.
//
//	odds > 0:  stake × odds / 100 + stake
//	odds < 0:  stake × 100 / |odds| + stake
//
// The result is rounded half-even to 2 decimal places. Zero odds are rejected
// with ErrInvalidOdds.
func ComputePayout(stake decimal.Decimal, americanOdds int) (decimal.Decimal, error) {
	if americanOdds == 0 {
		return decimal.Zero, ErrInvalidOdds
	}
	odds := decimal.NewFromInt(int64(americanOdds))

	var profit decimal.Decimal
	if americanOdds > 0 {
		profit = stake.Mul(odds).Div(hundred)
	} else {
		profit = stake.Mul(hundred).Div(odds.Abs())
	}
	return profit.Add(stake).RoundBank(2), nil
}
