package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BetType is the market a wager is placed on.
type BetType string

const (
	BetTypeMoneyline BetType = "moneyline"
	BetTypeSpread    BetType = "spread"
	BetTypeTotal     BetType = "total"
)

// IsValid returns true for the three supported markets.
func (t BetType) IsValid() bool {
	switch t {
	case BetTypeMoneyline, BetTypeSpread, BetTypeTotal:
		return true
	}
	return false
}

// BetOutcome is the settled result of a bet. Unset until resolved.
type BetOutcome string

const (
	OutcomeWon  BetOutcome = "won"
	OutcomeLost BetOutcome = "lost"
	OutcomePush BetOutcome = "push" // line landed exactly; stake is refunded
)

// IsValid returns true for won, lost and push.
func (o BetOutcome) IsValid() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomePush:
		return true
	}
	return false
}

// UnknownMatchup is stored when the odds provider cannot name the game.
const UnknownMatchup = "Unknown Matchup"

// ──────────────────────────────────────────────────────────────────────────────
// BetRecord
// ──────────────────────────────────────────────────────────────────────────────

// BetRecord is one entry of the bet ledger. Apart from resolution it is
// immutable once appended.
type BetRecord struct {
	ID              uuid.UUID        `json:"id"               db:"id"`
	Seq             int64            `json:"-"                db:"seq"`
	Username        string           `json:"user"             db:"username"         validate:"required"`
	GameID          string           `json:"game_id"          db:"game_id"          validate:"required,max=128"`
	Team            string           `json:"team"             db:"team"             validate:"required,max=128"`
	BetType         BetType          `json:"bet_type"         db:"bet_type"         validate:"oneof=moneyline spread total"`
	Odds            int              `json:"odds"             db:"odds"             validate:"ne=0"`
	Amount          decimal.Decimal  `json:"amount"           db:"amount"           validate:"gt=0"`
	PotentialPayout decimal.Decimal  `json:"potential_payout" db:"potential_payout" validate:"gt=0"`
	SpreadValue     *decimal.Decimal `json:"spread_value"     db:"spread_value"`
	TotalValue      *decimal.Decimal `json:"total_value"      db:"total_value"`
	Matchup         string           `json:"matchup"          db:"matchup"          validate:"required"`
	Resolved        bool             `json:"resolved"         db:"resolved"`
	Outcome         *BetOutcome      `json:"outcome"          db:"outcome"`
	PlacedAt        time.Time        `json:"placed_at"        db:"placed_at"`
	ResolvedAt      *time.Time       `json:"resolved_at"      db:"resolved_at"`
}

// Won reports whether the bet was settled as a win. False while open.
func (b *BetRecord) Won() bool {
	return b.Outcome != nil && *b.Outcome == OutcomeWon
}

// Winnings is the amount the house contributes on a win: payout minus stake.
func (b *BetRecord) Winnings() decimal.Decimal {
	return b.PotentialPayout.Sub(b.Amount)
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBetRequest (value object used by LedgerService)
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetRequest carries the caller's wager. The username comes from the
// identity layer, never from the request body.
type PlaceBetRequest struct {
	GameID      string
	Team        string
	BetType     BetType
	Odds        int
	Amount      decimal.Decimal
	SpreadValue *decimal.Decimal
	TotalValue  *decimal.Decimal
}

// Validate checks the request shape. It does not look at balances.
func (r PlaceBetRequest) Validate() error {
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if r.Odds == 0 {
		return ErrInvalidOdds
	}
	if !r.BetType.IsValid() {
		return ErrInvalidBetType
	}
	return nil
}

// PlacementResult is what the coordinator hands back after a committed bet.
type PlacementResult struct {
	Balance decimal.Decimal `json:"balance"`
	Bet     *BetRecord      `json:"bet"`
}

// SettlementResult describes the money moved when a bet was resolved.
type SettlementResult struct {
	Bet      *BetRecord      `json:"bet"`
	Credited decimal.Decimal `json:"credited"` // paid to the owner (zero on a loss)
	Balance  decimal.Decimal `json:"balance"`  // owner's balance after settlement
	Holding  HoldingState    `json:"holding"`
}
