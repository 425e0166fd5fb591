// Package events defines the ledger's outbound event contracts and the
// publishers that deliver them.
package events

import (
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/shopspring/decimal"
)

// BetPlaced is emitted after a placement transaction commits.
type BetPlaced struct {
	BetID           string          `json:"bet_id"`
	Username        string          `json:"username"`
	GameID          string          `json:"game_id"`
	Matchup         string          `json:"matchup"`
	Team            string          `json:"team"`
	BetType         string          `json:"bet_type"`
	Odds            int             `json:"odds"`
	Amount          decimal.Decimal `json:"amount"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	Balance         decimal.Decimal `json:"balance"` // owner's balance after the debit
	TsUnixMs        int64           `json:"ts_unix_ms"`
}

// BetSettled is emitted after a settlement transaction commits.
type BetSettled struct {
	BetID    string          `json:"bet_id"`
	Username string          `json:"username"`
	Outcome  string          `json:"outcome"`
	Amount   decimal.Decimal `json:"amount"`
	Credited decimal.Decimal `json:"credited"`
	Balance  decimal.Decimal `json:"balance"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}

// NewBetPlaced builds the event for a committed placement.
func NewBetPlaced(res *domain.PlacementResult) BetPlaced {
	b := res.Bet
	return BetPlaced{
		BetID:           b.ID.String(),
		Username:        b.Username,
		GameID:          b.GameID,
		Matchup:         b.Matchup,
		Team:            b.Team,
		BetType:         string(b.BetType),
		Odds:            b.Odds,
		Amount:          b.Amount,
		PotentialPayout: b.PotentialPayout,
		Balance:         res.Balance,
		TsUnixMs:        time.Now().UnixMilli(),
	}
}

// NewBetSettled builds the event for a committed settlement.
func NewBetSettled(res *domain.SettlementResult) BetSettled {
	e := BetSettled{
		BetID:    res.Bet.ID.String(),
		Username: res.Bet.Username,
		Amount:   res.Bet.Amount,
		Credited: res.Credited,
		Balance:  res.Balance,
		TsUnixMs: time.Now().UnixMilli(),
	}
	if res.Bet.Outcome != nil {
		e.Outcome = string(*res.Bet.Outcome)
	}
	return e
}
