// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeBetPlaced   MsgType = "bet_placed"
	MsgTypeBetSettled  MsgType = "bet_settled"
	MsgTypeOddsUpdated MsgType = "odds_updated"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-user messages
// ──────────────────────────────────────────────────────────────────────────────

// BetPlacedMessage is sent to the owner after a placement commits.
type BetPlacedMessage struct {
	Type      MsgType           `json:"type"`
	Bet       *domain.BetRecord `json:"bet"`
	Balance   decimal.Decimal   `json:"balance"`
	Timestamp time.Time         `json:"timestamp"`
}

// BetSettledMessage is sent to the owner after a settlement commits.
type BetSettledMessage struct {
	Type      MsgType           `json:"type"`
	Bet       *domain.BetRecord `json:"bet"`
	Credited  decimal.Decimal   `json:"credited"`
	Balance   decimal.Decimal   `json:"balance"`
	Timestamp time.Time         `json:"timestamp"`
}

// BetSettledEventMessage carries a settlement relayed from the event stream,
// where only the event fields are known.
type BetSettledEventMessage struct {
	Type      MsgType         `json:"type"`
	BetID     string          `json:"bet_id"`
	Outcome   string          `json:"outcome"`
	Credited  decimal.Decimal `json:"credited"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast messages
// ──────────────────────────────────────────────────────────────────────────────

// OddsUpdatedMessage tells every client that fresh quotes are available for
// a sport so they can refetch /api/games.
type OddsUpdatedMessage struct {
	Type      MsgType   `json:"type"`
	Sport     string    `json:"sport"`
	Games     int       `json:"games"`
	Timestamp time.Time `json:"timestamp"`
}
