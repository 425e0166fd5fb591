package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OddsLine is one priced outcome in a market, e.g. "Lakers -3.5 at -110".
type OddsLine struct {
	Name  string           `json:"name"`
	Price int              `json:"price"`           // American odds
	Point *decimal.Decimal `json:"point,omitempty"` // spread or total line; nil for moneyline
}

// GameQuote is the normalised shape the odds provider hands to the rest of
// the system: one bookmaker's moneyline, spread and totals for one game.
type GameQuote struct {
	ID           string     `json:"id"`
	Teams        []string   `json:"teams"`
	CommenceTime time.Time  `json:"commence_time"`
	Bookmaker    string     `json:"bookmaker"`
	Moneyline    []OddsLine `json:"moneyline"`
	Spread       []OddsLine `json:"spread"`
	Totals       []OddsLine `json:"totals"`
}

// Matchup returns "<a> vs <b>" when the moneyline market has exactly two
// outcomes, and UnknownMatchup otherwise.
func (g *GameQuote) Matchup() string {
	if len(g.Moneyline) != 2 {
		return UnknownMatchup
	}
	a, b := strings.TrimSpace(g.Moneyline[0].Name), strings.TrimSpace(g.Moneyline[1].Name)
	if a == "" || b == "" {
		return UnknownMatchup
	}
	return a + " vs " + b
}
