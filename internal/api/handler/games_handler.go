package handler

import (
	"context"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/gin-gonic/gin"
)

// GamesSource returns current quotes. *odds.Provider satisfies it; empty
// sport or bookmaker selects the configured defaults.
type GamesSource interface {
	Games(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error)
}

// GamesHandler serves the public odds board.
type GamesHandler struct {
	games GamesSource
}

// NewGamesHandler creates a GamesHandler.
func NewGamesHandler(games GamesSource) *GamesHandler {
	return &GamesHandler{games: games}
}

// ListGames godoc
// GET /api/games?sport=basketball_nba&bookmaker=fanduel
func (h *GamesHandler) ListGames(c *gin.Context) {
	games, err := h.games.Games(c.Request.Context(), c.Query("sport"), c.Query("bookmaker"))
	if err != nil {
		respondDomainError(c, err, "could not fetch odds")
		return
	}
	respondList(c, games, len(games), 1, len(games))
}
