package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/api/middleware"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetHandler serves bet placement and bet history endpoints.
type BetHandler struct {
	ledger *service.LedgerService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(ledger *service.LedgerService) *BetHandler {
	return &BetHandler{ledger: ledger}
}

// placeBetBody is the wire form of a wager. amount accepts a JSON number or a
// decimal string; sign and zero checks happen in the ledger.
type placeBetBody struct {
	GameID      string           `json:"game_id"      binding:"required,max=128"`
	Team        string           `json:"team"         binding:"required,max=128"`
	BetType     string           `json:"bet_type"     binding:"required"`
	Odds        int              `json:"odds"`
	Amount      decimal.Decimal  `json:"amount"`
	SpreadValue *decimal.Decimal `json:"spread_value"`
	TotalValue  *decimal.Decimal `json:"total_value"`
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"game_id":"abc","team":"Lakers","bet_type":"moneyline","odds":-110,"amount":"50.00"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var body placeBetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	res, err := h.ledger.PlaceBet(c.Request.Context(), middleware.GetUsername(c), domain.PlaceBetRequest{
		GameID:      body.GameID,
		Team:        body.Team,
		BetType:     domain.BetType(body.BetType),
		Odds:        body.Odds,
		Amount:      body.Amount,
		SpreadValue: body.SpreadValue,
		TotalValue:  body.TotalValue,
	})
	if err != nil {
		respondDomainError(c, err, "could not place bet")
		return
	}
	respondSuccess(c, http.StatusCreated, res)
}

// GetMyBets godoc
// GET /api/bets/me [JWT]
func (h *BetHandler) GetMyBets(c *gin.Context) {
	bets, err := h.ledger.ListBets(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		respondDomainError(c, err, "could not fetch bets")
		return
	}
	respondList(c, bets, len(bets), 1, len(bets))
}

// GetBetByID godoc
// GET /api/bets/:id [JWT]
func (h *BetHandler) GetBetByID(c *gin.Context) {
	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BET_ID", "invalid bet id")
		return
	}

	bet, err := h.ledger.GetBet(c.Request.Context(), middleware.GetUsername(c), betID)
	if err != nil {
		respondDomainError(c, err, "could not fetch bet")
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}
