package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BetAdminHandler serves bet listing and settlement for operators.
type BetAdminHandler struct {
	settle *service.SettlementService
	log    *zap.Logger
}

// NewBetAdminHandler creates a BetAdminHandler.
func NewBetAdminHandler(settle *service.SettlementService, log *zap.Logger) *BetAdminHandler {
	return &BetAdminHandler{settle: settle, log: log}
}

// OpenBets godoc
// GET /admin/bets/open?page=1&limit=50
func (h *BetAdminHandler) OpenBets(c *gin.Context) {
	page, limit := adminPagination(c)
	bets, err := h.settle.ListOpenBets(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, bets, len(bets), page, limit)
}

// AccountBets godoc
// GET /admin/accounts/:username/bets
func (h *BetAdminHandler) AccountBets(c *gin.Context) {
	bets, err := h.settle.ListAccountBets(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, bets, len(bets), 1, len(bets))
}

// Resolve godoc
// POST /admin/bets/:id/resolve
// Body: {"outcome":"won"}
func (h *BetAdminHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid bet id")
		return
	}
	var body struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	res, err := h.settle.ResolveBet(c.Request.Context(), id, domain.BetOutcome(body.Outcome))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.log.Info("bet resolved by operator",
		zap.String("admin", adminUsername(c)),
		zap.String("bet_id", id.String()),
		zap.String("outcome", body.Outcome),
	)
	respondSuccess(c, http.StatusOK, res)
}
