package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinanceHandler serves the holding view and operator money movements.
type FinanceHandler struct {
	settle *service.SettlementService
	log    *zap.Logger
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(settle *service.SettlementService, log *zap.Logger) *FinanceHandler {
	return &FinanceHandler{settle: settle, log: log}
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" binding:"max=256"`
}

// Holding godoc
// GET /admin/holding
func (h *FinanceHandler) Holding(c *gin.Context) {
	state, err := h.settle.HoldingState(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, state)
}

// FundHouse godoc
// POST /admin/house/fund
// Body: {"amount":"10000.00","note":"weekly top-up"}
func (h *FinanceHandler) FundHouse(c *gin.Context) {
	var body amountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	state, err := h.settle.FundHouse(c.Request.Context(), body.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.log.Info("house funded by operator",
		zap.String("admin", adminUsername(c)),
		zap.String("amount", body.Amount.StringFixed(2)),
		zap.String("note", body.Note),
	)
	respondSuccess(c, http.StatusOK, state)
}

// CreditAccount godoc
// POST /admin/accounts/:username/credit
// Body: {"amount":"50.00","note":"goodwill"}
func (h *FinanceHandler) CreditAccount(c *gin.Context) {
	username := c.Param("username")
	var body amountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	balance, err := h.settle.CreditAccount(c.Request.Context(), username, body.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.log.Info("account credited by operator",
		zap.String("admin", adminUsername(c)),
		zap.String("username", username),
		zap.String("amount", body.Amount.StringFixed(2)),
		zap.String("note", body.Note),
	)
	respondSuccess(c, http.StatusOK, gin.H{"username": username, "balance": balance})
}
