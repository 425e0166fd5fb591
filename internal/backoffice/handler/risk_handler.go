package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RiskHandler serves /admin/risk endpoints.
type RiskHandler struct {
	settle *service.SettlementService
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(settle *service.SettlementService) *RiskHandler {
	return &RiskHandler{settle: settle}
}

// Exposure godoc
// GET /admin/risk/exposure
func (h *RiskHandler) Exposure(c *gin.Context) {
	e, err := h.settle.Exposure(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"exposure":       e,
		"risk_indicator": riskIndicator(e),
	})
}

var (
	yellowRatio = decimal.NewFromFloat(0.7)
	redRatio    = decimal.NewFromInt(1)
)

// riskIndicator returns GREEN/YELLOW/RED from worst case over house balance.
func riskIndicator(e *service.Exposure) string {
	if e.WorstCaseLoss.IsZero() {
		return "GREEN"
	}
	if e.HouseBalance.IsZero() {
		return "RED"
	}
	ratio := e.WorstCaseLoss.Div(e.HouseBalance)
	switch {
	case ratio.GreaterThan(redRatio):
		return "RED"
	case ratio.GreaterThan(yellowRatio):
		return "YELLOW"
	default:
		return "GREEN"
	}
}
