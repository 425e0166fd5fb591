package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/sportsbook/internal/service"
	"github.com/evetabi/sportsbook/internal/ws"
	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	settle *service.SettlementService
	hub    *ws.Hub
}

// NewDashboardHandler creates a DashboardHandler. hub may be nil when the
// back-office runs as its own process.
func NewDashboardHandler(settle *service.SettlementService, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{settle: settle, hub: hub}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	holding, err := h.settle.HoldingState(ctx)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	exposure, err := h.settle.Exposure(ctx)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":       time.Now().UTC(),
		"holding_balance": holding.HoldingBalance,
		"house_balance":   holding.HouseBalance,
		"open_bets":       exposure.OpenBets,
		"worst_case_loss": exposure.WorstCaseLoss,
		"risk_indicator":  riskIndicator(exposure),
		"ws_connections":  wsConnections,
	})
}
