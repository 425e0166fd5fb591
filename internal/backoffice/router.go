// Package backoffice serves the operator API: settlement, money movements,
// risk views and user administration.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/evetabi/sportsbook/internal/api/middleware"
	"github.com/evetabi/sportsbook/internal/backoffice/handler"
	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/evetabi/sportsbook/internal/ws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc   *service.AuthService
	SettleSvc *service.SettlementService
	UserRepo  *repository.UserRepository
	Hub       *ws.Hub // optional
	Cfg       *config.Config
	Log       *zap.Logger
}

// SetupBackofficeRouter creates the admin Gin engine.
//
// Every route needs a back-office role. Reads are open to readonly operators;
// anything that moves money needs admin or finance, and user administration
// needs admin.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("backoffice")

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.SettleSvc, deps.Hub)
	financeH := handler.NewFinanceHandler(deps.SettleSvc, log)
	betH := handler.NewBetAdminHandler(deps.SettleSvc, log)
	riskH := handler.NewRiskHandler(deps.SettleSvc)
	userH := handler.NewUserAdminHandler(deps.UserRepo, log)

	funds := middleware.FundsMiddleware()
	adminOnly := middleware.RoleMiddleware(domain.RoleAdmin)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(deps.AuthSvc), middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", dashH.Dashboard)
		admin.GET("/holding", financeH.Holding)
		admin.GET("/risk/exposure", riskH.Exposure)
		admin.POST("/house/fund", funds, financeH.FundHouse)

		// Accounts
		a := admin.Group("/accounts/:username")
		{
			a.GET("/bets", betH.AccountBets)
			a.POST("/credit", funds, financeH.CreditAccount)
		}

		// Bets
		b := admin.Group("/bets")
		{
			b.GET("/open", betH.OpenBets)
			b.POST("/:id/resolve", funds, betH.Resolve)
		}

		// Users
		u := admin.Group("/users/:username")
		{
			u.GET("", userH.Detail)
			u.POST("/suspend", adminOnly, userH.Suspend)
			u.POST("/activate", adminOnly, userH.Activate)
			u.POST("/role", adminOnly, userH.SetRole)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "ERR_IP_NOT_ALLOWED",
			})
			return
		}
		c.Next()
	}
}
