// Package api wires the public HTTP surface: auth, odds board, bet placement
// and the WebSocket upgrade.
package api

import (
	"context"
	"net/http"

	"github.com/evetabi/sportsbook/internal/api/handler"
	"github.com/evetabi/sportsbook/internal/api/middleware"
	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/evetabi/sportsbook/internal/ws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc   *service.AuthService
	LedgerSvc *service.LedgerService
	Games     handler.GamesSource
	Hub       *ws.Hub
	Cfg       *config.Config
	Log       *zap.Logger
}

// SetupRouter creates the main Gin engine with all routes, middleware, CORS
// and rate limiting rules. ctx bounds the rate limiter janitors.
func SetupRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.LedgerSvc)
	betH := handler.NewBetHandler(deps.LedgerSvc)

	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(ctx, 10) // per IP, auth endpoints
	betRL := middleware.RateLimitMiddleware(ctx, 30)  // per IP, bet endpoints

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		if deps.Games != nil {
			api.GET("/games", handler.NewGamesHandler(deps.Games).ListGames)
		}

		authed := api.Group("")
		authed.Use(jwtMW)
		{
			authed.GET("/me", userH.Me)

			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.POST("", betH.PlaceBet)
				bets.GET("/me", betH.GetMyBets)
				bets.GET("/:id", betH.GetBetByID)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware allows any origin outside production. In production only
// cfg.Server.AllowedOrigins are echoed back.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
