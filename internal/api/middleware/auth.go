package middleware

import (
	"net/http"
	"strings"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxUsername = "username"
	CtxRole     = "role"
)

// TokenParser validates an access token. *service.AuthService satisfies it.
type TokenParser interface {
	ParseAccessToken(tokenString string) (*service.AppClaims, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores the username and role in the gin context. The
// username is the only identity handlers trust; request bodies never carry it.
func JWTMiddleware(auth TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   domain.ErrUnauthorized.Error(),
				"code":    "ERR_UNAUTHORIZED",
			})
			return
		}

		claims, err := auth.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   domain.ErrTokenInvalid.Error(),
				"code":    "ERR_INVALID_TOKEN",
			})
			return
		}

		c.Set(CtxUsername, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware ensures the authenticated user has one of the allowed roles.
// Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[domain.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   domain.ErrForbidden.Error(),
				"code":    "ERR_FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// AdminMiddleware allows every back-office role through.
// Must be placed after JWTMiddleware in the chain.
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(domain.RoleAdmin, domain.RoleFinance, domain.RoleReadOnly)
}

// FundsMiddleware allows only roles that may move money.
func FundsMiddleware() gin.HandlerFunc {
	return RoleMiddleware(domain.RoleAdmin, domain.RoleFinance)
}

// ── Context helpers ───────────────────────────────────────────────────────────

// GetUsername retrieves the authenticated username from the gin context.
// Returns "" if the middleware was not applied.
func GetUsername(c *gin.Context) string {
	v, _ := c.Get(CtxUsername)
	u, _ := v.(string)
	return u
}

// GetRole retrieves the authenticated user's role from the gin context.
func GetRole(c *gin.Context) domain.UserRole {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return domain.UserRole(r)
}
