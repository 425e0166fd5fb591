package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// errorCodes maps sentinel errors to stable client-facing codes. Lookup is by
// errors.Is so wrapped errors resolve too.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInsufficientFunds, http.StatusBadRequest, "ERR_INSUFFICIENT_FUNDS"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "ERR_INVALID_AMOUNT"},
	{domain.ErrInvalidOdds, http.StatusBadRequest, "ERR_INVALID_ODDS"},
	{domain.ErrInvalidBetType, http.StatusBadRequest, "ERR_INVALID_BET_TYPE"},
	{domain.ErrInvalidOutcome, http.StatusBadRequest, "ERR_INVALID_OUTCOME"},
	{domain.ErrInvalidRecord, http.StatusBadRequest, "ERR_VALIDATION"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "ERR_ACCOUNT_NOT_FOUND"},
	{domain.ErrBetNotFound, http.StatusNotFound, "ERR_BET_NOT_FOUND"},
	{domain.ErrUserNotFound, http.StatusNotFound, "ERR_USER_NOT_FOUND"},
	{domain.ErrUsernameTaken, http.StatusConflict, "ERR_USERNAME_TAKEN"},
	{domain.ErrBetAlreadyResolved, http.StatusConflict, "ERR_BET_ALREADY_RESOLVED"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "ERR_INVALID_CREDENTIALS"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "ERR_INVALID_TOKEN"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "ERR_UNAUTHORIZED"},
	{domain.ErrUserInactive, http.StatusForbidden, "ERR_ACCOUNT_DISABLED"},
	{domain.ErrForbidden, http.StatusForbidden, "ERR_FORBIDDEN"},
	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "ERR_UPSTREAM_UNAVAILABLE"},
}

// respondDomainError maps err onto the envelope. Anything unrecognised is a
// 500 with fallback as the message, so storage details never leak.
func respondDomainError(c *gin.Context, err error, fallback string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			respondError(c, e.status, e.code, e.err.Error())
			return
		}
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
