package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/api/middleware"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/gin-gonic/gin"
)

// UserHandler handles authentication and profile endpoints.
type UserHandler struct {
	authSvc *service.AuthService
	ledger  *service.LedgerService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authSvc *service.AuthService, ledger *service.LedgerService) *UserHandler {
	return &UserHandler{authSvc: authSvc, ledger: ledger}
}

// Register godoc
// POST /api/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err, "registration failed")
		return
	}
	respondSuccess(c, http.StatusCreated, resp)
}

// Login godoc
// POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(c, err, "login failed")
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Refresh godoc
// POST /api/auth/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	access, refresh, err := h.authSvc.RefreshToken(c.Request.Context(), body.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "ERR_INVALID_TOKEN", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// Me godoc
// GET /api/me [JWT]
func (h *UserHandler) Me(c *gin.Context) {
	username := middleware.GetUsername(c)
	balance, err := h.ledger.GetBalance(c.Request.Context(), username)
	if err != nil {
		respondDomainError(c, err, "could not fetch balance")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"username": username,
		"role":     middleware.GetRole(c),
		"balance":  balance,
	})
}
