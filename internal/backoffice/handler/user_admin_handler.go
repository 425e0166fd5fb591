package handler

import (
	"net/http"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserAdminHandler serves /admin/users endpoints.
type UserAdminHandler struct {
	userRepo *repository.UserRepository
	log      *zap.Logger
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(userRepo *repository.UserRepository, log *zap.Logger) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, log: log}
}

// Detail godoc
// GET /admin/users/:username
func (h *UserAdminHandler) Detail(c *gin.Context) {
	user, err := h.userRepo.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// Suspend godoc
// POST /admin/users/:username/suspend
func (h *UserAdminHandler) Suspend(c *gin.Context) { h.setActive(c, false) }

// Activate godoc
// POST /admin/users/:username/activate
func (h *UserAdminHandler) Activate(c *gin.Context) { h.setActive(c, true) }

func (h *UserAdminHandler) setActive(c *gin.Context, active bool) {
	username := c.Param("username")
	if err := h.userRepo.SetActive(c.Request.Context(), username, active); err != nil {
		respondDomainError(c, err)
		return
	}
	h.log.Info("user activity changed",
		zap.String("admin", adminUsername(c)),
		zap.String("username", username),
		zap.Bool("active", active),
	)
	respondSuccess(c, http.StatusOK, gin.H{"username": username, "is_active": active})
}

// SetRole godoc
// POST /admin/users/:username/role
// Body: {"role":"finance"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	username := c.Param("username")
	var body struct {
		Role string `json:"role" binding:"required,oneof=user admin finance readonly"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if username == adminUsername(c) {
		respondError(c, http.StatusConflict, "ERR_SELF_ROLE_CHANGE", "operators cannot change their own role")
		return
	}

	if err := h.userRepo.UpdateRole(c.Request.Context(), username, domain.UserRole(body.Role)); err != nil {
		respondDomainError(c, err)
		return
	}
	h.log.Info("user role changed",
		zap.String("admin", adminUsername(c)),
		zap.String("username", username),
		zap.String("role", body.Role),
	)
	respondSuccess(c, http.StatusOK, gin.H{"username": username, "role": body.Role})
}
