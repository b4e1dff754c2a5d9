package handlers

import (
	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	policy      policy.Policy
	authConfig  *config.AuthConfig
}

func NewAuthHandler(authService *services.AuthService, p policy.Policy, cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		policy:      p,
		authConfig:  cfg,
	}
}

// Register creates a USER account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":     user,
		"is_admin": policy.IsAdmin(h.policy, services.IdentityOf(user)),
	})
}

// GetAuthConfig returns authentication configuration
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"ldap_enabled":       h.authService.IsLDAPEnabled(),
		"allow_registration": h.authConfig.AllowRegistration,
	})
}

// Logout handles user logout (client-side token removal)
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Message(c, "logged out successfully")
}

// ChangePassword updates the caller's local password
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "password changed successfully")
}
