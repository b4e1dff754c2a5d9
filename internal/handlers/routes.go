package handlers

import (
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/policy"
	"github.com/gin-gonic/gin"
)

// Set groups the handlers mounted by Register.
type Set struct {
	Auth       *AuthHandler
	Feature    *FeatureHandler
	Vote       *VoteHandler
	Profile    *ProfileHandler
	Attachment *AttachmentHandler
	Admin      *AdminHandler
	Health     *HealthHandler
	Metrics    *MetricsHandler
}

// Register mounts the API on r. limiter guards the login, registration and
// vote endpoints and may be nil.
func (h *Set) Register(r *gin.Engine, p policy.Policy, limiter *middleware.RateLimiter) {
	limit := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		limit = limiter.Middleware()
	}

	r.GET("/health", h.Health.CheckHealth)
	r.GET("/metrics", h.Metrics.Metrics)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", limit, h.Auth.Register)
			auth.POST("/login", limit, h.Auth.Login)
			auth.GET("/config", h.Auth.GetAuthConfig)
		}

		// Public reads; the identity is used for has_voted when present
		public := api.Group("", middleware.OptionalAuth())
		{
			public.GET("/features", h.Feature.List)
			public.GET("/features/:id", h.Feature.GetByID)
			public.GET("/attachments/:locator", h.Attachment.Download)
		}

		protected := api.Group("", middleware.AuthRequired())
		{
			protected.GET("/auth/me", h.Auth.GetCurrentUser)
			protected.POST("/auth/logout", h.Auth.Logout)
			protected.POST("/auth/change-password", h.Auth.ChangePassword)

			protected.POST("/features", h.Feature.Create)
			protected.PATCH("/features/:id/status", middleware.AuditLog(), h.Feature.UpdateStatus)
			protected.POST("/features/:id/vote", limit, h.Vote.Add)
			protected.DELETE("/features/:id/vote", limit, h.Vote.Remove)

			protected.GET("/profile", h.Profile.Get)
		}

		admin := api.Group("/admin", middleware.AuthRequired(), middleware.AuditLog())
		{
			admin.GET("/check", middleware.AdminRequired(p, policy.ActionListAdminData), h.Admin.Check)
			admin.GET("/features", h.Admin.ListFeatures)
			admin.DELETE("/features", h.Admin.ResetFeatures)
			admin.DELETE("/features/:id", h.Admin.DeleteFeature)
			admin.GET("/users", h.Admin.ListUsers)
			admin.DELETE("/users", h.Admin.DeleteNonAdminUsers)
			admin.DELETE("/users/:id", h.Admin.DeleteUser)
			admin.GET("/audit-logs", middleware.AdminRequired(p, policy.ActionListAdminData), h.Admin.ListAuditLogs)
		}
	}
}
