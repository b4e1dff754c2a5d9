package main

import (
	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine and returns
// the rate limiter so the caller can stop it on shutdown.
func registerRoutes(r *gin.Engine, svc *appServices, cfg *config.ServerConfig) *middleware.RateLimiter {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(cfg.CORSOrigins...))

	// Rate limiter for login, registration and votes
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	svc.handlers.Register(r, svc.policy, limiter)
	return limiter
}
