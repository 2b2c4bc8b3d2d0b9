package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-token-gate/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler *Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes (all admin endpoints require authentication: the
	// spec snapshot exposes the full rule configuration and the check
	// endpoint drives live ledger queries)
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(authCfg))
	{
		// Active ruleset snapshot
		v1.GET("/gate/spec", handler.GetSpec)

		// Dry-run decision
		v1.POST("/gate/check", handler.CheckAccess)

		// Atomic ruleset reload
		v1.POST("/gate/reload", handler.ReloadSpec)
	}
}
