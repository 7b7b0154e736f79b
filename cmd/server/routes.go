package main

import (
	"github.com/edubridge-labs/tokenvault/internal/handlers"
	"github.com/edubridge-labs/tokenvault/internal/middleware"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(), middleware.RequestID())

	vendorLimiter := middleware.NewRateLimiter(50, 100)

	tokenHandler := handlers.NewTokenHandler(svc.authority, svc.resolution)
	authHandler := handlers.NewAuthHandler(svc.cfg)
	adminHandler := handlers.NewAdminHandler(svc.lifecycle, svc.sweeper, svc.credentials, svc.mappings)
	dashboardHandler := handlers.NewDashboardHandler(svc.dashboard)
	healthHandler := handlers.NewHealthHandler(svc.authority)

	// Health and metrics
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/login", authHandler.Login)

		// Vendor-facing token API (API key + per-credential rate limit)
		v1 := api.Group("/v1", middleware.APIKeyRequired(svc.credentials), vendorLimiter.Middleware())
		{
			v1.POST("/tokens/generate", tokenHandler.Generate)
			v1.POST("/tokens/generate/bulk", tokenHandler.GenerateBulk)
			v1.POST("/tokens/resolve", tokenHandler.Resolve)
			v1.POST("/tokens/resolve/bulk", tokenHandler.ResolveBulk)
			v1.GET("/tokens/validate/:value", tokenHandler.Validate)
			v1.GET("/entities/:type/:id/token", tokenHandler.EntityToken)
			v1.GET("/entities/:type/:id/history", tokenHandler.EntityHistory)
		}

		// Admin routes (JWT)
		admin := api.Group("", middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			admin.GET("/auth/me", authHandler.GetCurrentUser)
			admin.GET("/dashboard/stats", dashboardHandler.GetStats)

			admin.POST("/admin/tokens/:value/rotate", tokenHandler.Rotate)
			admin.POST("/admin/tokens/:value/revoke", tokenHandler.Revoke)
			admin.GET("/admin/tokens/expiring", adminHandler.ExpiringTokens)
			admin.GET("/admin/scopes/:vendor/tokens", adminHandler.ScopeTokens)
			admin.GET("/admin/entities/:type/:id/history", tokenHandler.EntityHistory)

			admin.POST("/admin/sweeps/expire", adminHandler.RunExpireSweep)
			admin.POST("/admin/sweeps/cleanup", adminHandler.RunRetentionCleanup)

			admin.POST("/admin/credentials", adminHandler.IssueCredential)
			admin.GET("/admin/credentials", adminHandler.ListCredentials)
			admin.DELETE("/admin/credentials/:key_id", adminHandler.DisableCredential)

			admin.GET("/admin/mappings/token/:value", adminHandler.TokenAuditTrail)
			admin.GET("/admin/mappings/vendor/:vendor", adminHandler.VendorAuditTrail)
		}
	}
}
