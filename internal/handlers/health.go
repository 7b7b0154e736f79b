package handlers

import (
	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/services"
	"github.com/gin-gonic/gin"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct {
	authority services.TokenAuthority
}

func NewHealthHandler(authority services.TokenAuthority) *HealthHandler {
	return &HealthHandler{authority: authority}
}

// CheckHealth returns the health status of all subsystems. The remote
// authority being down does not make the service unhealthy; the local engine
// keeps serving.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	authorityStatus := "ok"
	if !h.authority.Available(c.Request.Context()) {
		authorityStatus = "unavailable (serving locally)"
	}

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "tokenvault",
		"components": gin.H{
			"database":       dbStatus,
			"authority_mode": h.authority.Mode(),
			"authority":      authorityStatus,
		},
	})
}
