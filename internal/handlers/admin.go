package handlers

import (
	"strconv"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/services"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"github.com/edubridge-labs/tokenvault/pkg/response"
	"github.com/gin-gonic/gin"
)

// AdminHandler covers the operator surface: maintenance sweeps, expiry
// forecasting, vendor credentials and the resolution audit trail.
type AdminHandler struct {
	lifecycle   *services.LifecycleService
	sweeper     *services.SweepService
	credentials *services.CredentialService
	mappings    *services.TokenMappingService
}

func NewAdminHandler(lifecycle *services.LifecycleService, sweeper *services.SweepService, credentials *services.CredentialService, mappings *services.TokenMappingService) *AdminHandler {
	return &AdminHandler{
		lifecycle:   lifecycle,
		sweeper:     sweeper,
		credentials: credentials,
		mappings:    mappings,
	}
}

// ExpiringTokens lists ACTIVE tokens expiring within the given window.
// GET /api/admin/tokens/expiring?days=30
func (h *AdminHandler) ExpiringTokens(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "days must be a positive integer")
			return
		}
		days = parsed
	}

	tokens, err := h.lifecycle.Store().FindExpiringBefore(time.Now().AddDate(0, 0, days))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"days": days, "tokens": tokens})
}

// ScopeTokens lists one vendor scope's tokens in a given status, ACTIVE by
// default. Used when off-boarding a vendor to see what is still live.
// GET /api/admin/scopes/:vendor/tokens?status=ACTIVE
func (h *AdminHandler) ScopeTokens(c *gin.Context) {
	status := token.Status(c.DefaultQuery("status", string(token.StatusActive)))
	switch status {
	case token.StatusActive, token.StatusExpired, token.StatusRevoked, token.StatusRotated:
	default:
		response.BadRequest(c, "unknown status "+string(status))
		return
	}

	tokens, err := h.lifecycle.Store().FindByScopeAndStatus(c.Param("vendor"), status)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"vendor": c.Param("vendor"), "status": status, "tokens": tokens})
}

// RunExpireSweep triggers the expiry sweep outside its schedule.
// POST /api/admin/sweeps/expire
func (h *AdminHandler) RunExpireSweep(c *gin.Context) {
	n, err := h.sweeper.RunExpireSweep()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"expired": n})
}

// RunRetentionCleanup triggers the retention cleanup outside its schedule.
// POST /api/admin/sweeps/cleanup
func (h *AdminHandler) RunRetentionCleanup(c *gin.Context) {
	n, err := h.sweeper.RunRetentionCleanup()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"purged": n})
}

type issueCredentialRequest struct {
	Vendor string `json:"vendor" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// IssueCredential mints a vendor API key. The secret appears only in this
// response.
// POST /api/admin/credentials
func (h *AdminHandler) IssueCredential(c *gin.Context) {
	var req issueCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	issued, err := h.credentials.Issue(req.Vendor, req.Name)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Created(c, issued)
}

// ListCredentials lists credentials, optionally filtered by vendor.
// GET /api/admin/credentials?vendor=clever
func (h *AdminHandler) ListCredentials(c *gin.Context) {
	creds, err := h.credentials.List(c.Query("vendor"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, creds)
}

// DisableCredential deactivates a vendor key.
// DELETE /api/admin/credentials/:key_id
func (h *AdminHandler) DisableCredential(c *gin.Context) {
	if err := h.credentials.Disable(c.Param("key_id")); err != nil {
		if err == services.ErrCredentialNotFound {
			response.NotFound(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"disabled": c.Param("key_id")})
}

// TokenAuditTrail lists recent resolutions of one token value.
// GET /api/admin/mappings/token/:value
func (h *AdminHandler) TokenAuditTrail(c *gin.Context) {
	rows, err := h.mappings.RecentForToken(c.Param("value"), auditLimit(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, rows)
}

// VendorAuditTrail lists recent resolutions attributed to one vendor.
// GET /api/admin/mappings/vendor/:vendor
func (h *AdminHandler) VendorAuditTrail(c *gin.Context) {
	rows, err := h.mappings.RecentForVendor(c.Param("vendor"), auditLimit(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, rows)
}

func auditLimit(c *gin.Context) int {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	return limit
}
