package middleware

import (
	"net/http"

	"github.com/edubridge-labs/tokenvault/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	// APIKeyHeader carries the vendor key as "<key_id>.<secret>".
	APIKeyHeader = "X-Api-Key"

	ContextVendor = "vendor"
	ContextKeyID  = "key_id"
)

// APIKeyRequired authenticates vendor requests against the credential store.
// The vendor name lands in the context so handlers can scope token operations
// to the caller.
func APIKeyRequired(credentials *services.CredentialService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			c.Abort()
			return
		}

		cred, err := credentials.Verify(apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextVendor, cred.Vendor)
		c.Set(ContextKeyID, cred.KeyID)
		c.Next()
	}
}

// GetVendor gets the authenticated vendor name from context.
func GetVendor(c *gin.Context) string {
	if v, exists := c.Get(ContextVendor); exists {
		return v.(string)
	}
	return ""
}
