package handlers

import (
	"errors"
	"strconv"

	"github.com/edubridge-labs/tokenvault/internal/middleware"
	"github.com/edubridge-labs/tokenvault/internal/services"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"github.com/edubridge-labs/tokenvault/pkg/response"
	"github.com/gin-gonic/gin"
)

// TokenHandler is the vendor-facing surface: generation, resolution and the
// entity-to-token reverse direction. All operations go through the configured
// authority, so a bridged deployment transparently prefers the remote.
type TokenHandler struct {
	authority  services.TokenAuthority
	resolution *services.ResolutionService
}

func NewTokenHandler(authority services.TokenAuthority, resolution *services.ResolutionService) *TokenHandler {
	return &TokenHandler{authority: authority, resolution: resolution}
}

type generateRequest struct {
	Type        string  `json:"type" binding:"required"`
	EntityID    int64   `json:"entity_id" binding:"required"`
	VendorScope *string `json:"vendor_scope"`
}

type bulkGenerateRequest struct {
	Type        string  `json:"type" binding:"required"`
	EntityIDs   []int64 `json:"entity_ids" binding:"required"`
	VendorScope *string `json:"vendor_scope"`
}

type resolveRequest struct {
	Value        string `json:"value" binding:"required"`
	ExpectedType string `json:"expected_type" binding:"required"`
}

type bulkResolveRequest struct {
	Values       []string `json:"values" binding:"required"`
	ExpectedType string   `json:"expected_type" binding:"required"`
}

// Generate mints (or returns) the token for an entity.
func (h *TokenHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	typ := token.Type(req.Type)
	if !typ.Valid() {
		response.BadRequest(c, "unknown token type: "+req.Type)
		return
	}

	scope := h.effectiveScope(c, req.VendorScope)
	tok, err := h.authority.Generate(c.Request.Context(), typ, req.EntityID, scope, h.caller(c))
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, tok)
}

// GenerateBulk mints tokens for a batch of entity ids. The first failure
// aborts the batch.
func (h *TokenHandler) GenerateBulk(c *gin.Context) {
	var req bulkGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(req.EntityIDs) == 0 {
		response.BadRequest(c, "entity_ids must not be empty")
		return
	}
	if len(req.EntityIDs) > 1000 {
		response.BadRequest(c, "at most 1000 entity ids per batch")
		return
	}

	typ := token.Type(req.Type)
	if !typ.Valid() {
		response.BadRequest(c, "unknown token type: "+req.Type)
		return
	}

	scope := h.effectiveScope(c, req.VendorScope)
	tokens, err := h.authority.GenerateBulk(c.Request.Context(), typ, req.EntityIDs, scope, h.caller(c))
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, tokens)
}

// Resolve maps a token value back to its entity.
func (h *TokenHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	typ := token.Type(req.ExpectedType)
	if !typ.Valid() {
		response.BadRequest(c, "unknown token type: "+req.ExpectedType)
		return
	}

	r, err := h.authority.Resolve(c.Request.Context(), req.Value, typ)
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, r)
}

// ResolveBulk resolves a batch best-effort; unresolvable values are omitted
// from the result.
func (h *TokenHandler) ResolveBulk(c *gin.Context) {
	var req bulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(req.Values) > 1000 {
		response.BadRequest(c, "at most 1000 values per batch")
		return
	}

	typ := token.Type(req.ExpectedType)
	if !typ.Valid() {
		response.BadRequest(c, "unknown token type: "+req.ExpectedType)
		return
	}

	resolved := h.authority.ResolveBulk(c.Request.Context(), req.Values, typ)
	response.Success(c, gin.H{
		"resolved": resolved,
		"skipped":  len(req.Values) - len(resolved),
	})
}

// Validate reports whether a value is currently resolvable, without counting
// as a use.
func (h *TokenHandler) Validate(c *gin.Context) {
	value := c.Param("value")
	response.Success(c, gin.H{"value": value, "valid": h.resolution.Validate(value)})
}

// EntityToken is the reverse lookup: the ACTIVE token for an entity.
func (h *TokenHandler) EntityToken(c *gin.Context) {
	typ, ok := h.entityType(c)
	if !ok {
		return
	}
	entityID, ok := h.entityID(c)
	if !ok {
		return
	}

	var scope *string
	if v := c.Query("vendor_scope"); v != "" {
		scope = &v
	} else if vendor := middleware.GetVendor(c); vendor != "" {
		scope = &vendor
	}

	tok, err := h.resolution.FindTokenForEntity(typ, entityID, scope)
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, tok)
}

// EntityHistory lists every token ever issued for an entity, newest first.
func (h *TokenHandler) EntityHistory(c *gin.Context) {
	typ, ok := h.entityType(c)
	if !ok {
		return
	}
	entityID, ok := h.entityID(c)
	if !ok {
		return
	}

	history, err := h.resolution.TokenHistory(typ, entityID)
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, history)
}

// Rotate retires a token and mints its successor.
func (h *TokenHandler) Rotate(c *gin.Context) {
	tok, err := h.authority.Rotate(c.Request.Context(), c.Param("value"), h.caller(c))
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, tok)
}

// Revoke permanently deactivates a token.
func (h *TokenHandler) Revoke(c *gin.Context) {
	tok, err := h.authority.Revoke(c.Request.Context(), c.Param("value"), h.caller(c))
	if err != nil {
		tokenError(c, err)
		return
	}
	response.Success(c, tok)
}

// effectiveScope prefers an explicit scope, then the authenticated vendor.
func (h *TokenHandler) effectiveScope(c *gin.Context, explicit *string) *string {
	if explicit != nil && *explicit != "" {
		return explicit
	}
	if vendor := middleware.GetVendor(c); vendor != "" {
		return &vendor
	}
	return nil
}

func (h *TokenHandler) caller(c *gin.Context) string {
	if vendor := middleware.GetVendor(c); vendor != "" {
		return vendor
	}
	if user := middleware.GetUsername(c); user != "" {
		return user
	}
	return "api"
}

func (h *TokenHandler) entityType(c *gin.Context) (token.Type, bool) {
	typ, err := token.TypeFromEntityType(c.Param("type"))
	if err != nil {
		response.BadRequest(c, "unknown entity type: "+c.Param("type"))
		return "", false
	}
	return typ, true
}

func (h *TokenHandler) entityID(c *gin.Context) (int64, bool) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		response.BadRequest(c, "invalid entity id: "+c.Param("id"))
		return 0, false
	}
	return id, true
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// tokenError maps domain sentinels onto the response envelope.
func tokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, token.ErrInvalidFormat), errors.Is(err, token.ErrUnknownTokenType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, token.ErrTokenNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenInactive),
		errors.Is(err, token.ErrTokenTypeMismatch):
		response.Error(c, response.NewConflict(err.Error()))
	case errors.Is(err, token.ErrInvalidState):
		response.Error(c, response.NewConflict(err.Error()))
	default:
		response.ServerError(c, err.Error())
	}
}
