package services

import (
	"context"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
)

// TokenAuthority is the surface handlers talk to for generation and
// resolution. Two implementations exist: LocalAuthority runs everything
// against the local engine, BridgedAuthority tries a remote token service
// first and falls back to local on any failure.
type TokenAuthority interface {
	Generate(ctx context.Context, typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error)
	GenerateBulk(ctx context.Context, typ token.Type, entityIDs []int64, vendorScope *string, createdBy string) ([]*models.Token, error)
	Resolve(ctx context.Context, value string, expected token.Type) (*Resolution, error)
	ResolveBulk(ctx context.Context, values []string, expected token.Type) map[string]int64
	Rotate(ctx context.Context, value, rotatedBy string) (*models.Token, error)
	Revoke(ctx context.Context, value, revokedBy string) (*models.Token, error)

	// Available reports whether the backing authority is reachable. The
	// local engine is always available.
	Available(ctx context.Context) bool
	// Mode names the authority for health reporting: "local" or "bridged".
	Mode() string
}

// LocalAuthority serves every operation from the in-process engine.
type LocalAuthority struct {
	lifecycle  *LifecycleService
	resolution *ResolutionService
}

func NewLocalAuthority(lifecycle *LifecycleService, resolution *ResolutionService) *LocalAuthority {
	return &LocalAuthority{lifecycle: lifecycle, resolution: resolution}
}

func (a *LocalAuthority) Generate(_ context.Context, typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error) {
	return a.lifecycle.GenerateToken(typ, entityID, vendorScope, createdBy)
}

func (a *LocalAuthority) GenerateBulk(_ context.Context, typ token.Type, entityIDs []int64, vendorScope *string, createdBy string) ([]*models.Token, error) {
	return a.lifecycle.GenerateTokensBulk(typ, entityIDs, vendorScope, createdBy)
}

func (a *LocalAuthority) Resolve(_ context.Context, value string, expected token.Type) (*Resolution, error) {
	return a.resolution.Resolve(value, expected)
}

func (a *LocalAuthority) ResolveBulk(_ context.Context, values []string, expected token.Type) map[string]int64 {
	return a.resolution.ResolveBulk(values, expected)
}

func (a *LocalAuthority) Rotate(_ context.Context, value, rotatedBy string) (*models.Token, error) {
	return a.lifecycle.RotateToken(value, rotatedBy)
}

func (a *LocalAuthority) Revoke(_ context.Context, value, revokedBy string) (*models.Token, error) {
	return a.lifecycle.RevokeToken(value, revokedBy)
}

func (a *LocalAuthority) Available(_ context.Context) bool { return true }

func (a *LocalAuthority) Mode() string { return "local" }
