package services

import (
	"context"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/edubridge-labs/tokenvault/pkg/metrics"
)

// BridgedAuthority fronts a district-level remote token service with the
// local engine as fallback. Every call attempts the remote first and falls
// back on failure; availability is never pre-checked before a data call, so
// a remote that recovers mid-flight is picked up immediately and a remote
// that dies mid-flight costs exactly one timeout.
//
// Rotation and revocation always run locally: the remote protocol does not
// carry lifecycle operations, and splitting a rotation across two authorities
// would leave no single row owning the replaced_by link.
type BridgedAuthority struct {
	remote *RemoteClient
	local  *LocalAuthority
}

func NewBridgedAuthority(remote *RemoteClient, local *LocalAuthority) *BridgedAuthority {
	return &BridgedAuthority{remote: remote, local: local}
}

func (b *BridgedAuthority) Generate(ctx context.Context, typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error) {
	resp, err := b.remote.Generate(ctx, typ, entityID, vendorScope, createdBy)
	if err != nil {
		b.fellBack("generate", err)
		return b.local.Generate(ctx, typ, entityID, vendorScope, createdBy)
	}

	// The remote owns the row; what we hand back is a read-only view.
	return &models.Token{
		Value:       resp.Value,
		Type:        resp.Type,
		EntityID:    resp.EntityID,
		EntityType:  resp.EntityType,
		VendorScope: vendorScope,
		SchoolYear:  resp.SchoolYear,
		Status:      token.Status(resp.Status),
		ExpiresAt:   resp.ExpiresAt,
	}, nil
}

func (b *BridgedAuthority) GenerateBulk(ctx context.Context, typ token.Type, entityIDs []int64, vendorScope *string, createdBy string) ([]*models.Token, error) {
	tokens := make([]*models.Token, 0, len(entityIDs))
	for _, id := range entityIDs {
		t, err := b.Generate(ctx, typ, id, vendorScope, createdBy)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (b *BridgedAuthority) Resolve(ctx context.Context, value string, expected token.Type) (*Resolution, error) {
	resp, err := b.remote.Resolve(ctx, value, expected)
	if err != nil {
		b.fellBack("resolve", err)
		return b.local.Resolve(ctx, value, expected)
	}
	return &Resolution{
		EntityID:   resp.EntityID,
		EntityType: resp.EntityType,
		TokenType:  resp.TokenType,
		SchoolYear: resp.SchoolYear,
	}, nil
}

func (b *BridgedAuthority) ResolveBulk(ctx context.Context, values []string, expected token.Type) map[string]int64 {
	out := make(map[string]int64, len(values))
	for _, v := range values {
		r, err := b.Resolve(ctx, v, expected)
		if err != nil {
			continue
		}
		out[v] = r.EntityID
	}
	return out
}

func (b *BridgedAuthority) Rotate(ctx context.Context, value, rotatedBy string) (*models.Token, error) {
	return b.local.Rotate(ctx, value, rotatedBy)
}

func (b *BridgedAuthority) Revoke(ctx context.Context, value, revokedBy string) (*models.Token, error) {
	return b.local.Revoke(ctx, value, revokedBy)
}

// Available probes the remote health endpoint. Used for health reporting
// only; data calls never consult it.
func (b *BridgedAuthority) Available(ctx context.Context) bool {
	return b.remote.Healthy(ctx)
}

func (b *BridgedAuthority) Mode() string { return "bridged" }

func (b *BridgedAuthority) fellBack(operation string, err error) {
	metrics.RemoteFallbacks.WithLabelValues(operation).Inc()
	logger.Warn().Str("operation", operation).Err(err).Msg("remote authority failed, using local engine")
}
