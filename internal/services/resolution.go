package services

import (
	"fmt"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/edubridge-labs/tokenvault/pkg/metrics"
)

// Resolution is the answer to "who does this token belong to".
type Resolution struct {
	EntityID   int64      `json:"entityId"`
	EntityType string     `json:"entityType"`
	TokenType  token.Type `json:"tokenType"`
	SchoolYear string     `json:"schoolYear"`
}

// ResolutionService validates token values and maps them back to entities.
// Every successful resolution is a billable-style event: the usage counter is
// bumped write-through, and the optional mapping sink records an audit row.
type ResolutionService struct {
	store *TokenStore
	codec *token.Codec
	sink  *TokenMappingService
}

func NewResolutionService(store *TokenStore, codec *token.Codec, sink *TokenMappingService) *ResolutionService {
	return &ResolutionService{store: store, codec: codec, sink: sink}
}

// Resolve maps a token value back to its entity id, enforcing the expected
// token type. Validation is layered cheapest-first: format and checksum are
// checked before the store is touched, then not-found, inactive, lazy expiry
// and type mismatch, in that order.
func (s *ResolutionService) Resolve(value string, expected token.Type) (*Resolution, error) {
	t, err := s.lookupActive(value)
	if err != nil {
		return nil, err
	}

	if t.Type != expected {
		metrics.Resolutions.WithLabelValues("type_mismatch").Inc()
		return nil, fmt.Errorf("%w: token is %s, expected %s", token.ErrTokenTypeMismatch, t.Type, expected)
	}

	s.recordHit(t)
	return resolutionOf(t), nil
}

// ResolveAny resolves a token value without a type expectation. Callers that
// know what kind of entity they want should use Resolve instead.
func (s *ResolutionService) ResolveAny(value string) (*Resolution, error) {
	t, err := s.lookupActive(value)
	if err != nil {
		return nil, err
	}
	s.recordHit(t)
	return resolutionOf(t), nil
}

// ResolveToken returns the full token row after the same validation chain as
// Resolve, for callers that need status and expiry detail.
func (s *ResolutionService) ResolveToken(value string) (*models.Token, error) {
	t, err := s.lookupActive(value)
	if err != nil {
		return nil, err
	}
	s.recordHit(t)
	return t, nil
}

// Validate reports whether a value is a well-formed, currently resolvable
// token. It never touches usage counters.
func (s *ResolutionService) Validate(value string) bool {
	_, err := s.lookupActive(value)
	return err == nil
}

// FindTokenForEntity is the reverse direction: entity to its ACTIVE token.
func (s *ResolutionService) FindTokenForEntity(typ token.Type, entityID int64, vendorScope *string) (*models.Token, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", token.ErrUnknownTokenType, typ)
	}
	return s.store.FindActiveForEntity(typ.EntityType(), entityID, vendorScope)
}

// TokenHistory returns every token ever issued for an entity, newest first.
func (s *ResolutionService) TokenHistory(typ token.Type, entityID int64) ([]models.Token, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", token.ErrUnknownTokenType, typ)
	}
	return s.store.FindAllForEntity(typ.EntityType(), entityID)
}

// ResolveBulk resolves a batch of values best-effort: unresolvable entries
// are skipped, and the result maps each successful value to its entity id.
func (s *ResolutionService) ResolveBulk(values []string, expected token.Type) map[string]int64 {
	out := make(map[string]int64, len(values))
	for _, v := range values {
		r, err := s.Resolve(v, expected)
		if err != nil {
			logger.Debug().Str("value", v).Err(err).Msg("bulk resolve skipped entry")
			continue
		}
		out[v] = r.EntityID
	}
	return out
}

func (s *ResolutionService) lookupActive(value string) (*models.Token, error) {
	parts, err := s.codec.Parse(value)
	if err != nil {
		metrics.Resolutions.WithLabelValues("invalid_format").Inc()
		return nil, err
	}
	if !s.codec.ChecksumMatches(parts.Prefix, parts.Hash, parts.Checksum) {
		metrics.Resolutions.WithLabelValues("invalid_checksum").Inc()
		return nil, fmt.Errorf("%w: checksum mismatch", token.ErrInvalidFormat)
	}

	t, err := s.store.FindByValue(value)
	if err != nil {
		metrics.Resolutions.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if t.Status != token.StatusActive {
		metrics.Resolutions.WithLabelValues("inactive").Inc()
		return nil, fmt.Errorf("%w: status %s", token.ErrTokenInactive, t.Status)
	}

	// Lazy expiry: a row the sweep has not reached yet still refuses to
	// resolve, and gets flipped in passing.
	if t.Expired() {
		t.Status = token.StatusExpired
		if err := s.store.Save(t); err != nil {
			logger.Warn().Str("value", t.Value).Err(err).Msg("lazy expiry write failed")
		}
		metrics.Resolutions.WithLabelValues("expired").Inc()
		return nil, token.ErrTokenExpired
	}

	return t, nil
}

func (s *ResolutionService) recordHit(t *models.Token) {
	if err := s.store.RecordUsage(t); err != nil {
		logger.Warn().Str("value", t.Value).Err(err).Msg("usage count update failed")
	}
	metrics.Resolutions.WithLabelValues("ok").Inc()
	if s.sink != nil {
		s.sink.RecordResolution(t, time.Now())
	}
}

func resolutionOf(t *models.Token) *Resolution {
	return &Resolution{
		EntityID:   t.EntityID,
		EntityType: t.EntityType,
		TokenType:  t.Type,
		SchoolYear: t.SchoolYear,
	}
}
