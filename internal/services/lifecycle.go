package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/edubridge-labs/tokenvault/pkg/metrics"
	"gorm.io/gorm"
)

// maxGenerationAttempts bounds the collision-retry loop. Hitting it means the
// charset/hash-length space is effectively exhausted or the store is broken;
// either way it is an operator problem, not something callers should retry.
const maxGenerationAttempts = 100

// LifecycleService owns token creation and the state-machine transitions:
// ACTIVE -> ROTATED (rotate), ACTIVE -> REVOKED (revoke), ACTIVE -> EXPIRED
// (sweep). All three target states are terminal for that row; the entity
// continues through a newly minted token.
type LifecycleService struct {
	db    *gorm.DB
	store *TokenStore
	codec *token.Codec
	cfg   *config.TokenConfig

	// entityLocks serializes lookup-then-generate per (entityType, entityId,
	// scope) key so concurrent calls cannot mint two ACTIVE tokens for the
	// same tuple. The value-uniqueness index alone would not prevent that.
	mu          sync.Mutex
	entityLocks map[string]*sync.Mutex
}

func NewLifecycleService(db *gorm.DB, cfg *config.TokenConfig) *LifecycleService {
	return &LifecycleService{
		db:          db,
		store:       NewTokenStore(db),
		codec:       token.NewCodec(cfg.HashCharset, cfg.HashLength, cfg.ChecksumLength),
		cfg:         cfg,
		entityLocks: make(map[string]*sync.Mutex),
	}
}

// Codec exposes the configured codec for the resolution side.
func (s *LifecycleService) Codec() *token.Codec {
	return s.codec
}

// Store exposes the underlying store for administrative operations.
func (s *LifecycleService) Store() *TokenStore {
	return s.store
}

// GenerateToken returns the existing ACTIVE token for the entity/scope if one
// exists, otherwise mints a new one. Idempotent by state, not by call.
func (s *LifecycleService) GenerateToken(typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", token.ErrUnknownTokenType, typ)
	}

	unlock := s.lockEntity(typ.EntityType(), entityID, vendorScope)
	defer unlock()

	return s.generateLocked(typ, entityID, vendorScope, createdBy)
}

// GetOrCreateToken is the primary entry point for callers that just need a
// token for an entity. Same semantics as GenerateToken.
func (s *LifecycleService) GetOrCreateToken(typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error) {
	return s.GenerateToken(typ, entityID, vendorScope, createdBy)
}

// GenerateTokensBulk mints (or returns) one token per entity id. The batch is
// not atomic: each id commits independently, and the first failure aborts the
// remainder of the batch.
func (s *LifecycleService) GenerateTokensBulk(typ token.Type, entityIDs []int64, vendorScope *string, createdBy string) ([]*models.Token, error) {
	tokens := make([]*models.Token, 0, len(entityIDs))
	for _, id := range entityIDs {
		t, err := s.GetOrCreateToken(typ, id, vendorScope, createdBy)
		if err != nil {
			return nil, fmt.Errorf("bulk generate stopped at entity %d: %w", id, err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// RotateToken retires the token with the given value and mints its successor
// in one transaction. The old row flips to ROTATED with replaced_by_id set;
// the new row shares type/entity/scope, carries rotationCount+1, and starts
// with fresh salt, expiry and a zero usage counter.
func (s *LifecycleService) RotateToken(value, rotatedBy string) (*models.Token, error) {
	old, err := s.store.FindByValue(value)
	if err != nil {
		return nil, err
	}
	if old.Status != token.StatusActive {
		return nil, fmt.Errorf("%w: cannot rotate %s token", token.ErrInvalidState, old.Status)
	}

	newValue, checksum, err := s.uniqueValue(old.Type)
	if err != nil {
		return nil, err
	}

	salt, err := token.NewSalt()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expires := s.expiry(now)
	replacement := &models.Token{
		Value:         newValue,
		Type:          old.Type,
		EntityID:      old.EntityID,
		EntityType:    old.EntityType,
		VendorScope:   old.VendorScope,
		SchoolYear:    s.schoolYear(now),
		Salt:          salt,
		Checksum:      checksum,
		Status:        token.StatusActive,
		ExpiresAt:     &expires,
		RotationCount: old.RotationCount + 1,
		CreatedBy:     rotatedBy,
	}

	// Both writes commit together; a crash between them must not leave the
	// old row active alongside the new one.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txStore := s.store.WithTx(tx)
		if err := txStore.Insert(replacement); err != nil {
			return err
		}
		old.MarkRotated(replacement.ID)
		return txStore.Save(old)
	})
	if err != nil {
		return nil, err
	}

	metrics.TokensRotated.Inc()
	logger.Info().
		Str("old", old.Value).
		Str("new", replacement.Value).
		Int64("entity_id", old.EntityID).
		Msg("token rotated")

	return replacement, nil
}

// RevokeToken flips an ACTIVE token to REVOKED. Terminal; there is no
// reactivation path.
func (s *LifecycleService) RevokeToken(value, revokedBy string) (*models.Token, error) {
	t, err := s.store.FindByValue(value)
	if err != nil {
		return nil, err
	}
	if t.Status != token.StatusActive {
		return nil, fmt.Errorf("%w: cannot revoke %s token", token.ErrInvalidState, t.Status)
	}

	t.MarkRevoked()
	if err := s.store.Save(t); err != nil {
		return nil, err
	}

	metrics.TokensRevoked.Inc()
	logger.Info().
		Str("value", t.Value).
		Str("revoked_by", revokedBy).
		Msg("token revoked")

	return t, nil
}

// ExpireDueTokens runs the bulk ACTIVE->EXPIRED sweep. Invoked on a schedule
// by the sweeper, and on demand from the admin surface.
func (s *LifecycleService) ExpireDueTokens() (int64, error) {
	n, err := s.store.ExpireDueTokens(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TokensExpired.Add(float64(n))
	}
	return n, nil
}

// CleanupRetiredTokens deletes ROTATED/REVOKED rows older than the configured
// retention window.
func (s *LifecycleService) CleanupRetiredTokens() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.store.PurgeRetired(cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TokensPurged.Add(float64(n))
	}
	return n, nil
}

func (s *LifecycleService) generateLocked(typ token.Type, entityID int64, vendorScope *string, createdBy string) (*models.Token, error) {
	existing, err := s.store.FindActiveForEntity(typ.EntityType(), entityID, vendorScope)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, token.ErrTokenNotFound) {
		return nil, err
	}

	value, checksum, err := s.uniqueValue(typ)
	if err != nil {
		return nil, err
	}

	salt, err := token.NewSalt()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expires := s.expiry(now)
	t := &models.Token{
		Value:       value,
		Type:        typ,
		EntityID:    entityID,
		EntityType:  typ.EntityType(),
		VendorScope: vendorScope,
		SchoolYear:  s.schoolYear(now),
		Salt:        salt,
		Checksum:    checksum,
		Status:      token.StatusActive,
		ExpiresAt:   &expires,
		CreatedBy:   createdBy,
	}

	if err := s.store.Insert(t); err != nil {
		return nil, err
	}

	metrics.TokensGenerated.WithLabelValues(string(typ)).Inc()
	logger.Info().
		Str("value", t.Value).
		Str("type", string(typ)).
		Int64("entity_id", entityID).
		Msg("token generated")

	return t, nil
}

// uniqueValue generates a token value that does not yet exist in the store,
// retrying on collisions up to maxGenerationAttempts.
func (s *LifecycleService) uniqueValue(typ token.Type) (value, checksum string, err error) {
	prefix := typ.Prefix()
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		hash, err := s.codec.RandomHash()
		if err != nil {
			return "", "", err
		}
		checksum = s.codec.Checksum(prefix, hash)
		value = prefix + "_" + hash + "_" + checksum

		exists, err := s.store.ExistsByValue(value)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return value, checksum, nil
		}

		metrics.GenerationCollisions.Inc()
		logger.Debug().Int("attempt", attempt+1).Msg("token value collision, regenerating")
	}

	return "", "", fmt.Errorf("%w: %d consecutive collisions for prefix %s",
		token.ErrGenerationExhausted, maxGenerationAttempts, prefix)
}

// schoolYear labels "now" with its annual window: before the rotation month
// the date belongs to the school year that started the previous calendar year.
func (s *LifecycleService) schoolYear(now time.Time) string {
	year := now.Year()
	if int(now.Month()) < s.cfg.RotationMonth {
		return fmt.Sprintf("%d-%d", year-1, year)
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

func (s *LifecycleService) expiry(now time.Time) time.Time {
	return now.AddDate(0, 0, s.cfg.ExpirationDays)
}

func (s *LifecycleService) lockEntity(entityType string, entityID int64, vendorScope *string) func() {
	scope := ""
	if vendorScope != nil {
		scope = *vendorScope
	}
	key := fmt.Sprintf("%s:%d:%s", entityType, entityID, scope)

	s.mu.Lock()
	lock, ok := s.entityLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.entityLocks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
