package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"gorm.io/gorm"
)

// TokenStore is the persistence layer for token rows. It owns the uniqueness
// guarantees: token values collide into token.ErrDuplicateToken, and the
// lookup helpers keep scoped and unscoped tokens strictly separate.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// WithTx returns a store bound to the given transaction handle.
func (s *TokenStore) WithTx(tx *gorm.DB) *TokenStore {
	return &TokenStore{db: tx}
}

// Insert persists a new token row. A unique-index collision on the value
// column is reported as token.ErrDuplicateToken so generation can retry.
func (s *TokenStore) Insert(t *models.Token) error {
	if err := s.db.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", token.ErrDuplicateToken, t.Value)
		}
		return err
	}
	return nil
}

// Save writes back a mutated row.
func (s *TokenStore) Save(t *models.Token) error {
	return s.db.Save(t).Error
}

// FindByValue returns the row for a token value, or token.ErrTokenNotFound.
func (s *TokenStore) FindByValue(value string) (*models.Token, error) {
	var t models.Token
	if err := s.db.Where("value = ?", value).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ExistsByValue reports whether any row carries the given value.
func (s *TokenStore) ExistsByValue(value string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Token{}).Where("value = ?", value).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindActiveForEntity returns the single ACTIVE token for an entity within a
// vendor scope. A nil scope selects the universal (unscoped) token only;
// scoped tokens never satisfy an unscoped lookup, and vice versa.
func (s *TokenStore) FindActiveForEntity(entityType string, entityID int64, vendorScope *string) (*models.Token, error) {
	q := s.db.Where("entity_type = ? AND entity_id = ? AND status = ?",
		entityType, entityID, token.StatusActive)
	if vendorScope == nil {
		q = q.Where("vendor_scope IS NULL")
	} else {
		q = q.Where("vendor_scope = ?", *vendorScope)
	}

	var t models.Token
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindAllForEntity returns every token ever issued for an entity, newest
// first, including rotated/revoked/expired rows.
func (s *TokenStore) FindAllForEntity(entityType string, entityID int64) ([]models.Token, error) {
	var tokens []models.Token
	err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

// FindByScopeAndStatus lists tokens for one vendor scope in a given status.
func (s *TokenStore) FindByScopeAndStatus(vendorScope string, status token.Status) ([]models.Token, error) {
	var tokens []models.Token
	err := s.db.Where("vendor_scope = ? AND status = ?", vendorScope, status).
		Find(&tokens).Error
	return tokens, err
}

// FindActiveForEntities bulk-loads the ACTIVE tokens for a set of entity ids
// within one scope.
func (s *TokenStore) FindActiveForEntities(entityType string, entityIDs []int64, vendorScope *string) ([]models.Token, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	q := s.db.Where("entity_type = ? AND entity_id IN ? AND status = ?",
		entityType, entityIDs, token.StatusActive)
	if vendorScope == nil {
		q = q.Where("vendor_scope IS NULL")
	} else {
		q = q.Where("vendor_scope = ?", *vendorScope)
	}

	var tokens []models.Token
	err := q.Find(&tokens).Error
	return tokens, err
}

type statusCount struct {
	Status token.Status
	Count  int64
}

type typeCount struct {
	Type  token.Type
	Count int64
}

// CountByStatus aggregates row counts per lifecycle status.
func (s *TokenStore) CountByStatus() (map[token.Status]int64, error) {
	var rows []statusCount
	err := s.db.Model(&models.Token{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[token.Status]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// CountByType aggregates ACTIVE row counts per token type.
func (s *TokenStore) CountByType() (map[token.Type]int64, error) {
	var rows []typeCount
	err := s.db.Model(&models.Token{}).
		Select("type, COUNT(*) as count").
		Where("status = ?", token.StatusActive).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[token.Type]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}

// FindExpiringBefore lists ACTIVE tokens whose expiry falls on or before the
// given cutoff. Used to warn operators ahead of the annual rotation window.
func (s *TokenStore) FindExpiringBefore(cutoff time.Time) ([]models.Token, error) {
	var tokens []models.Token
	err := s.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		token.StatusActive, cutoff).
		Order("expires_at ASC").
		Find(&tokens).Error
	return tokens, err
}

// ExpireDueTokens flips ACTIVE rows past their expiry to EXPIRED in bulk.
// The predicate is monotonically true once satisfied, so the sweep is safe to
// run alongside live traffic. Returns the number of rows flipped.
func (s *TokenStore) ExpireDueTokens(now time.Time) (int64, error) {
	result := s.db.Model(&models.Token{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", token.StatusActive, now).
		Updates(map[string]interface{}{
			"status":     token.StatusExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// PurgeRetired deletes ROTATED and REVOKED rows that were last touched before
// the retention cutoff. Returns the number of rows deleted.
func (s *TokenStore) PurgeRetired(cutoff time.Time) (int64, error) {
	result := s.db.Where("status IN ? AND updated_at < ?",
		[]token.Status{token.StatusRotated, token.StatusRevoked}, cutoff).
		Delete(&models.Token{})
	return result.RowsAffected, result.Error
}

// RecordUsage atomically bumps the usage counter and last-used timestamp for
// a row, then refreshes the in-memory copy to match.
func (s *TokenStore) RecordUsage(t *models.Token) error {
	now := time.Now()
	err := s.db.Model(&models.Token{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return err
	}
	t.UsageCount++
	t.LastUsedAt = &now
	return nil
}

// MostUsed lists the heaviest-used ACTIVE tokens, busiest first.
func (s *TokenStore) MostUsed(limit int) ([]models.Token, error) {
	var tokens []models.Token
	err := s.db.Where("status = ?", token.StatusActive).
		Order("usage_count DESC").
		Limit(limit).
		Find(&tokens).Error
	return tokens, err
}
