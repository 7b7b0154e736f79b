package services

import (
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenMappingService writes the audit trail of resolutions. Rows are
// append-only: each successful resolution becomes one mapping record that
// support staff can query by token value or vendor without access to the
// token table itself.
type TokenMappingService struct {
	db *gorm.DB
}

func NewTokenMappingService(db *gorm.DB) *TokenMappingService {
	return &TokenMappingService{db: db}
}

// RecordResolution appends an audit row for a resolved token. Failures are
// logged and swallowed: the audit trail must never fail a resolution.
func (s *TokenMappingService) RecordResolution(t *models.Token, at time.Time) {
	m := &models.TokenMapping{
		RequestID:    uuid.NewString(),
		TokenValue:   t.Value,
		DisplayLabel: displayLabel(t),
		EntityType:   t.EntityType,
		Vendor:       t.VendorScope,
		CreatedAt:    at,
	}
	if err := s.db.Create(m).Error; err != nil {
		logger.Warn().Str("value", t.Value).Err(err).Msg("mapping audit write failed")
	}
}

// RecentForToken lists the latest audit rows for one token value.
func (s *TokenMappingService) RecentForToken(value string, limit int) ([]models.TokenMapping, error) {
	var rows []models.TokenMapping
	err := s.db.Where("token_value = ?", value).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// RecentForVendor lists the latest audit rows attributed to one vendor scope.
func (s *TokenMappingService) RecentForVendor(vendor string, limit int) ([]models.TokenMapping, error) {
	var rows []models.TokenMapping
	err := s.db.Where("vendor = ?", vendor).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountSince reports how many resolutions were audited after the cutoff.
func (s *TokenMappingService) CountSince(cutoff time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.TokenMapping{}).
		Where("created_at >= ?", cutoff).
		Count(&count).Error
	return count, err
}

// PurgeBefore drops audit rows older than the retention cutoff.
func (s *TokenMappingService) PurgeBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.TokenMapping{})
	return result.RowsAffected, result.Error
}

// displayLabel is the redacted form shown in audit listings: prefix plus the
// first two hash characters, never the full value.
func displayLabel(t *models.Token) string {
	v := t.Value
	if len(v) > 6 {
		return v[:6] + "..."
	}
	return v
}
