package models

import (
	"time"

	"github.com/edubridge-labs/tokenvault/internal/token"
)

// Token is the anonymous credential exposed to LMS vendors in place of a real
// student/teacher/course identifier.
//
// Value format: PREFIX_HASH_CHECKSUM, e.g. STU_H7K2P9M3_X8.
type Token struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Value is the opaque string vendors see. Globally unique.
	Value string `gorm:"uniqueIndex;size:32;not null" json:"value"`

	Type token.Type `gorm:"size:15;not null;index" json:"type"`

	// EntityID references the real record in the student information system.
	EntityID int64 `gorm:"not null;index:idx_tokens_entity" json:"entity_id"`

	// EntityType is denormalized from Type for queries.
	EntityType string `gorm:"size:20;not null;index:idx_tokens_entity" json:"entity_type"`

	// VendorScope binds the token to one vendor. Nil means universal.
	VendorScope *string `gorm:"size:30;index" json:"vendor_scope,omitempty"`

	// SchoolYear labels the annual window the token was minted in, e.g. "2025-2026".
	SchoolYear string `gorm:"size:9;not null;index" json:"school_year"`

	// Salt is stored for auditability only; it plays no part in validation.
	Salt string `gorm:"size:64;not null" json:"-"`

	// Checksum duplicates the trailing segment of Value for quick lookups.
	Checksum string `gorm:"size:4;not null" json:"-"`

	Status token.Status `gorm:"size:15;not null;default:ACTIVE;index" json:"status"`

	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	RotationCount int   `gorm:"default:0" json:"rotation_count"`
	UsageCount    int64 `gorm:"default:0" json:"usage_count"`

	// ReplacedByID points at the successor row once this token is rotated.
	ReplacedByID *uint `json:"replaced_by_id,omitempty"`

	CreatedBy string    `gorm:"size:100" json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Token) TableName() string { return "tokens" }

// IsActive reports whether the token is usable right now: status ACTIVE and
// not past its expiry.
func (t *Token) IsActive() bool {
	if t.Status != token.StatusActive {
		return false
	}
	if t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt) {
		return false
	}
	return true
}

// Expired reports whether the expiry timestamp has passed, regardless of
// status. The resolution path uses this for its lazy-expiry check.
func (t *Token) Expired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// RecordUsage bumps the usage counter and last-used timestamp. The caller
// persists the change.
func (t *Token) RecordUsage() {
	now := time.Now()
	t.LastUsedAt = &now
	t.UsageCount++
}

// MarkRotated flips the row to ROTATED and links its replacement.
func (t *Token) MarkRotated(newID uint) {
	t.Status = token.StatusRotated
	t.ReplacedByID = &newID
}

// MarkRevoked flips the row to REVOKED. Terminal.
func (t *Token) MarkRevoked() {
	t.Status = token.StatusRevoked
}
