package models

import "time"

// VendorCredential is an API-key record for a vendor integration calling the
// data-path endpoints. The secret is bcrypt-hashed; EncryptedPayload holds
// vendor-side credentials (e.g. an LMS API token) sealed by the credential
// cipher, which this service treats as an opaque blob.
type VendorCredential struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Vendor string `gorm:"size:30;not null;index" json:"vendor"`
	Name   string `gorm:"size:100;not null" json:"name"`

	// KeyID is the public half of the credential, sent in X-Api-Key as
	// "<key_id>.<secret>".
	KeyID      string `gorm:"uniqueIndex;size:36;not null" json:"key_id"`
	SecretHash string `gorm:"size:100;not null" json:"-"`

	EncryptedPayload []byte `json:"-"`

	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (VendorCredential) TableName() string { return "vendor_credentials" }
