package models

import "time"

// TokenMapping is a request-scoped audit record of which token was disclosed
// for which human-readable identifier. It exists purely so IT staff can review
// what a vendor was shown; the resolution path feeds it as a best-effort sink.
type TokenMapping struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// RequestID correlates all mappings disclosed in one vendor exchange.
	RequestID string `gorm:"size:36;index;not null" json:"request_id"`

	TokenValue string `gorm:"size:32;index;not null" json:"token_value"`

	// DisplayLabel is the human-readable identifier the token stood in for,
	// e.g. a student name or course title. Never sent to vendors.
	DisplayLabel string `gorm:"size:255" json:"display_label"`

	EntityType string  `gorm:"size:20" json:"entity_type"`
	Vendor     *string `gorm:"size:30" json:"vendor,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (TokenMapping) TableName() string { return "token_mappings" }
