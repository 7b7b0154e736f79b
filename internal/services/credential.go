package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/utils"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialInvalid  = errors.New("invalid API key")
	ErrCredentialDisabled = errors.New("credential disabled")
)

// CredentialService manages vendor API keys. A key is presented as
// "<key_id>.<secret>"; the secret is stored bcrypt-hashed and shown exactly
// once, at issue time. Verified keys are cached briefly so bcrypt is not on
// the hot path of every request.
type CredentialService struct {
	db     *gorm.DB
	cipher *utils.Cipher

	// verified maps key_id to the credential row for keys that already
	// passed a bcrypt check. Short TTL bounds the window in which a
	// just-disabled credential still authenticates.
	verified *gocache.Cache
}

func NewCredentialService(db *gorm.DB, cipher *utils.Cipher) *CredentialService {
	return &CredentialService{
		db:       db,
		cipher:   cipher,
		verified: gocache.New(time.Minute, 5*time.Minute),
	}
}

// IssuedKey is the one-time view of a freshly minted credential.
type IssuedKey struct {
	Credential *models.VendorCredential `json:"credential"`
	APIKey     string                   `json:"apiKey"`
}

// Issue creates a credential for a vendor and returns the full API key. The
// secret is not recoverable afterwards.
func (s *CredentialService) Issue(vendor, name string) (*IssuedKey, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, err
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := utils.HashPassword(secret)
	if err != nil {
		return nil, err
	}

	cred := &models.VendorCredential{
		Vendor:     vendor,
		Name:       name,
		KeyID:      uuid.NewString(),
		SecretHash: hash,
		IsActive:   true,
	}
	if err := s.db.Create(cred).Error; err != nil {
		return nil, err
	}

	logger.Info().Str("vendor", vendor).Str("key_id", cred.KeyID).Msg("vendor credential issued")
	return &IssuedKey{Credential: cred, APIKey: cred.KeyID + "." + secret}, nil
}

// Verify authenticates an API key and returns the owning credential.
func (s *CredentialService) Verify(apiKey string) (*models.VendorCredential, error) {
	keyID, secret, ok := strings.Cut(apiKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, ErrCredentialInvalid
	}

	if cached, found := s.verified.Get(keyID); found {
		cred := cached.(*models.VendorCredential)
		if utils.CheckPassword(secret, cred.SecretHash) {
			return cred, nil
		}
		s.verified.Delete(keyID)
	}

	var cred models.VendorCredential
	if err := s.db.Where("key_id = ?", keyID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialInvalid
		}
		return nil, err
	}
	if !cred.IsActive {
		return nil, ErrCredentialDisabled
	}
	if !utils.CheckPassword(secret, cred.SecretHash) {
		return nil, ErrCredentialInvalid
	}

	now := time.Now()
	s.db.Model(&cred).Updates(map[string]interface{}{"last_used_at": now})
	cred.LastUsedAt = &now

	s.verified.Set(keyID, &cred, gocache.DefaultExpiration)
	return &cred, nil
}

// List returns all credentials for a vendor, or every credential when vendor
// is empty. Secret hashes are never exposed through the API layer.
func (s *CredentialService) List(vendor string) ([]models.VendorCredential, error) {
	var creds []models.VendorCredential
	q := s.db.Order("id DESC")
	if vendor != "" {
		q = q.Where("vendor = ?", vendor)
	}
	err := q.Find(&creds).Error
	return creds, err
}

// Disable deactivates a credential by key id. Takes effect within the
// verification cache TTL.
func (s *CredentialService) Disable(keyID string) error {
	result := s.db.Model(&models.VendorCredential{}).
		Where("key_id = ?", keyID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	s.verified.Delete(keyID)
	logger.Info().Str("key_id", keyID).Msg("vendor credential disabled")
	return nil
}

// SetPayload encrypts and stores vendor-specific settings on a credential.
func (s *CredentialService) SetPayload(keyID string, payload []byte) error {
	sealed, err := s.cipher.Seal(payload)
	if err != nil {
		return err
	}
	result := s.db.Model(&models.VendorCredential{}).
		Where("key_id = ?", keyID).
		Update("encrypted_payload", sealed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// GetPayload decrypts the vendor-specific settings stored on a credential.
func (s *CredentialService) GetPayload(keyID string) ([]byte, error) {
	var cred models.VendorCredential
	if err := s.db.Where("key_id = ?", keyID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	if len(cred.EncryptedPayload) == 0 {
		return nil, nil
	}
	return s.cipher.Open(cred.EncryptedPayload)
}
