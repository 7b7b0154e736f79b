package services

import (
	"errors"
	"testing"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	// A second pool connection would see its own empty in-memory database.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&models.Token{}, &models.TokenMapping{}, &models.VendorCredential{}, &models.SchedulerLock{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func seedToken(t *testing.T, store *TokenStore, value string, typ token.Type, entityID int64, scope *string, status token.Status) *models.Token {
	t.Helper()

	expires := time.Now().Add(24 * time.Hour)
	tok := &models.Token{
		Value:       value,
		Type:        typ,
		EntityID:    entityID,
		EntityType:  typ.EntityType(),
		VendorScope: scope,
		SchoolYear:  "2025-2026",
		Status:      status,
		ExpiresAt:   &expires,
	}
	if err := store.Insert(tok); err != nil {
		t.Fatalf("seed token %s: %v", value, err)
	}
	return tok
}

func TestTokenStore_InsertDuplicate(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)

	dup := &models.Token{
		Value:      "STU_AAAAAAAA_22",
		Type:       token.TypeStudent,
		EntityID:   2,
		EntityType: "STUDENT",
		Status:     token.StatusActive,
	}
	err := store.Insert(dup)
	if !errors.Is(err, token.ErrDuplicateToken) {
		t.Errorf("Insert duplicate = %v, expected ErrDuplicateToken", err)
	}
}

func TestTokenStore_FindByValue_NotFound(t *testing.T) {
	store := NewTokenStore(newTestDB(t))

	_, err := store.FindByValue("STU_MISSING2_22")
	if !errors.Is(err, token.ErrTokenNotFound) {
		t.Errorf("FindByValue = %v, expected ErrTokenNotFound", err)
	}
}

func TestTokenStore_ScopeSeparation(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	scope := "vendor-a"
	unscoped := seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)
	scoped := seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 1, &scope, token.StatusActive)

	got, err := store.FindActiveForEntity("STUDENT", 1, nil)
	if err != nil {
		t.Fatalf("unscoped lookup: %v", err)
	}
	if got.Value != unscoped.Value {
		t.Errorf("unscoped lookup = %s, expected %s", got.Value, unscoped.Value)
	}

	got, err = store.FindActiveForEntity("STUDENT", 1, &scope)
	if err != nil {
		t.Fatalf("scoped lookup: %v", err)
	}
	if got.Value != scoped.Value {
		t.Errorf("scoped lookup = %s, expected %s", got.Value, scoped.Value)
	}

	other := "vendor-b"
	if _, err := store.FindActiveForEntity("STUDENT", 1, &other); !errors.Is(err, token.ErrTokenNotFound) {
		t.Errorf("lookup in unknown scope = %v, expected ErrTokenNotFound", err)
	}
}

func TestTokenStore_FindByScopeAndStatus(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	scope := "vendor-a"
	other := "vendor-b"
	seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, &scope, token.StatusActive)
	seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 2, &scope, token.StatusRevoked)
	seedToken(t, store, "STU_CCCCCCCC_44", token.TypeStudent, 3, &other, token.StatusActive)

	tokens, err := store.FindByScopeAndStatus(scope, token.StatusActive)
	if err != nil {
		t.Fatalf("FindByScopeAndStatus: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Value != "STU_AAAAAAAA_22" {
		t.Errorf("got %d tokens, expected only the active vendor-a row", len(tokens))
	}
}

func TestTokenStore_FindActiveForEntity_IgnoresInactive(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusRevoked)

	_, err := store.FindActiveForEntity("STUDENT", 1, nil)
	if !errors.Is(err, token.ErrTokenNotFound) {
		t.Errorf("lookup = %v, expected ErrTokenNotFound for revoked-only entity", err)
	}
}

func TestTokenStore_ExpireDueTokens(t *testing.T) {
	store := NewTokenStore(newTestDB(t))

	due := seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)
	past := time.Now().Add(-time.Hour)
	due.ExpiresAt = &past
	if err := store.Save(due); err != nil {
		t.Fatal(err)
	}
	fresh := seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 2, nil, token.StatusActive)

	n, err := store.ExpireDueTokens(time.Now())
	if err != nil {
		t.Fatalf("ExpireDueTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("flipped %d rows, expected 1", n)
	}

	got, _ := store.FindByValue(due.Value)
	if got.Status != token.StatusExpired {
		t.Errorf("due token status = %s, expected EXPIRED", got.Status)
	}
	got, _ = store.FindByValue(fresh.Value)
	if got.Status != token.StatusActive {
		t.Errorf("fresh token status = %s, expected ACTIVE", got.Status)
	}
}

func TestTokenStore_PurgeRetired(t *testing.T) {
	db := newTestDB(t)
	store := NewTokenStore(db)

	old := seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusRotated)
	db.Model(old).Update("updated_at", time.Now().AddDate(0, 0, -120))
	seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 2, nil, token.StatusRevoked)
	seedToken(t, store, "STU_CCCCCCCC_44", token.TypeStudent, 3, nil, token.StatusActive)

	n, err := store.PurgeRetired(time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PurgeRetired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, expected 1", n)
	}

	if _, err := store.FindByValue("STU_AAAAAAAA_22"); !errors.Is(err, token.ErrTokenNotFound) {
		t.Error("old rotated row should be gone")
	}
	if _, err := store.FindByValue("STU_BBBBBBBB_33"); err != nil {
		t.Error("recent revoked row should survive the cutoff")
	}
	if _, err := store.FindByValue("STU_CCCCCCCC_44"); err != nil {
		t.Error("active row should never be purged")
	}
}

func TestTokenStore_RecordUsage(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	tok := seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)

	for i := 0; i < 3; i++ {
		if err := store.RecordUsage(tok); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}

	if tok.UsageCount != 3 {
		t.Errorf("in-memory UsageCount = %d, expected 3", tok.UsageCount)
	}
	stored, _ := store.FindByValue(tok.Value)
	if stored.UsageCount != 3 {
		t.Errorf("stored UsageCount = %d, expected 3", stored.UsageCount)
	}
	if stored.LastUsedAt == nil {
		t.Error("LastUsedAt should be set after usage")
	}
}

func TestTokenStore_CountByStatus(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)
	seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 2, nil, token.StatusActive)
	seedToken(t, store, "TCH_CCCCCCCC_44", token.TypeTeacher, 3, nil, token.StatusRevoked)

	counts, err := store.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[token.StatusActive] != 2 {
		t.Errorf("ACTIVE count = %d, expected 2", counts[token.StatusActive])
	}
	if counts[token.StatusRevoked] != 1 {
		t.Errorf("REVOKED count = %d, expected 1", counts[token.StatusRevoked])
	}
}

func TestTokenStore_FindActiveForEntities(t *testing.T) {
	store := NewTokenStore(newTestDB(t))
	seedToken(t, store, "STU_AAAAAAAA_22", token.TypeStudent, 1, nil, token.StatusActive)
	seedToken(t, store, "STU_BBBBBBBB_33", token.TypeStudent, 2, nil, token.StatusActive)
	seedToken(t, store, "STU_CCCCCCCC_44", token.TypeStudent, 3, nil, token.StatusRevoked)

	tokens, err := store.FindActiveForEntities("STUDENT", []int64{1, 2, 3, 4}, nil)
	if err != nil {
		t.Fatalf("FindActiveForEntities: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("got %d tokens, expected 2 (revoked and missing ids skipped)", len(tokens))
	}
}
