package services

import (
	"testing"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/token"
)

func newSweepFixture(t *testing.T) (*SweepService, *LifecycleService) {
	t.Helper()
	db := newTestDB(t)
	lifecycle := NewLifecycleService(db, testTokenConfig())
	mappings := NewTokenMappingService(db)
	cfg := &config.SweepConfig{
		Enabled:     true,
		ExpireCron:  "0 * * * *",
		CleanupCron: "30 2 * * *",
	}
	return NewSweepService(db, lifecycle, mappings, cfg, 90), lifecycle
}

func TestSweep_ExpireSweep(t *testing.T) {
	sweep, lifecycle := newSweepFixture(t)

	tok, _ := lifecycle.GenerateToken(token.TypeStudent, 1, nil, "importer")
	past := time.Now().Add(-time.Hour)
	tok.ExpiresAt = &past
	if err := lifecycle.Store().Save(tok); err != nil {
		t.Fatal(err)
	}
	lifecycle.GenerateToken(token.TypeStudent, 2, nil, "importer")

	n, err := sweep.RunExpireSweep()
	if err != nil {
		t.Fatalf("RunExpireSweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d tokens, expected 1", n)
	}

	stored, _ := lifecycle.Store().FindByValue(tok.Value)
	if stored.Status != token.StatusExpired {
		t.Errorf("status = %s, expected EXPIRED", stored.Status)
	}
}

func TestSweep_RetentionCleanup(t *testing.T) {
	sweep, lifecycle := newSweepFixture(t)

	tok, _ := lifecycle.GenerateToken(token.TypeStudent, 1, nil, "importer")
	lifecycle.RevokeToken(tok.Value, "admin")
	sweep.db.Table("tokens").
		Where("value = ?", tok.Value).
		Update("updated_at", time.Now().AddDate(0, 0, -120))

	n, err := sweep.RunRetentionCleanup()
	if err != nil {
		t.Fatalf("RunRetentionCleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d tokens, expected 1", n)
	}
}

func TestSweep_LeaseSingleWinner(t *testing.T) {
	sweep, _ := newSweepFixture(t)

	first, err := sweep.tryAcquire("token_expire_sweep", "2026-08-27T10", time.Hour)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !first {
		t.Fatal("first acquire should win the lease")
	}

	second, err := sweep.tryAcquire("token_expire_sweep", "2026-08-27T10", time.Hour)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second {
		t.Error("second acquire for the same bucket should lose")
	}

	other, err := sweep.tryAcquire("token_expire_sweep", "2026-08-27T11", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !other {
		t.Error("a different bucket is a fresh lease")
	}
}

func TestSweep_LeaseReclaimedAfterExpiry(t *testing.T) {
	sweep, _ := newSweepFixture(t)

	if ok, _ := sweep.tryAcquire("token_retention_cleanup", "2026-08-27", -time.Minute); !ok {
		t.Fatal("initial acquire should win")
	}
	if ok, err := sweep.tryAcquire("token_retention_cleanup", "2026-08-27", time.Hour); err != nil || !ok {
		t.Errorf("expired lease should be reclaimable, got ok=%v err=%v", ok, err)
	}
}
