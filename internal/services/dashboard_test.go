package services

import (
	"testing"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/token"
)

func TestDashboard_GetStats(t *testing.T) {
	db := newTestDB(t)
	lifecycle := NewLifecycleService(db, testTokenConfig())
	mappings := NewTokenMappingService(db)
	resolution := NewResolutionService(lifecycle.Store(), lifecycle.Codec(), mappings)
	dash := NewDashboardService(db, lifecycle.Store(), mappings)

	scope := "clever"
	student, _ := lifecycle.GenerateToken(token.TypeStudent, 1, nil, "importer")
	lifecycle.GenerateToken(token.TypeStudent, 2, &scope, "importer")
	lifecycle.GenerateToken(token.TypeTeacher, 3, nil, "importer")
	revoked, _ := lifecycle.GenerateToken(token.TypeCourse, 4, nil, "importer")
	lifecycle.RevokeToken(revoked.Value, "admin")

	resolution.Resolve(student.Value, token.TypeStudent)

	resp, err := dash.GetStats(&DashboardStatsRequest{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if resp.Stats.ActiveTokens != 3 {
		t.Errorf("ActiveTokens = %d, expected 3", resp.Stats.ActiveTokens)
	}
	if resp.Stats.RevokedTokens != 1 {
		t.Errorf("RevokedTokens = %d, expected 1", resp.Stats.RevokedTokens)
	}
	if resp.Stats.ResolutionsWeek != 1 {
		t.Errorf("ResolutionsWeek = %d, expected 1", resp.Stats.ResolutionsWeek)
	}

	byType := map[token.Type]int64{}
	for _, ts := range resp.TypeStats {
		byType[ts.Type] = ts.Count
	}
	if byType[token.TypeStudent] != 2 {
		t.Errorf("STUDENT count = %d, expected 2", byType[token.TypeStudent])
	}
	if byType[token.TypeCourse] != 0 {
		t.Errorf("COURSE count = %d, expected 0 (revoked rows excluded)", byType[token.TypeCourse])
	}

	if len(resp.ScopeStats) != 1 || resp.ScopeStats[0].VendorScope != "clever" {
		t.Errorf("ScopeStats = %+v, expected one clever entry", resp.ScopeStats)
	}
}

func TestDashboard_ExpiringSoon(t *testing.T) {
	db := newTestDB(t)
	lifecycle := NewLifecycleService(db, testTokenConfig())
	mappings := NewTokenMappingService(db)
	dash := NewDashboardService(db, lifecycle.Store(), mappings)

	soon, _ := lifecycle.GenerateToken(token.TypeStudent, 1, nil, "importer")
	cutoff := time.Now().AddDate(0, 0, 10)
	soon.ExpiresAt = &cutoff
	lifecycle.Store().Save(soon)
	lifecycle.GenerateToken(token.TypeStudent, 2, nil, "importer")

	resp, err := dash.GetStats(&DashboardStatsRequest{ExpiringDays: 30})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if resp.Stats.ExpiringSoon != 1 {
		t.Errorf("ExpiringSoon = %d, expected 1", resp.Stats.ExpiringSoon)
	}
}
