package services

import (
	"time"

	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/token"
	"gorm.io/gorm"
)

type DashboardService struct {
	db       *gorm.DB
	store    *TokenStore
	mappings *TokenMappingService
}

func NewDashboardService(db *gorm.DB, store *TokenStore, mappings *TokenMappingService) *DashboardService {
	return &DashboardService{db: db, store: store, mappings: mappings}
}

type DashboardStatsRequest struct {
	ExpiringDays int `form:"expiring_days"`
	TopN         int `form:"top_n"`
}

type DashboardStats struct {
	ActiveTokens    int64 `json:"active_tokens"`
	ExpiredTokens   int64 `json:"expired_tokens"`
	RevokedTokens   int64 `json:"revoked_tokens"`
	RotatedTokens   int64 `json:"rotated_tokens"`
	ExpiringSoon    int64 `json:"expiring_soon"`
	ResolutionsWeek int64 `json:"resolutions_week"`
}

type TypeStats struct {
	Type  token.Type `json:"type"`
	Count int64      `json:"count"`
}

type ScopeStats struct {
	VendorScope string `json:"vendor_scope"`
	Count       int64  `json:"count"`
}

type HotToken struct {
	Value      string `json:"value"`
	EntityType string `json:"entity_type"`
	UsageCount int64  `json:"usage_count"`
}

type DashboardResponse struct {
	Stats      DashboardStats `json:"stats"`
	TypeStats  []TypeStats    `json:"type_stats"`
	ScopeStats []ScopeStats   `json:"scope_stats"`
	HotTokens  []HotToken     `json:"hot_tokens"`
}

func (s *DashboardService) GetStats(req *DashboardStatsRequest) (*DashboardResponse, error) {
	if req.ExpiringDays <= 0 {
		req.ExpiringDays = 30
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}

	byStatus, err := s.store.CountByStatus()
	if err != nil {
		return nil, err
	}

	stats := DashboardStats{
		ActiveTokens:  byStatus[token.StatusActive],
		ExpiredTokens: byStatus[token.StatusExpired],
		RevokedTokens: byStatus[token.StatusRevoked],
		RotatedTokens: byStatus[token.StatusRotated],
	}

	cutoff := time.Now().AddDate(0, 0, req.ExpiringDays)
	s.db.Model(&models.Token{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", token.StatusActive, cutoff).
		Count(&stats.ExpiringSoon)

	weekAgo := time.Now().AddDate(0, 0, -7)
	if n, err := s.mappings.CountSince(weekAgo); err == nil {
		stats.ResolutionsWeek = n
	}

	byType, err := s.store.CountByType()
	if err != nil {
		return nil, err
	}
	typeStats := make([]TypeStats, 0, len(byType))
	for _, typ := range []token.Type{token.TypeStudent, token.TypeTeacher, token.TypeCourse, token.TypeSection, token.TypeAssignment} {
		if count, ok := byType[typ]; ok {
			typeStats = append(typeStats, TypeStats{Type: typ, Count: count})
		}
	}

	var scopeStats []ScopeStats
	s.db.Model(&models.Token{}).
		Select("vendor_scope, COUNT(*) as count").
		Where("status = ? AND vendor_scope IS NOT NULL", token.StatusActive).
		Group("vendor_scope").
		Order("count DESC").
		Limit(req.TopN).
		Scan(&scopeStats)

	hot, err := s.store.MostUsed(req.TopN)
	if err != nil {
		return nil, err
	}
	hotTokens := make([]HotToken, 0, len(hot))
	for _, t := range hot {
		hotTokens = append(hotTokens, HotToken{
			Value:      t.Value,
			EntityType: t.EntityType,
			UsageCount: t.UsageCount,
		})
	}

	return &DashboardResponse{
		Stats:      stats,
		TypeStats:  typeStats,
		ScopeStats: scopeStats,
		HotTokens:  hotTokens,
	}, nil
}
