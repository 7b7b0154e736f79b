package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SweepService runs the two maintenance jobs on cron schedules: the hourly
// expiry sweep (ACTIVE past expires_at -> EXPIRED) and the nightly retention
// cleanup (old ROTATED/REVOKED rows deleted). Each run takes a database lease
// keyed by job name and date bucket, so in a multi-instance deployment only
// one instance executes a given run.
type SweepService struct {
	db        *gorm.DB
	lifecycle *LifecycleService
	mappings  *TokenMappingService
	cfg       *config.SweepConfig
	retention int

	scheduler *cron.Cron
	instance  string
}

func NewSweepService(db *gorm.DB, lifecycle *LifecycleService, mappings *TokenMappingService, cfg *config.SweepConfig, retentionDays int) *SweepService {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return &SweepService{
		db:        db,
		lifecycle: lifecycle,
		mappings:  mappings,
		cfg:       cfg,
		retention: retentionDays,
		instance:  fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// Start registers the cron entries and begins the scheduler. No-op when
// sweeps are disabled in config.
func (s *SweepService) Start() error {
	if !s.cfg.Enabled {
		logger.Info().Msg("token sweeps disabled")
		return nil
	}

	s.scheduler = cron.New()

	if _, err := s.scheduler.AddFunc(s.cfg.ExpireCron, func() {
		s.runLocked("token_expire_sweep", time.Now().Format("2006-01-02T15"), func() error {
			_, err := s.RunExpireSweep()
			return err
		})
	}); err != nil {
		return fmt.Errorf("register expire sweep: %w", err)
	}

	if _, err := s.scheduler.AddFunc(s.cfg.CleanupCron, func() {
		s.runLocked("token_retention_cleanup", time.Now().Format("2006-01-02"), func() error {
			_, err := s.RunRetentionCleanup()
			return err
		})
	}); err != nil {
		return fmt.Errorf("register retention cleanup: %w", err)
	}

	s.scheduler.Start()
	logger.Info().
		Str("expire_cron", s.cfg.ExpireCron).
		Str("cleanup_cron", s.cfg.CleanupCron).
		Msg("token sweep scheduler started")
	return nil
}

// Stop halts the scheduler. Running jobs finish.
func (s *SweepService) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunExpireSweep flips due tokens to EXPIRED and reports how many.
func (s *SweepService) RunExpireSweep() (int64, error) {
	n, err := s.lifecycle.ExpireDueTokens()
	if err != nil {
		logger.Error().Err(err).Msg("expire sweep failed")
		return 0, err
	}
	if n > 0 {
		logger.Info().Int64("expired", n).Msg("expire sweep done")
	}
	return n, nil
}

// RunRetentionCleanup purges retired token rows and stale audit mappings.
func (s *SweepService) RunRetentionCleanup() (int64, error) {
	purged, err := s.lifecycle.CleanupRetiredTokens()
	if err != nil {
		logger.Error().Err(err).Msg("retention cleanup failed")
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -s.retention)
	audits, err := s.mappings.PurgeBefore(cutoff)
	if err != nil {
		logger.Warn().Err(err).Msg("audit mapping cleanup failed")
	}

	logger.Info().
		Int64("tokens_purged", purged).
		Int64("audit_rows_purged", audits).
		Msg("retention cleanup done")
	return purged, nil
}

// runLocked executes fn only if this instance wins the lease for the given
// job and bucket.
func (s *SweepService) runLocked(name, key string, fn func() error) {
	ok, err := s.tryAcquire(name, key, time.Hour)
	if err != nil {
		logger.Error().Str("job", name).Err(err).Msg("lease acquisition failed")
		return
	}
	if !ok {
		logger.Debug().Str("job", name).Str("key", key).Msg("lease held elsewhere, skipping run")
		return
	}
	if err := fn(); err != nil {
		logger.Error().Str("job", name).Err(err).Msg("sweep job failed")
	}
}

func (s *SweepService) tryAcquire(name, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	// Reclaim an expired lease before attempting the insert.
	s.db.Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Delete(&models.SchedulerLock{})

	lock := &models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.db.Create(lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
