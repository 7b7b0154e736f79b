package main

import (
	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/models"
	"github.com/edubridge-labs/tokenvault/internal/services"
	"github.com/edubridge-labs/tokenvault/internal/utils"
	"github.com/edubridge-labs/tokenvault/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg         *config.Config
	authority   services.TokenAuthority
	lifecycle   *services.LifecycleService
	resolution  *services.ResolutionService
	sweeper     *services.SweepService
	credentials *services.CredentialService
	mappings    *services.TokenMappingService
	dashboard   *services.DashboardService
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	cipher, err := utils.NewCipher(cfg.JWT.Secret)
	if err != nil {
		logger.Fatalf("Failed to initialize credential cipher: %v", err)
	}

	lifecycle := services.NewLifecycleService(db, &cfg.Token)
	mappings := services.NewTokenMappingService(db)
	resolution := services.NewResolutionService(lifecycle.Store(), lifecycle.Codec(), mappings)
	credentials := services.NewCredentialService(db, cipher)
	dashboard := services.NewDashboardService(db, lifecycle.Store(), mappings)

	// The local engine always exists; the bridge wraps it when a remote
	// authority is configured.
	local := services.NewLocalAuthority(lifecycle, resolution)
	var authority services.TokenAuthority = local
	if cfg.Authority.Enabled {
		remote := services.NewRemoteClient(&cfg.Authority)
		authority = services.NewBridgedAuthority(remote, local)
		logger.Info().Str("base_url", cfg.Authority.BaseURL).Msg("remote token authority enabled")
	}

	sweeper := services.NewSweepService(db, lifecycle, mappings, &cfg.Sweep, cfg.Token.RetentionDays)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("Failed to start sweep scheduler: %v", err)
	}

	return &appServices{
		cfg:         cfg,
		authority:   authority,
		lifecycle:   lifecycle,
		resolution:  resolution,
		sweeper:     sweeper,
		credentials: credentials,
		mappings:    mappings,
		dashboard:   dashboard,
	}
}

// shutdown gracefully stops all background services.
func (s *appServices) shutdown() {
	s.sweeper.Stop()
	logger.Info().Msg("Sweep scheduler stopped")
}
