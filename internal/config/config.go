package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Admin     AdminConfig     `yaml:"admin"`
	Token     TokenConfig     `yaml:"token"`
	Authority AuthorityConfig `yaml:"authority"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// AdminConfig is the single operator account for the admin surface.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TokenConfig controls the token value format and lifecycle defaults.
type TokenConfig struct {
	// HashCharset is the alphabet for hash and checksum segments. The default
	// drops I, O, 0 and 1 to avoid visual ambiguity on printed rosters.
	HashCharset    string `yaml:"hash_charset"`
	HashLength     int    `yaml:"hash_length"`
	ChecksumLength int    `yaml:"checksum_length"`

	// ExpirationDays is how long a freshly minted token stays valid.
	ExpirationDays int `yaml:"expiration_days"`

	// RotationMonth is the school-year boundary month (1=January). Before this
	// month "now" belongs to the previous school year.
	RotationMonth int `yaml:"rotation_month"`

	// RetentionDays is how long rotated/revoked rows are kept before the
	// cleanup job deletes them.
	RetentionDays int `yaml:"retention_days"`
}

// AuthorityConfig wires the optional remote tokenization authority. When
// disabled the service runs in pure-local mode.
type AuthorityConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// TimeoutSeconds bounds data calls; HealthTimeoutSeconds bounds the
	// health probe, which is allowed to give up faster.
	TimeoutSeconds       int `yaml:"timeout_seconds"`
	HealthTimeoutSeconds int `yaml:"health_timeout_seconds"`
}

// SweepConfig schedules the background expire sweep and retention cleanup.
type SweepConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ExpireCron  string `yaml:"expire_cron"`
	CleanupCron string `yaml:"cleanup_cron"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.applyDefaults()
	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "tokenvault.db",
		},
		JWT: JWTConfig{
			Secret:     "tokenvault-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
		},
		Token: TokenConfig{
			HashCharset:    "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
			HashLength:     8,
			ChecksumLength: 2,
			ExpirationDays: 365,
			RotationMonth:  8,
			RetentionDays:  180,
		},
		Authority: AuthorityConfig{
			Enabled:              false,
			BaseURL:              "http://localhost:9580",
			TimeoutSeconds:       10,
			HealthTimeoutSeconds: 5,
		},
		Sweep: SweepConfig{
			Enabled:     true,
			ExpireCron:  "0 * * * *", // hourly
			CleanupCron: "30 2 * * *",
		},
	}
}

// applyDefaults fills zero values in a file-loaded config so a sparse yaml
// file still yields a runnable configuration.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Mode == "" {
		c.Server.Mode = def.Server.Mode
	}
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = def.JWT.Secret
	}
	if c.JWT.ExpireHour == 0 {
		c.JWT.ExpireHour = def.JWT.ExpireHour
	}
	if c.Admin.Username == "" {
		c.Admin.Username = def.Admin.Username
	}
	if c.Admin.Password == "" {
		c.Admin.Password = def.Admin.Password
	}
	if c.Token.HashCharset == "" {
		c.Token.HashCharset = def.Token.HashCharset
	}
	if c.Token.HashLength == 0 {
		c.Token.HashLength = def.Token.HashLength
	}
	if c.Token.ChecksumLength == 0 {
		c.Token.ChecksumLength = def.Token.ChecksumLength
	}
	if c.Token.ExpirationDays == 0 {
		c.Token.ExpirationDays = def.Token.ExpirationDays
	}
	if c.Token.RotationMonth == 0 {
		c.Token.RotationMonth = def.Token.RotationMonth
	}
	if c.Token.RetentionDays == 0 {
		c.Token.RetentionDays = def.Token.RetentionDays
	}
	if c.Authority.BaseURL == "" {
		c.Authority.BaseURL = def.Authority.BaseURL
	}
	if c.Authority.TimeoutSeconds == 0 {
		c.Authority.TimeoutSeconds = def.Authority.TimeoutSeconds
	}
	if c.Authority.HealthTimeoutSeconds == 0 {
		c.Authority.HealthTimeoutSeconds = def.Authority.HealthTimeoutSeconds
	}
	if c.Sweep.ExpireCron == "" {
		c.Sweep.ExpireCron = def.Sweep.ExpireCron
	}
	if c.Sweep.CleanupCron == "" {
		c.Sweep.CleanupCron = def.Sweep.CleanupCron
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if username := os.Getenv("ADMIN_USERNAME"); username != "" {
		c.Admin.Username = username
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		c.Admin.Password = password
	}
	if days := os.Getenv("TOKEN_EXPIRATION_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil && v > 0 {
			c.Token.ExpirationDays = v
		}
	}
	if month := os.Getenv("TOKEN_ROTATION_MONTH"); month != "" {
		if v, err := strconv.Atoi(month); err == nil && v >= 1 && v <= 12 {
			c.Token.RotationMonth = v
		}
	}
	if enabled := os.Getenv("AUTHORITY_ENABLED"); enabled != "" {
		c.Authority.Enabled = enabled == "true" || enabled == "1"
	}
	if baseURL := os.Getenv("AUTHORITY_BASE_URL"); baseURL != "" {
		c.Authority.BaseURL = baseURL
	}
	if apiKey := os.Getenv("AUTHORITY_API_KEY"); apiKey != "" {
		c.Authority.APIKey = apiKey
	}
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
