package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/validator"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string
	DBPool      DBPoolConfig

	// Server ports
	APIPort int

	// SMTP relay ingestion
	SMTPRelayEnabled bool
	SMTPRelayPort    int
	SMTPRelayDomain  string

	// Storage
	UploadStoragePath string

	// Logging
	LogLevel string

	// Security
	JWTSecret      string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int

	// Events and sync lock
	RedisURL    string
	EventsQueue string

	// Gmail
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GmailAPIBaseURL    string

	// Email sync
	EmailSync EmailSyncConfig

	// Messaging
	SupportChatName string
}

// DBPoolConfig sizes the PostgreSQL connection pool
type DBPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// EmailSyncConfig tunes the mailbox polling pipeline
type EmailSyncConfig struct {
	Interval    time.Duration
	ListLimit   int
	FetchLimit  int
	Lookback    time.Duration
	HTTPTimeout time.Duration
	// RunTimeout bounds one coach sync
	RunTimeout time.Duration
	// LockTTL is derived from RunTimeout so a live sync always holds its lock
	LockTTL     time.Duration
	SyncOnStart bool
}

// syncLockMargin keeps the sync lock alive past the run deadline
const syncLockMargin = 5 * time.Minute

// Defaults
const (
	DefaultGoogleTokenURL  = "https://oauth2.googleapis.com/token"
	DefaultGmailAPIBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"
	DefaultEventsQueue     = "coachhub:events"
	DefaultSupportChatName = "Support Chat"
)

// fileConfig mirrors the optional YAML overlay. Unset keys keep the
// environment-derived values.
type fileConfig struct {
	Database struct {
		URL             string `yaml:"url"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Server struct {
		Port           int    `yaml:"port"`
		AllowedOrigins string `yaml:"allowed_origins"`
		JWTSecret      string `yaml:"jwt_secret"`
	} `yaml:"server"`
	SMTPRelay struct {
		Enabled *bool  `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Domain  string `yaml:"domain"`
	} `yaml:"smtp_relay"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Events string `yaml:"events"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		TokenURL     string `yaml:"token_url"`
		GmailBaseURL string `yaml:"gmail_base_url"`
	} `yaml:"google"`
	EmailSync struct {
		Interval    string `yaml:"interval"`
		ListLimit   int    `yaml:"list_limit"`
		FetchLimit  int    `yaml:"fetch_limit"`
		Lookback    string `yaml:"lookback"`
		HTTPTimeout string `yaml:"http_timeout"`
		RunTimeout  string `yaml:"run_timeout"`
		SyncOnStart *bool  `yaml:"sync_on_start"`
	} `yaml:"email_sync"`
	Messaging struct {
		SupportChatName string `yaml:"support_chat_name"`
	} `yaml:"messaging"`
}

// Load reads configuration from environment variables, then applies the YAML
// file named by CONFIG_PATH (with ${VAR} expansion) when one is set.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DBPool.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBPool.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.DBPool.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", time.Hour); err != nil {
		return nil, err
	}

	if cfg.APIPort, err = envInt("API_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.SMTPRelayPort, err = envInt("SMTP_RELAY_PORT", 2525); err != nil {
		return nil, err
	}
	if cfg.SMTPRelayEnabled, err = envBool("SMTP_RELAY_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.SMTPRelayDomain = os.Getenv("SMTP_RELAY_DOMAIN")

	cfg.UploadStoragePath = envOrDefault("UPLOAD_STORAGE_PATH", "./uploads")
	cfg.LogLevel = envOrDefault("LOG_LEVEL", "info")

	// Security configuration
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = envOrDefault("APP_ENV", "development")

	// Rate limiting configuration
	cfg.RateLimitRequests = 10.0
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	}
	cfg.RateLimitBurst = 20
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.EventsQueue = envOrDefault("EVENTS_QUEUE", DefaultEventsQueue)

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleTokenURL = envOrDefault("GOOGLE_TOKEN_URL", DefaultGoogleTokenURL)
	cfg.GmailAPIBaseURL = envOrDefault("GMAIL_API_BASE_URL", DefaultGmailAPIBaseURL)

	if cfg.EmailSync.Interval, err = envDuration("EMAIL_SYNC_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EmailSync.ListLimit, err = envInt("EMAIL_SYNC_LIST_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.EmailSync.FetchLimit, err = envInt("EMAIL_SYNC_FETCH_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.EmailSync.Lookback, err = envDuration("EMAIL_SYNC_LOOKBACK", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EmailSync.HTTPTimeout, err = envDuration("EMAIL_SYNC_HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EmailSync.RunTimeout, err = envDuration("EMAIL_SYNC_RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EmailSync.SyncOnStart, err = envBool("EMAIL_SYNC_ON_START", true); err != nil {
		return nil, err
	}

	cfg.SupportChatName = envOrDefault("SUPPORT_CHAT_NAME", DefaultSupportChatName)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.EmailSync.LockTTL = cfg.EmailSync.RunTimeout + syncLockMargin

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	return cfg, nil
}

// applyFile overlays non-empty values from a YAML config file
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}

	c.DatabaseURL = firstNonEmpty(raw.Database.URL, c.DatabaseURL)
	c.DBPool.MaxOpenConns = firstPositive(raw.Database.MaxOpenConns, c.DBPool.MaxOpenConns)
	c.DBPool.MaxIdleConns = firstPositive(raw.Database.MaxIdleConns, c.DBPool.MaxIdleConns)
	c.APIPort = firstPositive(raw.Server.Port, c.APIPort)
	c.AllowedOrigins = firstNonEmpty(raw.Server.AllowedOrigins, c.AllowedOrigins)
	c.JWTSecret = firstNonEmpty(raw.Server.JWTSecret, c.JWTSecret)

	if raw.SMTPRelay.Enabled != nil {
		c.SMTPRelayEnabled = *raw.SMTPRelay.Enabled
	}
	c.SMTPRelayPort = firstPositive(raw.SMTPRelay.Port, c.SMTPRelayPort)
	c.SMTPRelayDomain = firstNonEmpty(raw.SMTPRelay.Domain, c.SMTPRelayDomain)

	c.RedisURL = firstNonEmpty(raw.Redis.URL, c.RedisURL)
	c.EventsQueue = firstNonEmpty(raw.Redis.Queues.Events, c.EventsQueue)

	c.GoogleClientID = firstNonEmpty(raw.Google.ClientID, c.GoogleClientID)
	c.GoogleClientSecret = firstNonEmpty(raw.Google.ClientSecret, c.GoogleClientSecret)
	c.GoogleTokenURL = firstNonEmpty(raw.Google.TokenURL, c.GoogleTokenURL)
	c.GmailAPIBaseURL = firstNonEmpty(raw.Google.GmailBaseURL, c.GmailAPIBaseURL)

	for _, d := range []struct {
		raw    string
		target *time.Duration
		key    string
	}{
		{raw.Database.ConnMaxLifetime, &c.DBPool.ConnMaxLifetime, "database.conn_max_lifetime"},
		{raw.EmailSync.Interval, &c.EmailSync.Interval, "email_sync.interval"},
		{raw.EmailSync.Lookback, &c.EmailSync.Lookback, "email_sync.lookback"},
		{raw.EmailSync.HTTPTimeout, &c.EmailSync.HTTPTimeout, "email_sync.http_timeout"},
		{raw.EmailSync.RunTimeout, &c.EmailSync.RunTimeout, "email_sync.run_timeout"},
	} {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", d.key, err)
		}
		*d.target = parsed
	}
	c.EmailSync.ListLimit = firstPositive(raw.EmailSync.ListLimit, c.EmailSync.ListLimit)
	c.EmailSync.FetchLimit = firstPositive(raw.EmailSync.FetchLimit, c.EmailSync.FetchLimit)
	if raw.EmailSync.SyncOnStart != nil {
		c.EmailSync.SyncOnStart = *raw.EmailSync.SyncOnStart
	}

	c.SupportChatName = firstNonEmpty(raw.Messaging.SupportChatName, c.SupportChatName)
	return nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPRelayEnabled {
		if c.SMTPRelayPort <= 0 || c.SMTPRelayPort > 65535 {
			return fmt.Errorf("SMTPRelayPort must be between 1 and 65535")
		}
		if c.SMTPRelayDomain == "" {
			return fmt.Errorf("SMTP_RELAY_DOMAIN is required when the SMTP relay is enabled")
		}
		if err := validator.ValidateDomain(c.SMTPRelayDomain); err != nil {
			return fmt.Errorf("SMTP_RELAY_DOMAIN %q: %w", c.SMTPRelayDomain, err)
		}
	}
	if c.UploadStoragePath == "" {
		return fmt.Errorf("UploadStoragePath cannot be empty")
	}
	if c.DBPool.MaxOpenConns <= 0 || c.DBPool.MaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS not negative")
	}
	if c.DBPool.MaxIdleConns > c.DBPool.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}
	if c.EmailSync.Interval <= 0 {
		return fmt.Errorf("EMAIL_SYNC_INTERVAL must be positive")
	}
	if c.EmailSync.ListLimit <= 0 || c.EmailSync.FetchLimit <= 0 {
		return fmt.Errorf("email sync list and fetch limits must be positive")
	}
	if c.EmailSync.FetchLimit > c.EmailSync.ListLimit {
		return fmt.Errorf("EMAIL_SYNC_FETCH_LIMIT cannot exceed EMAIL_SYNC_LIST_LIMIT")
	}
	if c.EmailSync.RunTimeout <= 0 {
		return fmt.Errorf("EMAIL_SYNC_RUN_TIMEOUT must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// GmailConfigured reports whether OAuth client credentials are available for token refresh
func (c *Config) GmailConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Bool("smtp_relay_enabled", c.SMTPRelayEnabled),
		slog.Int("smtp_relay_port", c.SMTPRelayPort),
		slog.String("smtp_relay_domain", c.SMTPRelayDomain),
		slog.String("upload_path", c.UploadStoragePath),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("jwt_secret_set", c.JWTSecret != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Bool("redis_configured", c.RedisURL != ""),
		slog.String("events_queue", c.EventsQueue),
		slog.Bool("gmail_oauth_configured", c.GmailConfigured()),
		slog.Duration("email_sync_interval", c.EmailSync.Interval),
		slog.Int("email_sync_list_limit", c.EmailSync.ListLimit),
		slog.Int("email_sync_fetch_limit", c.EmailSync.FetchLimit),
		slog.Duration("email_sync_run_timeout", c.EmailSync.RunTimeout),
		slog.Bool("email_sync_on_start", c.EmailSync.SyncOnStart),
	)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
