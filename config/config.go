package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"drinktab/adapters/redis"
	"drinktab/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapter names.
const (
	AdapterMemory = "memory"
	AdapterFile   = "file"
	AdapterRedis  = "redis"
	AdapterSQL    = "sql"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"DRINKTAB_ENV"`
	Profile     string      `json:"profile" env:"DRINKTAB_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Tab holds achievement and ledger settings
	Tab TabConfig `json:"tab"`

	// Webhook delivery of achievement events
	Webhook WebhookConfig `json:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"DRINKTAB_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"DRINKTAB_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"DRINKTAB_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"DRINKTAB_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"DRINKTAB_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"DRINKTAB_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"DRINKTAB_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"DRINKTAB_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"DRINKTAB_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"DRINKTAB_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"DRINKTAB_LOG_LEVEL"`
	Format     string            `json:"format" env:"DRINKTAB_LOG_FORMAT"`
	Output     string            `json:"output" env:"DRINKTAB_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"DRINKTAB_LOG_ATTRIBUTES"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"DRINKTAB_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"DRINKTAB_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"DRINKTAB_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"DRINKTAB_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"DRINKTAB_SECURITY_RATE_LIMIT_CLEANUP"`
}

// TabConfig holds ledger and achievement settings.
type TabConfig struct {
	// Timezone used for all time-of-day and calendar rules.
	Timezone string `json:"timezone" env:"DRINKTAB_TIMEZONE"`
	// AsyncEvents dispatches events on background workers.
	AsyncEvents bool `json:"async_events" env:"DRINKTAB_ASYNC_EVENTS"`
	// LeaderboardSize caps GET /leaderboard.
	LeaderboardSize int `json:"leaderboard_size" env:"DRINKTAB_LEADERBOARD_SIZE"`
}

// WebhookConfig holds outbound webhook settings.
type WebhookConfig struct {
	Endpoints  []string      `json:"endpoints,omitempty" env:"DRINKTAB_WEBHOOK_ENDPOINTS"`
	MaxRetries int           `json:"max_retries" env:"DRINKTAB_WEBHOOK_MAX_RETRIES"`
	Timeout    time.Duration `json:"timeout" env:"DRINKTAB_WEBHOOK_TIMEOUT"`
}

// loadDotEnv reads .env.<env> or .env into the process environment.
// Existing variables win; production never reads dotfiles.
func loadDotEnv() {
	env := os.Getenv("DRINKTAB_ENV")
	if env == string(EnvProduction) {
		return
	}
	if env != "" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
			return
		}
	}
	_ = godotenv.Load()
}

// Load builds the configuration from defaults, .env files and DRINKTAB_*
// variables, then validates it.
func Load() (*Config, error) {
	return finish(DefaultConfig())
}

// LoadFromFile overlays a JSON file onto the defaults; environment variables
// still take precedence over file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	loadDotEnv()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validateConfigPath rejects empty, non-JSON and unreadable paths.
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}
	clean := filepath.Clean(path)
	if !strings.EqualFold(filepath.Ext(clean), ".json") {
		return errors.New("config file must have .json extension")
	}
	if _, err := os.Stat(clean); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: AdapterMemory,
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/drinktab.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Tab: TabConfig{
			Timezone:        "Europe/Berlin",
			LeaderboardSize: 10,
		},
		Webhook: WebhookConfig{
			MaxRetries: 3,
			Timeout:    2 * time.Second,
		},
	}
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
