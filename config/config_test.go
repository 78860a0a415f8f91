package config

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Test loading default config
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify defaults
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	// Load config from file
	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "invalid environment",
			mutate:      func(c *Config) { c.Environment = "" },
			expectError: true,
		},
		{
			name:        "invalid server timeout",
			mutate:      func(c *Config) { c.Server.ReadTimeout = 0 },
			expectError: true,
		},
		{
			name:        "unknown adapter",
			mutate:      func(c *Config) { c.Storage.Adapter = "etcd" },
			expectError: true,
		},
		{
			name: "sql without dsn",
			mutate: func(c *Config) {
				c.Storage.Adapter = AdapterSQL
				c.Storage.SQL.DSN = ""
			},
			expectError: true,
		},
		{
			name:        "unknown timezone",
			mutate:      func(c *Config) { c.Tab.Timezone = "Mars/Olympus" },
			expectError: true,
		},
		{
			name:        "relative webhook endpoint",
			mutate:      func(c *Config) { c.Webhook.Endpoints = []string{"/hooks"} },
			expectError: true,
		},
		{
			name:        "webhook endpoint",
			mutate:      func(c *Config) { c.Webhook.Endpoints = []string{"https://example.com/hooks"} },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DRINKTAB_STORAGE_ADAPTER", "redis")
	t.Setenv("DRINKTAB_STORAGE_REDIS_ADDR", "cache:6379")
	t.Setenv("DRINKTAB_TIMEZONE", "UTC")
	t.Setenv("DRINKTAB_WEBHOOK_ENDPOINTS", "http://a.example/h, http://b.example/h")
	t.Setenv("DRINKTAB_LOG_ATTRIBUTES", "service=drinktab,region=eu")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AdapterRedis, cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "UTC", cfg.Tab.Timezone)
	assert.Equal(t, []string{"http://a.example/h", "http://b.example/h"}, cfg.Webhook.Endpoints)
	assert.Equal(t, map[string]string{"service": "drinktab", "region": "eu"}, cfg.Logging.Attributes)
}

func TestLoadSecretsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dsn"
	require.NoError(t, os.WriteFile(path, []byte("postgres://secret@db/drinktab\n"), 0o600))
	t.Setenv("DRINKTAB_STORAGE_SQL_DSN_FILE", path)
	t.Setenv("DRINKTAB_SECURITY_API_KEYS", "k1, k2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "postgres://secret@db/drinktab", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.NotContains(t, cfg.String(), "secret@db")
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestSecrets(t *testing.T) {
	// Test environment secret store
	store := NewEnvironmentSecretStore()

	// Set test environment variable
	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	os.Setenv(testKey, testValue)
	defer os.Unsetenv(testKey)

	ctx := context.Background()

	// Test Get
	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	// Test GetWithDefault
	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)
}

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
		setup       func() string // returns path to cleanup
	}{
		{
			name:        "valid json file",
			path:        "config_test.json",
			expectError: false,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.json")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "empty path",
			path:        "",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "path traversal",
			path:        "../../../etc/passwd",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "non-json file",
			path:        "config.txt",
			expectError: true,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.txt")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "nonexistent file",
			path:        "nonexistent.json",
			expectError: true,
			setup:       func() string { return "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupPath := tt.setup()
			if cleanupPath != "" {
				defer os.Remove(cleanupPath)
				if tt.path == "config_test.json" || tt.path == "config.txt" {
					tt.path = cleanupPath
				}
			}

			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	vars := map[string]string{
		"DRINKTAB_SERVER_ADDR":       ":9000",
		"DRINKTAB_WEBHOOK_TIMEOUT":   "750ms",
		"DRINKTAB_LEADERBOARD_SIZE":  "25",
		"DRINKTAB_ASYNC_EVENTS":      "true",
		"DRINKTAB_SECURITY_API_KEYS": "a, ,b",
		"DRINKTAB_LOG_ATTRIBUTES":    "service=tab, region = eu",
		"DRINKTAB_TIMEZONE":          "  ",
	}
	lookup := func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, applyEnv(reflect.ValueOf(cfg).Elem(), lookup))
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 750*time.Millisecond, cfg.Webhook.Timeout)
	assert.Equal(t, 25, cfg.Tab.LeaderboardSize)
	assert.True(t, cfg.Tab.AsyncEvents)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"service": "tab", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, "Europe/Berlin", cfg.Tab.Timezone, "blank value keeps the default")

	vars["DRINKTAB_LEADERBOARD_SIZE"] = "many"
	err := applyEnv(reflect.ValueOf(DefaultConfig()).Elem(), lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRINKTAB_LEADERBOARD_SIZE")

	vars["DRINKTAB_LEADERBOARD_SIZE"] = "5"
	vars["DRINKTAB_LOG_ATTRIBUTES"] = "novalue"
	assert.Error(t, applyEnv(reflect.ValueOf(DefaultConfig()).Elem(), lookup))
}
