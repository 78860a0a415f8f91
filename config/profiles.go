package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile with
// environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()

	switch name {
	case "development", "default":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Storage.Adapter = AdapterMemory
		cfg.Logging.Level = "warn"
		cfg.Server.ShutdownTimeout = 5 * time.Second
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = AdapterFile
		cfg.Security.EnableRateLimit = true
	case "production":
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = AdapterRedis
		cfg.Server.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true
		cfg.Tab.AsyncEvents = true
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg.Profile = name
	return finish(cfg)
}
