package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"drinktab/adapters/sqlx"
)

var (
	adapters   = []string{AdapterMemory, AdapterFile, AdapterRedis, AdapterSQL}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
	logOutputs = []string{"stdout", "stderr"}
	sqlDrivers = []sqlx.Driver{sqlx.DriverPostgres, sqlx.DriverMySQL, sqlx.DriverSQLite}
)

// problems collects validation messages of one section.
type problems []string

func (p *problems) addf(format string, args ...any) { *p = append(*p, fmt.Sprintf(format, args...)) }

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

func (p *problems) positive(d time.Duration, name string) {
	p.check(d > 0, "%s must be positive", name)
}

func (p *problems) oneOf(v string, allowed []string, name string) {
	p.check(slices.Contains(allowed, v), "%s must be one of: %s", name, strings.Join(allowed, ", "))
}

// nest records a failing subsection under its name.
func (p *problems) nest(name string, err error) {
	if err != nil {
		p.addf("%s: %v", name, err)
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return errors.New(strings.Join(p, "; "))
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var p problems
	p.check(c.Environment != "", "environment cannot be empty")
	p.nest("server config", c.Server.Validate())
	p.nest("storage config", c.Storage.Validate())
	p.nest("logging config", c.Logging.Validate())
	p.nest("security config", c.Security.Validate())
	p.nest("tab config", c.Tab.Validate())
	p.nest("webhook config", c.Webhook.Validate())
	return p.err()
}

func (s *ServerConfig) Validate() error {
	var p problems
	p.check(s.Address != "", "address cannot be empty")
	p.positive(s.ReadTimeout, "read_timeout")
	p.positive(s.WriteTimeout, "write_timeout")
	p.positive(s.IdleTimeout, "idle_timeout")
	p.positive(s.ReadHeaderTimeout, "read_header_timeout")
	p.positive(s.ShutdownTimeout, "shutdown_timeout")
	return p.err()
}

func (s *StorageConfig) Validate() error {
	var p problems
	p.oneOf(s.Adapter, adapters, "adapter")
	switch s.Adapter {
	case AdapterFile:
		p.nest("file config", s.File.Validate())
	case AdapterRedis:
		p.check(s.Redis.Addr != "", "redis config: addr cannot be empty")
	case AdapterSQL:
		p.check(slices.Contains(sqlDrivers, s.SQL.Driver), "sql config: unsupported driver %q", s.SQL.Driver)
		p.check(s.SQL.DSN != "", "sql config: dsn cannot be empty")
	}
	return p.err()
}

func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	var p problems
	p.oneOf(l.Level, logLevels, "level")
	p.oneOf(l.Format, logFormats, "format")
	p.oneOf(l.Output, logOutputs, "output")
	return p.err()
}

func (s SecurityConfig) Validate() error {
	var p problems
	if s.EnableRateLimit {
		p.check(s.RateLimit.RequestsPerMinute > 0, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		p.check(s.RateLimit.BurstSize > 0, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
	}
	for i, key := range s.APIKeys {
		p.check(strings.TrimSpace(key) != "", "api_keys[%d] is empty", i)
	}
	return p.err()
}

// Validate requires a loadable timezone; evaluation hours depend on it.
func (t *TabConfig) Validate() error {
	var p problems
	if t.Timezone == "" {
		p.addf("timezone cannot be empty")
	} else if _, err := time.LoadLocation(t.Timezone); err != nil {
		p.addf("unknown timezone %q", t.Timezone)
	}
	p.check(t.LeaderboardSize > 0, "leaderboard_size must be positive")
	return p.err()
}

func (w *WebhookConfig) Validate() error {
	var p problems
	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		p.check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
			"endpoints[%d] must be an absolute http(s) URL", i)
	}
	p.check(w.MaxRetries >= 0, "max_retries cannot be negative")
	p.positive(w.Timeout, "timeout")
	return p.err()
}
