package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves secrets by key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from the environment. A key may also be
// provided as KEY_FILE pointing at a file holding the value.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecretsFromEnv fills credentials that may be mounted as files
// (DRINKTAB_STORAGE_SQL_DSN_FILE and friends). Values already set are kept.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}

// LoadSecrets resolves secret fields from store.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	fields := []struct {
		key string
		dst *string
	}{
		{"DRINKTAB_STORAGE_SQL_DSN", &c.Storage.SQL.DSN},
		{"DRINKTAB_STORAGE_REDIS_PASSWORD", &c.Storage.Redis.Password},
	}
	for _, f := range fields {
		v, err := store.Get(ctx, f.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*f.dst = v
	}

	keys, err := store.Get(ctx, "DRINKTAB_SECURITY_API_KEYS")
	switch {
	case errors.Is(err, ErrSecretNotFound):
	case err != nil:
		return err
	default:
		c.Security.APIKeys = nil
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Security.APIKeys = append(c.Security.APIKeys, k)
			}
		}
	}
	return nil
}
