package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinktab/config"
)

func TestBuildAppWithMemoryStorage(t *testing.T) {
	t.Setenv("DRINKTAB_STORAGE_ADAPTER", "memory")
	t.Setenv("DRINKTAB_SERVER_PATH_PREFIX", "/api")
	t.Setenv("DRINKTAB_LOG_LEVEL", "error")

	app, cleanup, err := BuildApp(context.Background())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, ":8080", app.Server.Addr)
	assert.NotEmpty(t, app.Service.Rules())
	assert.Equal(t, "Europe/Berlin", app.Service.Location().String())

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAppRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("DRINKTAB_TIMEZONE", "Nowhere/Special")
	_, _, err := BuildApp(context.Background())
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestProvideWebhookOnlyWithEndpoints(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, provideWebhook(cfg, slog.Default()))

	cfg.Webhook.Endpoints = []string{"http://localhost/hook"}
	assert.NotNil(t, provideWebhook(cfg, slog.Default()))
}
