package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"drinktab/adapters/factory"
	"drinktab/analytics"
	"drinktab/api/httpapi"
	"drinktab/config"
	"drinktab/engine"
	"drinktab/integrations/webhook"
	"drinktab/leaderboard"
	"drinktab/realtime"
	"drinktab/tab"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *engine.TabService
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Tab.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Tab.Timezone, err)
	}
	return loc, nil
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	storage, closeFn, err := factory.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Adapter, err)
	}
	cleanup := func() {
		if err := closeFn(); err != nil {
			logger.Error("closing storage failed", "error", err)
		}
	}
	return storage, cleanup, nil
}

func provideLeaderboard() *leaderboard.Purchases {
	return leaderboard.NewPurchases()
}

func provideTally() *analytics.BadgeTally {
	return analytics.NewBadgeTally()
}

func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhook.Endpoints) == 0 {
		return nil
	}
	return webhook.New(cfg.Webhook.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
		webhook.WithMaxRetries(cfg.Webhook.MaxRetries),
		webhook.WithLogger(logger),
	)
}

func provideService(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	loc *time.Location,
	hub *realtime.Hub,
	storage engine.Storage,
	board *leaderboard.Purchases,
	tally *analytics.BadgeTally,
	sink *webhook.Sink,
) (*engine.TabService, func(), error) {
	mode := engine.DispatchSync
	if cfg.Tab.AsyncEvents {
		mode = engine.DispatchAsync
	}
	opts := []tab.Option{
		tab.WithStorage(storage),
		tab.WithRealtime(hub),
		tab.WithDispatchMode(mode),
		tab.WithLocation(loc),
		tab.WithLogger(logger),
		tab.WithLeaderboard(board),
		tab.WithBadgeTally(tally),
	}
	if sink != nil {
		opts = append(opts, tab.WithWebhook(sink))
	}
	svc := tab.New(opts...)
	if err := tab.Seed(ctx, svc, board, tally); err != nil {
		svc.Close()
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

func provideHandler(cfg *config.Config, logger *slog.Logger, svc *engine.TabService, hub *realtime.Hub, board *leaderboard.Purchases, tally *analytics.BadgeTally) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitIdle:    cfg.Security.RateLimit.CleanupInterval,
		Leaderboard:      board,
		LeaderboardSize:  cfg.Tab.LeaderboardSize,
		Tally:            tally,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
