// Package tab assembles a ready-to-use TabService with its event consumers.
package tab

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mem "drinktab/adapters/memory"
	"drinktab/analytics"
	"drinktab/core"
	"drinktab/engine"
	"drinktab/integrations/webhook"
	"drinktab/leaderboard"
	"drinktab/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	rules   engine.RuleEngine
	hub     *realtime.Hub
	sink    *webhook.Sink
	board   *leaderboard.Purchases
	tally   *analytics.BadgeTally
	hooks   []analytics.Hook
	logger  *slog.Logger
	svcOpts []engine.ServiceOption
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine replaces the built-in achievement table.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhook posts achievement unlocks through sink.
func WithWebhook(sink *webhook.Sink) Option { return func(c *config) { c.sink = sink } }

// WithLeaderboard feeds purchase events into board.
func WithLeaderboard(board *leaderboard.Purchases) Option { return func(c *config) { c.board = board } }

// WithBadgeTally feeds unlock events into tally.
func WithBadgeTally(tally *analytics.BadgeTally) Option { return func(c *config) { c.tally = tally } }

// WithHooks registers analytics hooks for every event.
func WithHooks(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, engine.WithLocation(loc)) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l == nil {
			return
		}
		c.logger = l
		c.svcOpts = append(c.svcOpts, engine.WithLogger(l))
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, engine.WithClock(now)) }
}

// New builds a configured TabService. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.TabService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode, engine.WithBusLogger(cfg.logger))
	svc := engine.NewTabService(cfg.storage, bus, cfg.rules, cfg.svcOpts...)

	if cfg.hub != nil {
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	if cfg.sink != nil {
		bus.Subscribe(core.EventAchievementUnlocked, cfg.sink.Handle)
	}
	if cfg.board != nil {
		bus.Subscribe(core.EventPurchaseMade, cfg.board.Handle)
	}
	if cfg.tally != nil {
		bus.Subscribe(core.EventAchievementUnlocked, func(_ context.Context, e core.Event) { cfg.tally.OnEvent(e) })
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		bus.SubscribeAll(func(_ context.Context, e core.Event) { bridge.OnEvent(e) })
	}
	return svc
}

// Seed loads persisted purchases and badges into the process-local board and
// tally. Either may be nil.
func Seed(ctx context.Context, svc *engine.TabService, board *leaderboard.Purchases, tally *analytics.BadgeTally) error {
	if board == nil && tally == nil {
		return nil
	}
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, id := range users {
		if board != nil {
			txs, err := svc.Transactions(ctx, id)
			if err != nil {
				return fmt.Errorf("seed leaderboard for %s: %w", id, err)
			}
			board.Seed(id, txs)
		}
		if tally != nil {
			u, err := svc.GetUser(ctx, id)
			if err != nil {
				return fmt.Errorf("seed badge tally for %s: %w", id, err)
			}
			tally.Seed(id, u.Badges)
		}
	}
	return nil
}
