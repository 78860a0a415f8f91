package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	mem "drinktab/adapters/memory"
	"drinktab/analytics"
	"drinktab/api/httpapi"
	"drinktab/core"
	"drinktab/engine"
	"drinktab/leaderboard"
	"drinktab/realtime"
	"drinktab/tab"
)

// fridge is the inventory every demo run starts with.
var fridge = []core.Item{
	{ID: "bier", Name: "Bier", Price: 150, Stock: 24, Category: core.CategoryAlcohol},
	{ID: "radler", Name: "Radler", Price: 150, Stock: 12, Category: core.CategoryAlcohol},
	{ID: "mate", Name: "Club Mate", Price: 120, Stock: 20, Category: core.CategorySoftdrink},
	{ID: "wasser", Name: "Wasser", Price: 50, Stock: 30, Category: core.CategorySoftdrink},
	{ID: "brezel", Name: "Brezel", Price: 100, Stock: 10, Category: core.CategoryFood},
	{ID: "gummibaer", Name: "Gummibärchen", Price: 80, Stock: 15, Category: core.CategorySnack},
}

func seedDemo(ctx context.Context, store engine.Storage, users ...core.UserID) error {
	for _, it := range fridge {
		if err := store.PutItem(ctx, it); err != nil {
			return err
		}
	}
	for _, u := range users {
		if err := store.CreateUser(ctx, core.User{ID: u, Name: string(u), Created: time.Now()}); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	store := mem.New()
	if err := seedDemo(ctx, store, "alice", "bob"); err != nil {
		slog.Error("seed demo data", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	board := leaderboard.NewPurchases()
	tally := analytics.NewBadgeTally()
	svc := tab.New(
		tab.WithStorage(store),
		tab.WithRealtime(hub),
		tab.WithLeaderboard(board),
		tab.WithBadgeTally(tally),
		tab.WithHooks(analytics.NewLogHook(slog.Default())),
	)
	defer svc.Close()

	handler := httpapi.NewMux(svc, hub, httpapi.Options{
		AllowCORSOrigin: "*",
		Leaderboard:     board,
		Tally:           tally,
	})

	slog.Info("starting demo server on :8080", "items", len(fridge))

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
