package tab

import (
	"context"
	"testing"
	"time"

	mem "drinktab/adapters/memory"
	"drinktab/analytics"
	"drinktab/core"
	"drinktab/engine"
	"drinktab/leaderboard"
	"drinktab/realtime"
)

// Monday 12:15 in Berlin
var lunch = time.Date(2024, time.May, 6, 10, 15, 0, 0, time.UTC)

func TestNewWiresConsumers(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	if err := store.PutItem(ctx, core.Item{ID: "bier", Name: "Bier", Price: 150, Stock: 5, Category: core.CategoryAlcohol}); err != nil {
		t.Fatal(err)
	}
	hub := realtime.NewHub()
	_, ch := hub.Subscribe(8, "")
	board := leaderboard.NewPurchases()
	tally := analytics.NewBadgeTally()

	svc := New(
		WithStorage(store),
		WithRealtime(hub),
		WithLeaderboard(board),
		WithBadgeTally(tally),
		WithDispatchMode(engine.DispatchSync),
		WithClock(func() time.Time { return lunch }),
	)
	defer svc.Close()

	if _, err := svc.CreateUser(ctx, "alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Purchase(ctx, "alice", "bier"); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	ev := <-ch
	if ev.Type != core.EventPurchaseMade || ev.UserID != "alice" {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	if e, ok := board.Get("alice"); !ok || e.Score != 1 {
		t.Fatalf("expected one purchase on the board, got %+v", e)
	}
	if tally.Holders("erster_schluck") != 1 {
		t.Fatalf("expected erster_schluck to be tallied, got %v", tally.Counts())
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync))
	defer svc.Close()
	if _, err := svc.CreateUser(context.Background(), "bob", "Bob"); err != nil {
		t.Fatalf("fallback create user: %v", err)
	}
	r, err := svc.Deposit(context.Background(), "bob", 500)
	if err != nil {
		t.Fatalf("fallback deposit: %v", err)
	}
	if r.Balance != 500 {
		t.Fatalf("expected balance 500, got %d", r.Balance)
	}
}

func TestNewIgnoresNilLoggerAndClock(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync), WithLogger(nil), WithClock(nil))
	defer svc.Close()
	if _, err := svc.CreateUser(context.Background(), "bob", "Bob"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Deposit(context.Background(), "bob", 500); err != nil {
		t.Fatalf("deposit with nil options: %v", err)
	}
}

func TestSeedRestoresBoardAndTally(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	_ = store.PutItem(ctx, core.Item{ID: "mate", Name: "Mate", Price: 120, Stock: 5, Category: core.CategorySoftdrink})
	first := New(WithStorage(store), WithDispatchMode(engine.DispatchSync), WithClock(func() time.Time { return lunch }))
	_, _ = first.CreateUser(ctx, "carol", "")
	for i := 0; i < 2; i++ {
		if _, err := first.Purchase(ctx, "carol", "mate"); err != nil {
			t.Fatalf("purchase: %v", err)
		}
	}
	first.Close()

	board := leaderboard.NewPurchases()
	tally := analytics.NewBadgeTally()
	second := New(WithStorage(store), WithDispatchMode(engine.DispatchSync))
	defer second.Close()
	if err := Seed(ctx, second, board, tally); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if e, _ := board.Get("carol"); e.Score != 2 {
		t.Fatalf("expected 2 purchases, got %d", e.Score)
	}
	if tally.Holders("erster_schluck") != 1 {
		t.Fatalf("expected seeded badge holder, got %v", tally.Counts())
	}
}
