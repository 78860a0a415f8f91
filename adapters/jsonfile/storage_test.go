package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"drinktab/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "tab.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.CreateUser(ctx, core.User{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.PutItem(ctx, core.Item{ID: "mate", Name: "Mate", Price: 120, Stock: 3, Category: core.CategorySoftdrink}); err != nil {
		t.Fatalf("put item: %v", err)
	}
	at := time.Date(2024, time.May, 6, 10, 0, 0, 0, time.UTC)
	tx, bal, err := store.Commit(ctx, core.Transaction{UserID: "alice", Amount: -120, Type: core.TxPurchase, Item: "mate", CreatedAt: at},
		[]core.Badge{{ID: "erster_schluck", Name: "Erster Schluck", UnlockedAt: &at}})
	if err != nil || tx.ID != 1 || bal != -120 {
		t.Fatalf("commit: tx=%+v bal=%d err=%v", tx, bal, err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	u, err := reloaded.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Balance != -120 {
		t.Fatalf("expected balance -120, got %d", u.Balance)
	}
	if len(u.Badges) != 1 || u.Badges[0].ID != "erster_schluck" || !u.Badges[0].UnlockedAt.Equal(at) {
		t.Fatalf("unexpected badges %+v", u.Badges)
	}
	item, err := reloaded.GetItem(ctx, "mate")
	if err != nil || item.Stock != 2 {
		t.Fatalf("expected stock 2, got %+v err=%v", item, err)
	}
	txs, err := reloaded.Transactions(ctx, "alice")
	if err != nil || len(txs) != 1 || !txs[0].CreatedAt.Equal(at) {
		t.Fatalf("unexpected transactions %+v err=%v", txs, err)
	}

	// ids continue after reload
	tx, _, err = reloaded.Commit(ctx, core.Transaction{UserID: "alice", Amount: 500, Type: core.TxDeposit, CreatedAt: at}, nil)
	if err != nil || tx.ID != 2 {
		t.Fatalf("second commit: tx=%+v err=%v", tx, err)
	}
}

func TestMalformedBadgeState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tab.json")
	raw := `{"users":{"bob":{"name":"Bob","balance":0,"unlocked_badges":"{not json"}},"items":{},"next_tx":0}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.UnlockedBadges(context.Background(), "bob"); !errors.Is(err, core.ErrMalformedBadgeState) {
		t.Fatalf("expected malformed badge state, got %v", err)
	}
}

func TestCommitOutOfStockLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "tab.json"))
	if err != nil {
		t.Fatal(err)
	}
	_ = store.CreateUser(ctx, core.User{ID: "alice"})
	_ = store.PutItem(ctx, core.Item{ID: "chips", Price: 100, Stock: 0, Category: core.CategorySnack})

	_, _, err = store.Commit(ctx, core.Transaction{UserID: "alice", Amount: -100, Type: core.TxPurchase, Item: "chips"}, []core.Badge{{ID: "x"}})
	if !errors.Is(err, core.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	bal, _ := store.Balance(ctx, "alice")
	badges, _ := store.UnlockedBadges(ctx, "alice")
	if bal != 0 || len(badges) != 0 {
		t.Fatalf("state changed: balance=%d badges=%v", bal, badges)
	}
}
