package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"drinktab/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1, "")

	ev := core.NewTransactionEvent(core.Transaction{UserID: "bob", Amount: 500, Type: core.TxDeposit}, 500)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventDepositMade {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Subscribers())
	}
}

func TestHubFiltersByUser(t *testing.T) {
	h := NewHub()
	_, alice := h.Subscribe(4, "alice")

	h.Broadcast(context.Background(), core.NewAchievementUnlocked("bob", core.Badge{ID: "sparschwein"}))
	h.Broadcast(context.Background(), core.NewAchievementUnlocked("alice", core.Badge{ID: "sparschwein"}))

	if len(alice) != 1 {
		t.Fatalf("expected exactly one event for alice, got %d", len(alice))
	}
	if ev := <-alice; ev.UserID != "alice" {
		t.Fatalf("unexpected user %s", ev.UserID)
	}
}

func TestHubCountsDrops(t *testing.T) {
	h := NewHub()
	h.Subscribe(1, "")
	ev := core.NewAchievementUnlocked("bob", core.Badge{ID: "x"})
	h.Broadcast(context.Background(), ev)
	h.Broadcast(context.Background(), ev)
	if h.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewAchievementUnlocked("alice", core.Badge{ID: "erster_schluck", Name: "Erster Schluck"})
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Badge == nil || out.Badge.ID != "erster_schluck" {
		t.Fatalf("unexpected badge: %+v", out.Badge)
	}
}
