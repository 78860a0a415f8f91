package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"drinktab/core"
)

func depositEvent() core.Event {
	return core.NewTransactionEvent(core.Transaction{UserID: "u", Amount: 100, Type: core.TxDeposit}, 100)
}

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventDepositMade, func(ctx context.Context, e core.Event) { count++ })
	bus.Subscribe(core.EventPurchaseMade, func(ctx context.Context, e core.Event) { t.Fatal("wrong type") })
	bus.Publish(context.Background(), depositEvent())
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusUnsubscribeAndWildcard(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	typed, all := 0, 0
	unsub := bus.Subscribe(core.EventDepositMade, func(ctx context.Context, e core.Event) { typed++ })
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { all++ })
	bus.Publish(context.Background(), depositEvent())
	unsub()
	bus.Publish(context.Background(), depositEvent())
	bus.Publish(context.Background(), core.NewAchievementUnlocked("u", core.Badge{ID: "b"}))
	if typed != 1 || all != 3 {
		t.Fatalf("typed=%d all=%d", typed, all)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventDepositMade, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), depositEvent())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusCloseDrains(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var n atomic.Int32
	bus.Subscribe(core.EventDepositMade, func(ctx context.Context, e core.Event) { n.Add(1) })
	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), depositEvent())
	}
	bus.Close()
	if got := n.Load(); got != 10 {
		t.Fatalf("want 10 got %d", got)
	}
}

func TestEventBusAsyncKeepsPerUserOrder(t *testing.T) {
	bus := NewEventBus(DispatchAsync, WithShards(3))
	var mu sync.Mutex
	seen := map[core.UserID][]core.EventType{}
	bus.SubscribeAll(func(_ context.Context, e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.UserID] = append(seen[e.UserID], e.Type)
	})

	for i := 0; i < 20; i++ {
		user := core.UserID(fmt.Sprintf("user-%d", i))
		tx := core.Transaction{UserID: user, Type: core.TxPurchase, Amount: -150}
		bus.Publish(context.Background(), core.NewTransactionEvent(tx, -150))
		bus.Publish(context.Background(), core.NewAchievementUnlocked(user, core.Badge{ID: "erster_schluck"}))
	}
	bus.Close()

	for user, types := range seen {
		if len(types) != 2 || types[0] != core.EventPurchaseMade || types[1] != core.EventAchievementUnlocked {
			t.Fatalf("%s: unexpected order %v", user, types)
		}
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 users, got %d", len(seen))
	}

	bus.Publish(context.Background(), depositEvent())
}

func TestEventBusRecoversFromPanickingHandler(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	called := false
	bus.Subscribe(core.EventDepositMade, func(context.Context, core.Event) { panic("boom") })
	bus.SubscribeAll(func(context.Context, core.Event) { called = true })
	bus.Publish(context.Background(), depositEvent())
	if !called {
		t.Fatal("second handler should still run")
	}
}

func TestEventBusPublishRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		bus := NewEventBus(DispatchAsync, WithShards(2))
		var delivered atomic.Int64
		bus.SubscribeAll(func(context.Context, core.Event) { delivered.Add(1) })

		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					bus.Publish(context.Background(), depositEvent())
				}
			}()
		}
		bus.Close()
		after := delivered.Load()
		wg.Wait()

		// Close drained the queues; nothing accepted later may be delivered.
		if got := delivered.Load(); got != after {
			t.Fatalf("round %d: %d events delivered after Close returned", round, got-after)
		}
	}
}
