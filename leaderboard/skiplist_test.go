package leaderboard

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"drinktab/core"
)

func TestSkipListBasic(t *testing.T) {
	s := NewSkipList()
	s.Update(core.UserID("a"), 10)
	s.Update(core.UserID("b"), 20)
	s.Update(core.UserID("c"), 15)
	top := s.TopN(3)
	if len(top) != 3 || top[0].User != core.UserID("b") || top[1].User != core.UserID("c") || top[2].User != core.UserID("a") {
		t.Fatalf("unexpected order: %#v", top)
	}
	s.Update(core.UserID("a"), 25)
	top = s.TopN(1)
	if top[0].User != core.UserID("a") {
		t.Fatalf("top should be a, got %#v", top)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
}

func TestSkipListIncrementAndRank(t *testing.T) {
	s := NewSkipList()
	s.Increment("a", 1)
	s.Increment("b", 1)
	if got := s.Increment("b", 2); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	s.Increment("c", 1)

	if r, ok := s.Rank("b"); !ok || r != 1 {
		t.Fatalf("b should rank 1, got %d %v", r, ok)
	}
	// a and c tie on 1
	ra, _ := s.Rank("a")
	rc, _ := s.Rank("c")
	if ra != 2 || rc != 2 {
		t.Fatalf("tied users should share rank 2, got %d and %d", ra, rc)
	}
	if _, ok := s.Rank("ghost"); ok {
		t.Fatal("unknown user must not be ranked")
	}

	s.Remove("b")
	if r, _ := s.Rank("a"); r != 1 {
		t.Fatalf("a should move up to 1, got %d", r)
	}
}

func TestSkipListRankMatchesSortedOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 77))
	s := NewSkipList()
	s.coin = rng.Float64
	scores := map[core.UserID]int64{}
	for i := 0; i < 500; i++ {
		user := core.UserID(fmt.Sprintf("u%02d", rng.IntN(60)))
		switch rng.IntN(4) {
		case 0:
			s.Remove(user)
			delete(scores, user)
		case 1:
			v := rng.Int64N(10)
			s.Update(user, v)
			scores[user] = v
		default:
			scores[user] = s.Increment(user, rng.Int64N(3))
		}
	}

	want := make([]Entry, 0, len(scores))
	for u, v := range scores {
		want = append(want, Entry{User: u, Score: v})
	}
	sort.Slice(want, func(i, j int) bool { return ahead(want[i], want[j]) })

	if s.Len() != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), s.Len())
	}
	got := s.TopN(len(want) + 5)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
		better := sort.Search(len(want), func(k int) bool { return want[k].Score <= want[i].Score })
		if r, ok := s.Rank(want[i].User); !ok || r != better+1 {
			t.Fatalf("rank of %s: expected %d, got %d", want[i].User, better+1, r)
		}
	}
}

func TestPurchasesCountsEvents(t *testing.T) {
	p := NewPurchases()
	p.Seed("alice", []core.Transaction{
		{Type: core.TxPurchase}, {Type: core.TxDeposit}, {Type: core.TxPurchase},
	})
	p.Handle(context.Background(), core.NewTransactionEvent(core.Transaction{UserID: "bob", Type: core.TxPurchase, Amount: -150}, -150))
	p.Handle(context.Background(), core.NewTransactionEvent(core.Transaction{UserID: "bob", Type: core.TxDeposit, Amount: 150}, 0))
	p.Handle(context.Background(), core.NewTransactionEvent(core.Transaction{UserID: "alice", Type: core.TxPurchase, Amount: -150}, -450))

	top := p.TopN(2)
	if len(top) != 2 || top[0] != (Entry{User: "alice", Score: 3}) || top[1] != (Entry{User: "bob", Score: 1}) {
		t.Fatalf("unexpected board: %#v", top)
	}
}
