package leaderboard

import (
	"context"

	"drinktab/core"
)

// Entry represents a score entry.
type Entry struct {
	User  core.UserID `json:"user"`
	Score int64       `json:"score"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, score int64)
	Increment(user core.UserID, delta int64) int64
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}

// Purchases ranks users by number of purchases.
type Purchases struct {
	Board
}

func NewPurchases() *Purchases { return &Purchases{Board: NewSkipList()} }

// Handle counts committed purchases; it matches the event bus handler signature.
func (p *Purchases) Handle(_ context.Context, e core.Event) {
	if e.Type != core.EventPurchaseMade {
		return
	}
	p.Increment(e.UserID, 1)
}

// Seed sets the score from a stored history.
func (p *Purchases) Seed(user core.UserID, txs []core.Transaction) {
	var n int64
	for _, tx := range txs {
		if tx.Type == core.TxPurchase {
			n++
		}
	}
	if n > 0 {
		p.Update(user, n)
	}
}
