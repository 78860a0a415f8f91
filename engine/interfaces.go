package engine

import (
	"context"

	"drinktab/achievements"
	"drinktab/core"
)

// Storage abstracts persistence for users, inventory and the transaction log.
//
// Commit appends tx (assigning its ID), applies its amount to the balance,
// decrements stock for purchases and, when badges is non-nil, replaces the
// user's unlocked badge list. All of it happens atomically or not at all.
type Storage interface {
	achievements.Source

	CreateUser(ctx context.Context, user core.User) error
	GetUser(ctx context.Context, id core.UserID) (core.User, error)
	ListUsers(ctx context.Context) ([]core.UserID, error)

	PutItem(ctx context.Context, item core.Item) error
	GetItem(ctx context.Context, id core.ItemID) (core.Item, error)
	ListItems(ctx context.Context) ([]core.Item, error)
	Restock(ctx context.Context, id core.ItemID, delta int64) (core.Item, error)

	Commit(ctx context.Context, tx core.Transaction, badges []core.Badge) (core.Transaction, core.Money, error)
	SaveUnlockedBadges(ctx context.Context, user core.UserID, badges []core.Badge) error
}

// RuleEngine decides which badges a context newly unlocks.
type RuleEngine interface {
	Evaluate(c *core.EvalContext) ([]core.Badge, error)
	Rules() []core.Rule
}
