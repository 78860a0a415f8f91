package achievements

import (
	"context"
	"fmt"
	"time"

	"drinktab/core"
)

// Source provides the facts an evaluation context is built from.
type Source interface {
	Balance(ctx context.Context, user core.UserID) (core.Money, error)
	Transactions(ctx context.Context, user core.UserID) ([]core.Transaction, error)
	ItemCategories(ctx context.Context) (map[core.ItemID]core.Category, error)
	UnlockedBadges(ctx context.Context, user core.UserID) ([]core.Badge, error)
}

// Builder assembles evaluation contexts from a Source.
type Builder struct {
	src Source
	loc *time.Location
}

// NewBuilder returns a builder evaluating in loc (Berlin when nil).
func NewBuilder(src Source, loc *time.Location) *Builder {
	if loc == nil {
		loc = core.Berlin()
	}
	return &Builder{src: src, loc: loc}
}

// Build returns the context for user together with the badges unlocked so far.
//
// pending is a triggering transaction that is not yet stored: it is appended
// to the history and its amount applied to the balance, so the context
// describes the state after the trigger. Pass nil to evaluate without one.
func (b *Builder) Build(ctx context.Context, user core.UserID, pending *core.Transaction) (*core.EvalContext, []core.Badge, error) {
	bal, err := b.src.Balance(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("load balance: %w", err)
	}
	txs, err := b.src.Transactions(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}
	cats, err := b.src.ItemCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load item categories: %w", err)
	}
	unlocked, err := b.src.UnlockedBadges(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("load unlocked badges: %w", err)
	}

	history := make([]core.Transaction, 0, len(txs)+1)
	history = append(history, txs...)
	var trigger *core.Transaction
	if pending != nil {
		t := *pending
		trigger = &t
		history = append(history, t)
		if bal, err = core.AddSafe(bal, t.Amount); err != nil {
			return nil, nil, err
		}
	}
	for _, tx := range history {
		if tx.Type != core.TxPurchase {
			continue
		}
		if _, ok := cats[tx.Item]; !ok {
			return nil, nil, fmt.Errorf("transaction %d references item %q: %w", tx.ID, tx.Item, core.ErrUnknownItem)
		}
	}

	return &core.EvalContext{
		User:         core.UserFacts{Balance: bal, Unlocked: core.BadgeIDs(unlocked)},
		Transactions: history,
		Categories:   cats,
		Trigger:      trigger,
		Location:     b.loc,
	}, unlocked, nil
}
