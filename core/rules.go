package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// UserFacts is the user part of an evaluation context.
type UserFacts struct {
	Balance  Money
	Unlocked map[string]struct{}
}

// EvalContext is the read-only input a rule is checked against.
// Transactions include Trigger when one is set, and Balance already reflects it.
type EvalContext struct {
	User         UserFacts
	Transactions []Transaction
	Categories   map[ItemID]Category
	Trigger      *Transaction
	Location     *time.Location
}

// Rule is a named achievement predicate. Rules are stateless and must not
// depend on each other.
type Rule struct {
	ID          string
	Name        string
	Description string
	Check       func(c *EvalContext) (bool, error)
}

// Badge returns the locked badge described by the rule.
func (r Rule) Badge() Badge {
	return Badge{ID: r.ID, Name: r.Name, Description: r.Description}
}

// Local converts an instant into the context's zone.
func (c *EvalContext) Local(t time.Time) LocalTime { return Localize(t, c.Location) }

// TriggerIs reports whether the triggering transaction exists and has type typ.
func (c *EvalContext) TriggerIs(typ TransactionType) bool {
	return c.Trigger != nil && c.Trigger.Type == typ
}

// BalanceBefore is the balance prior to applying the trigger.
func (c *EvalContext) BalanceBefore() Money {
	if c.Trigger == nil {
		return c.User.Balance
	}
	return c.User.Balance - c.Trigger.Amount
}

// Count returns the number of transactions of the given type.
func (c *EvalContext) Count(typ TransactionType) int {
	n := 0
	for _, tx := range c.Transactions {
		if tx.Type == typ {
			n++
		}
	}
	return n
}

// CategoryOf resolves the category of a purchase. A purchase whose item is
// missing from the lookup is a data-integrity error.
func (c *EvalContext) CategoryOf(tx Transaction) (Category, error) {
	cat, ok := c.Categories[tx.Item]
	if !ok {
		return "", fmt.Errorf("transaction %d references item %q: %w", tx.ID, tx.Item, ErrUnknownItem)
	}
	return cat, nil
}

// Sorted returns the transactions ordered by time, ties broken by id.
func (c *EvalContext) Sorted() []Transaction {
	return SortTransactions(c.Transactions)
}

// SortedPurchases returns only purchases, ordered by time.
func (c *EvalContext) SortedPurchases() []Transaction {
	out := make([]Transaction, 0, len(c.Transactions))
	for _, tx := range c.Transactions {
		if tx.Type == TxPurchase {
			out = append(out, tx)
		}
	}
	sortInPlace(out)
	return out
}

// SortTransactions returns a chronologically sorted copy.
func SortTransactions(in []Transaction) []Transaction {
	out := append([]Transaction(nil), in...)
	sortInPlace(out)
	return out
}

// sortInPlace orders by CreatedAt, then by ID. An uncommitted transaction
// (ID 0) is the newest one, so it goes after stored ids at the same instant.
func sortInPlace(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return commitOrder(txs[i].ID) < commitOrder(txs[j].ID)
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

func commitOrder(id int64) int64 {
	if id == 0 {
		return math.MaxInt64
	}
	return id
}
