package achievements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drinktab/core"
)

var testCategories = map[core.ItemID]core.Category{
	"bier":   core.CategoryAlcohol,
	"mate":   core.CategorySoftdrink,
	"pizza":  core.CategoryFood,
	"chips":  core.CategorySnack,
	"kippen": core.CategoryOther,
}

// local builds an instant from Berlin wall-clock fields.
func local(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, core.Berlin())
}

type ledger struct {
	txs    []core.Transaction
	nextID int64
}

func (h *ledger) purchase(item core.ItemID, at time.Time) core.Transaction {
	h.nextID++
	tx := core.Transaction{ID: h.nextID, UserID: "alice", Amount: -150, Type: core.TxPurchase, Item: item, CreatedAt: at.UTC()}
	h.txs = append(h.txs, tx)
	return tx
}

func (h *ledger) deposit(amount core.Money, at time.Time) core.Transaction {
	h.nextID++
	tx := core.Transaction{ID: h.nextID, UserID: "alice", Amount: amount, Type: core.TxDeposit, CreatedAt: at.UTC()}
	h.txs = append(h.txs, tx)
	return tx
}

// purchasesAt adds one beer per instant.
func (h *ledger) purchasesAt(ts ...time.Time) {
	for _, t := range ts {
		h.purchase("bier", t)
	}
}

func (h *ledger) context(balance core.Money, trigger *core.Transaction, unlocked ...string) *core.EvalContext {
	ids := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		ids[id] = struct{}{}
	}
	return &core.EvalContext{
		User:         core.UserFacts{Balance: balance, Unlocked: ids},
		Transactions: append([]core.Transaction(nil), h.txs...),
		Categories:   testCategories,
		Trigger:      trigger,
		Location:     core.Berlin(),
	}
}

func checkRule(t *testing.T, id string, c *core.EvalContext) bool {
	t.Helper()
	r, ok := Lookup(id)
	require.True(t, ok, "rule %s not defined", id)
	got, err := r.Check(c)
	require.NoError(t, err)
	return got
}

func minutesAfter(base time.Time, mins ...float64) []time.Time {
	out := make([]time.Time, len(mins))
	for i, m := range mins {
		out[i] = base.Add(time.Duration(m * float64(time.Minute)))
	}
	return out
}
