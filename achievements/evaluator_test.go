package achievements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinktab/core"
)

var fixedNow = time.Date(2024, time.May, 7, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(opts ...EvaluatorOption) *Evaluator {
	return NewEvaluator(append([]EvaluatorOption{WithNow(func() time.Time { return fixedNow })}, opts...)...)
}

func ids(badges []core.Badge) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = b.ID
	}
	return out
}

func TestEvaluateFirstPurchase(t *testing.T) {
	var l ledger
	tx := l.purchase("bier", local(2024, time.May, 6, 12, 15, 0))
	got, err := newTestEvaluator().Evaluate(l.context(-150, &tx))
	require.NoError(t, err)
	assert.Equal(t, []string{"erster_schluck", "mittagspause"}, ids(got))
	for _, b := range got {
		require.NotNil(t, b.UnlockedAt)
		assert.True(t, b.UnlockedAt.Equal(fixedNow))
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	var l ledger
	l.purchase("mate", local(2024, time.May, 6, 7, 0, 0))
	dep := l.deposit(2000, local(2024, time.May, 6, 8, 0, 0))
	c := l.context(1850, &dep)
	ev := newTestEvaluator()

	first, err := ev.Evaluate(c)
	require.NoError(t, err)
	second, err := ev.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Empty(t, c.User.Unlocked, "context must not be mutated")
}

func TestEvaluateSkipsUnlocked(t *testing.T) {
	var l ledger
	tx := l.purchase("bier", local(2024, time.May, 6, 12, 15, 0))
	got, err := newTestEvaluator().Evaluate(l.context(-150, &tx, "erster_schluck", "mittagspause"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEvaluateSkippedRuleIsNotChecked(t *testing.T) {
	calls := 0
	rules := []core.Rule{{ID: "boom", Name: "Boom", Description: "d", Check: func(*core.EvalContext) (bool, error) {
		calls++
		return false, errors.New("must not run")
	}}}
	var l ledger
	got, err := newTestEvaluator(WithRules(rules)).Evaluate(l.context(0, nil, "boom"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, calls)
}

func TestEvaluateErrorAbortsBatch(t *testing.T) {
	var l ledger
	tx := l.purchase("ghost", local(2024, time.May, 6, 12, 15, 0))
	got, err := newTestEvaluator().Evaluate(l.context(-150, &tx))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownItem))
	assert.Nil(t, got)
}

func TestEvaluateMetaUsesPriorUnlocksOnly(t *testing.T) {
	// nine prior unlocks plus several new ones must not unlock "sammler" in the same batch
	var l ledger
	tx := l.purchase("bier", local(2024, time.May, 6, 12, 15, 0))
	prior := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	got, err := newTestEvaluator().Evaluate(l.context(-150, &tx, prior...))
	require.NoError(t, err)
	assert.NotContains(t, ids(got), "sammler")
}

type fakeSource struct {
	balance  core.Money
	txs      []core.Transaction
	cats     map[core.ItemID]core.Category
	badges   []core.Badge
	badgeErr error
}

func (f *fakeSource) Balance(context.Context, core.UserID) (core.Money, error) { return f.balance, nil }
func (f *fakeSource) Transactions(context.Context, core.UserID) ([]core.Transaction, error) {
	return f.txs, nil
}
func (f *fakeSource) ItemCategories(context.Context) (map[core.ItemID]core.Category, error) {
	return f.cats, nil
}
func (f *fakeSource) UnlockedBadges(context.Context, core.UserID) ([]core.Badge, error) {
	return f.badges, f.badgeErr
}

func TestBuilderAppliesPendingTrigger(t *testing.T) {
	var l ledger
	l.purchase("bier", local(2024, time.May, 6, 20, 0, 0))
	src := &fakeSource{balance: -1500, txs: l.txs, cats: testCategories, badges: []core.Badge{{ID: "erster_schluck"}}}

	pending := core.Transaction{UserID: "alice", Amount: 2000, Type: core.TxDeposit, CreatedAt: fixedNow}
	c, unlocked, err := NewBuilder(src, nil).Build(context.Background(), "alice", &pending)
	require.NoError(t, err)
	assert.Equal(t, core.Money(500), c.User.Balance)
	assert.Equal(t, core.Money(-1500), c.BalanceBefore())
	assert.Len(t, c.Transactions, 2)
	assert.Equal(t, pending, *c.Trigger)
	assert.Contains(t, c.User.Unlocked, "erster_schluck")
	assert.Len(t, unlocked, 1)
	assert.Len(t, src.txs, 1, "source history must not grow")

	got, err := newTestEvaluator().Evaluate(c)
	require.NoError(t, err)
	assert.Contains(t, ids(got), "wendepunkt")
}

func TestBuilderRejectsUnknownItem(t *testing.T) {
	src := &fakeSource{cats: testCategories}
	pending := core.Transaction{UserID: "alice", Amount: -100, Type: core.TxPurchase, Item: "ghost", CreatedAt: fixedNow}
	_, _, err := NewBuilder(src, nil).Build(context.Background(), "alice", &pending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownItem))
}

func TestBuilderPropagatesMalformedBadgeState(t *testing.T) {
	src := &fakeSource{cats: testCategories, badgeErr: core.ErrMalformedBadgeState}
	_, _, err := NewBuilder(src, nil).Build(context.Background(), "alice", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedBadgeState))
}
