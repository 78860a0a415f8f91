package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drinktab/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func seedStore(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateUser(ctx, core.User{ID: "test-user", Name: "Test", Created: created}))
	require.NoError(t, store.PutItem(ctx, core.Item{ID: "bier", Name: "Bier", Price: 150, Stock: 1, Category: core.CategoryAlcohol}))
	require.NoError(t, store.PutItem(ctx, core.Item{ID: "mate", Name: "Mate", Price: 120, Stock: 5, Category: core.CategorySoftdrink}))
}

func TestStore_CreateAndGetUser(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)

	u, err := store.GetUser(ctx, "test-user")
	require.NoError(t, err)
	assert.Equal(t, "Test", u.Name)
	assert.Zero(t, u.Balance)
	assert.Empty(t, u.Badges)

	err = store.CreateUser(ctx, core.User{ID: "test-user"})
	assert.ErrorIs(t, err, core.ErrUserExists)

	_, err = store.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrUnknownUser)
}

func TestStore_Commit(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)

	// warm the cache, the commit must invalidate it
	_, err := store.GetUser(ctx, "test-user")
	require.NoError(t, err)

	at := time.Date(2024, time.May, 6, 10, 15, 0, 0, time.UTC)
	badges := []core.Badge{{ID: "erster_schluck", Name: "Erster Schluck", UnlockedAt: &at}}
	tx, bal, err := store.Commit(ctx, core.Transaction{UserID: "test-user", Amount: -150, Type: core.TxPurchase, Item: "bier", CreatedAt: at}, badges)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tx.ID)
	assert.Equal(t, core.Money(-150), bal)

	u, err := store.GetUser(ctx, "test-user")
	require.NoError(t, err)
	assert.Equal(t, core.Money(-150), u.Balance)
	require.Len(t, u.Badges, 1)
	assert.Equal(t, "erster_schluck", u.Badges[0].ID)

	tx, bal, err = store.Commit(ctx, core.Transaction{UserID: "test-user", Amount: 1000, Type: core.TxDeposit, CreatedAt: at.Add(time.Minute)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tx.ID)
	assert.Equal(t, core.Money(850), bal)

	txs, err := store.Transactions(ctx, "test-user")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1), txs[0].ID)
	assert.Equal(t, core.ItemID("bier"), txs[0].Item)
	assert.True(t, txs[0].CreatedAt.Equal(at))
	assert.Equal(t, core.TxDeposit, txs[1].Type)

	unlocked, err := store.UnlockedBadges(ctx, "test-user")
	require.NoError(t, err)
	assert.Len(t, unlocked, 1, "nil badges keep the stored list")

	item, err := store.GetItem(ctx, "bier")
	require.NoError(t, err)
	assert.Zero(t, item.Stock)
}

func TestStore_CommitFailuresChangeNothing(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)
	_, err := store.Restock(ctx, "bier", -1)
	require.NoError(t, err)

	_, _, err = store.Commit(ctx, core.Transaction{UserID: "test-user", Amount: -150, Type: core.TxPurchase, Item: "bier"}, []core.Badge{{ID: "x"}})
	assert.ErrorIs(t, err, core.ErrOutOfStock)
	_, _, err = store.Commit(ctx, core.Transaction{UserID: "test-user", Amount: -150, Type: core.TxPurchase, Item: "ghost"}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownItem)
	_, _, err = store.Commit(ctx, core.Transaction{UserID: "ghost", Amount: 100, Type: core.TxDeposit}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownUser)

	bal, err := store.Balance(ctx, "test-user")
	require.NoError(t, err)
	assert.Zero(t, bal)
	txs, err := store.Transactions(ctx, "test-user")
	require.NoError(t, err)
	assert.Empty(t, txs)
	badges, err := store.UnlockedBadges(ctx, "test-user")
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestStore_Items(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, core.ItemID("bier"), items[0].ID)
	assert.Equal(t, core.Money(120), items[1].Price)

	cats, err := store.ItemCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.CategorySoftdrink, cats["mate"])

	it, err := store.Restock(ctx, "mate", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(15), it.Stock)
	_, err = store.Restock(ctx, "mate", -16)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = store.Restock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, core.ErrUnknownItem)
}

func TestStore_MalformedBadgeState(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)
	require.NoError(t, client.HSet(ctx, userKey("test-user"), "badges", "{oops").Err())

	_, err := store.UnlockedBadges(ctx, "test-user")
	assert.ErrorIs(t, err, core.ErrMalformedBadgeState)

	require.NoError(t, store.SaveUnlockedBadges(ctx, "test-user", []core.Badge{{ID: "sparschwein"}}))
	badges, err := store.UnlockedBadges(ctx, "test-user")
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "sparschwein", badges[0].ID)
}

func TestStore_ListUsers(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	seedStore(t, store)
	require.NoError(t, store.CreateUser(ctx, core.User{ID: "alice", Name: "Alice"}))

	ids, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"alice", "test-user"}, ids)
}
