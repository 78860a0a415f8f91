package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"drinktab/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord

	itemsMu sync.RWMutex
	items   map[core.ItemID]core.Item

	nextTx atomic.Int64
}

type userRecord struct {
	mu   sync.Mutex
	user core.User
	txs  []core.Transaction
}

func New() *Store { return &Store{items: map[core.ItemID]core.Item{}} }

func (s *Store) record(user core.UserID) (*userRecord, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	return v.(*userRecord), nil
}

func (s *Store) CreateUser(_ context.Context, user core.User) error {
	rec := &userRecord{user: user.Clone()}
	if _, loaded := s.users.LoadOrStore(user.ID, rec); loaded {
		return fmt.Errorf("%w: %s", core.ErrUserExists, user.ID)
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	rec, err := s.record(id)
	if err != nil {
		return core.User{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user.Clone(), nil
}

// ListUsers returns all user ids in ascending order.
func (s *Store) ListUsers(_ context.Context) ([]core.UserID, error) {
	var ids []core.UserID
	s.users.Range(func(k, _ any) bool {
		ids = append(ids, k.(core.UserID))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) Balance(_ context.Context, user core.UserID) (core.Money, error) {
	rec, err := s.record(user)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user.Balance, nil
}

func (s *Store) Transactions(_ context.Context, user core.UserID) ([]core.Transaction, error) {
	rec, err := s.record(user)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]core.Transaction(nil), rec.txs...), nil
}

func (s *Store) UnlockedBadges(_ context.Context, user core.UserID) ([]core.Badge, error) {
	rec, err := s.record(user)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return core.CloneBadges(rec.user.Badges), nil
}

func (s *Store) SaveUnlockedBadges(_ context.Context, user core.UserID, badges []core.Badge) error {
	rec, err := s.record(user)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.user.Badges = core.CloneBadges(badges)
	return nil
}

func (s *Store) ItemCategories(_ context.Context) (map[core.ItemID]core.Category, error) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	out := make(map[core.ItemID]core.Category, len(s.items))
	for id, it := range s.items {
		out[id] = it.Category
	}
	return out, nil
}

func (s *Store) PutItem(_ context.Context, item core.Item) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *Store) GetItem(_ context.Context, id core.ItemID) (core.Item, error) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	return it, nil
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()
	out := make([]core.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Restock(_ context.Context, id core.ItemID, delta int64) (core.Item, error) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	if it.Stock+delta < 0 {
		return core.Item{}, fmt.Errorf("%w: stock of %s would become negative", core.ErrInvalidAmount, id)
	}
	it.Stock += delta
	s.items[id] = it
	return it, nil
}

func (s *Store) Commit(_ context.Context, tx core.Transaction, badges []core.Badge) (core.Transaction, core.Money, error) {
	rec, err := s.record(tx.UserID)
	if err != nil {
		return core.Transaction{}, 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, err := core.AddSafe(rec.user.Balance, tx.Amount)
	if err != nil {
		return core.Transaction{}, 0, err
	}
	if tx.Type == core.TxPurchase {
		s.itemsMu.Lock()
		defer s.itemsMu.Unlock()
		it, ok := s.items[tx.Item]
		if !ok {
			return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrUnknownItem, tx.Item)
		}
		if it.Stock <= 0 {
			return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrOutOfStock, tx.Item)
		}
		it.Stock--
		s.items[tx.Item] = it
	}

	tx.ID = s.nextTx.Add(1)
	rec.txs = append(rec.txs, tx)
	rec.user.Balance = next
	if badges != nil {
		rec.user.Badges = core.CloneBadges(badges)
	}
	return tx, next, nil
}

var _ interface {
	Balance(context.Context, core.UserID) (core.Money, error)
	Transactions(context.Context, core.UserID) ([]core.Transaction, error)
	ItemCategories(context.Context) (map[core.ItemID]core.Category, error)
	UnlockedBadges(context.Context, core.UserID) ([]core.Badge, error)
	SaveUnlockedBadges(context.Context, core.UserID, []core.Badge) error
	Commit(context.Context, core.Transaction, []core.Badge) (core.Transaction, core.Money, error)
} = (*Store)(nil)
