package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"drinktab/core"
)

// Store persists the whole tab to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data fileData
}

type fileData struct {
	Users  map[core.UserID]*fileUser `json:"users"`
	Items  map[core.ItemID]core.Item `json:"items"`
	NextTx int64                     `json:"next_tx"`
}

type fileUser struct {
	Name         string             `json:"name"`
	Balance      core.Money         `json:"balance"`
	Created      time.Time          `json:"created"`
	Transactions []core.Transaction `json:"transactions"`
	// UnlockedBadges is the JSON encoded badge list, decoded on read.
	UnlockedBadges string `json:"unlocked_badges"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: fileData{Users: map[core.UserID]*fileUser{}, Items: map[core.ItemID]core.Item{}}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw fileData
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	for k, v := range raw.Users {
		s.data.Users[k] = v
	}
	for k, v := range raw.Items {
		s.data.Items[k] = v
	}
	s.data.NextTx = raw.NextTx
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) (*fileUser, error) {
	u, ok := s.data.Users[user]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownUser, user)
	}
	return u, nil
}

func decodeBadges(raw string) ([]core.Badge, error) {
	if raw == "" {
		return nil, nil
	}
	var out []core.Badge
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBadgeState, err)
	}
	return out, nil
}

func encodeBadges(badges []core.Badge) (string, error) {
	b, err := json.Marshal(badges)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) CreateUser(_ context.Context, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[user.ID]; ok {
		return fmt.Errorf("%w: %s", core.ErrUserExists, user.ID)
	}
	s.data.Users[user.ID] = &fileUser{Name: user.Name, Balance: user.Balance, Created: user.Created}
	if err := s.persist(); err != nil {
		delete(s.data.Users, user.ID)
		return err
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return core.User{}, err
	}
	badges, err := decodeBadges(u.UnlockedBadges)
	if err != nil {
		return core.User{}, err
	}
	return core.User{ID: id, Name: u.Name, Balance: u.Balance, Badges: badges, Created: u.Created}, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]core.UserID, 0, len(s.data.Users))
	for id := range s.data.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) Balance(_ context.Context, user core.UserID) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(user)
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

func (s *Store) Transactions(_ context.Context, user core.UserID) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(user)
	if err != nil {
		return nil, err
	}
	return append([]core.Transaction(nil), u.Transactions...), nil
}

func (s *Store) UnlockedBadges(_ context.Context, user core.UserID) ([]core.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(user)
	if err != nil {
		return nil, err
	}
	return decodeBadges(u.UnlockedBadges)
}

func (s *Store) SaveUnlockedBadges(_ context.Context, user core.UserID, badges []core.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(user)
	if err != nil {
		return err
	}
	enc, err := encodeBadges(badges)
	if err != nil {
		return err
	}
	prev := u.UnlockedBadges
	u.UnlockedBadges = enc
	if err := s.persist(); err != nil {
		u.UnlockedBadges = prev
		return err
	}
	return nil
}

func (s *Store) ItemCategories(_ context.Context) (map[core.ItemID]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.ItemID]core.Category, len(s.data.Items))
	for id, it := range s.data.Items {
		out[id] = it.Category
	}
	return out, nil
}

func (s *Store) PutItem(_ context.Context, item core.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data.Items[item.ID]
	s.data.Items[item.ID] = item
	if err := s.persist(); err != nil {
		if existed {
			s.data.Items[item.ID] = prev
		} else {
			delete(s.data.Items, item.ID)
		}
		return err
	}
	return nil
}

func (s *Store) GetItem(_ context.Context, id core.ItemID) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.Items[id]
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	return it, nil
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Item, 0, len(s.data.Items))
	for _, it := range s.data.Items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Restock(_ context.Context, id core.ItemID, delta int64) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.Items[id]
	if !ok {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	if it.Stock+delta < 0 {
		return core.Item{}, fmt.Errorf("%w: stock of %s would become negative", core.ErrInvalidAmount, id)
	}
	prev := it
	it.Stock += delta
	s.data.Items[id] = it
	if err := s.persist(); err != nil {
		s.data.Items[id] = prev
		return core.Item{}, err
	}
	return it, nil
}

// Commit applies tx in memory and persists the file; the cache is rolled
// back when the write fails.
func (s *Store) Commit(_ context.Context, tx core.Transaction, badges []core.Badge) (core.Transaction, core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(tx.UserID)
	if err != nil {
		return core.Transaction{}, 0, err
	}
	next, err := core.AddSafe(u.Balance, tx.Amount)
	if err != nil {
		return core.Transaction{}, 0, err
	}
	var enc string
	if badges != nil {
		if enc, err = encodeBadges(badges); err != nil {
			return core.Transaction{}, 0, err
		}
	}

	prevUser := *u
	prevNext := s.data.NextTx
	var prevItem core.Item
	if tx.Type == core.TxPurchase {
		it, ok := s.data.Items[tx.Item]
		if !ok {
			return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrUnknownItem, tx.Item)
		}
		if it.Stock <= 0 {
			return core.Transaction{}, 0, fmt.Errorf("%w: %s", core.ErrOutOfStock, tx.Item)
		}
		prevItem = it
		it.Stock--
		s.data.Items[tx.Item] = it
	}

	s.data.NextTx++
	tx.ID = s.data.NextTx
	u.Transactions = append(u.Transactions, tx)
	u.Balance = next
	if badges != nil {
		u.UnlockedBadges = enc
	}
	if err := s.persist(); err != nil {
		*u = prevUser
		s.data.NextTx = prevNext
		if tx.Type == core.TxPurchase {
			s.data.Items[tx.Item] = prevItem
		}
		return core.Transaction{}, 0, err
	}
	return tx, next, nil
}
