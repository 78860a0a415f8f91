package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drinktab/achievements"
	"drinktab/analytics"
	"drinktab/core"
)

// Receipt is the outcome of a balance-changing operation.
type Receipt struct {
	Transaction core.Transaction `json:"transaction"`
	Balance     core.Money       `json:"balance"`
	Unlocked    []core.Badge     `json:"unlocked"`
}

// TabService wires storage, event bus, and the achievement rules into a cohesive API.
type TabService struct {
	storage Storage
	bus     *EventBus
	rules   RuleEngine
	builder *achievements.Builder
	locks   *userLocks
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
}

type ServiceOption func(*TabService)

// WithLocation sets the timezone used for rule evaluation and statistics.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *TabService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock stamping new transactions. A nil clock is ignored.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *TabService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *TabService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewTabService(storage Storage, bus *EventBus, rules RuleEngine, opts ...ServiceOption) *TabService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewTabService requires non-nil storage, bus, and rules")
	}
	s := &TabService{
		storage: storage,
		bus:     bus,
		rules:   rules,
		locks:   newUserLocks(),
		loc:     core.Berlin(),
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.builder = achievements.NewBuilder(storage, s.loc)
	return s
}

// DefaultRuleEngine evaluates the built-in achievement table.
func DefaultRuleEngine() RuleEngine {
	return achievements.NewEvaluator()
}

// Subscribe convenience method.
func (s *TabService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// Rules lists the achievement definitions in evaluation order.
func (s *TabService) Rules() []core.Rule { return s.rules.Rules() }

func (s *TabService) Location() *time.Location { return s.loc }

func (s *TabService) CreateUser(ctx context.Context, id core.UserID, name string) (core.User, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.User{}, err
	}
	if err := core.ValidateID(string(normalized)); err != nil {
		return core.User{}, err
	}
	if name == "" {
		name = string(normalized)
	}
	u := core.User{ID: normalized, Name: name, Created: s.now().UTC()}
	if err := s.storage.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	s.log.Info("user created", "user", normalized)
	return u, nil
}

func (s *TabService) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.User{}, err
	}
	return s.storage.GetUser(ctx, normalized)
}

func (s *TabService) ListUsers(ctx context.Context) ([]core.UserID, error) {
	return s.storage.ListUsers(ctx)
}

func (s *TabService) PutItem(ctx context.Context, item core.Item) error {
	if err := core.ValidateID(string(item.ID)); err != nil {
		return err
	}
	if item.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", core.ErrInvalidAmount)
	}
	if item.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", core.ErrInvalidAmount)
	}
	if !item.Category.Valid() {
		return fmt.Errorf("%w: category %q", core.ErrInvalidInput, item.Category)
	}
	if item.Name == "" {
		item.Name = string(item.ID)
	}
	return s.storage.PutItem(ctx, item)
}

func (s *TabService) ListItems(ctx context.Context) ([]core.Item, error) {
	return s.storage.ListItems(ctx)
}

func (s *TabService) Restock(ctx context.Context, id core.ItemID, delta int64) (core.Item, error) {
	if delta == 0 {
		return core.Item{}, fmt.Errorf("%w: delta cannot be zero", core.ErrInvalidAmount)
	}
	return s.storage.Restock(ctx, id, delta)
}

// Purchase books one unit of item against the user's tab.
func (s *TabService) Purchase(ctx context.Context, user core.UserID, item core.ItemID) (Receipt, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Receipt{}, err
	}
	it, err := s.storage.GetItem(ctx, item)
	if err != nil {
		return Receipt{}, err
	}
	if it.Stock <= 0 {
		return Receipt{}, fmt.Errorf("%w: %s", core.ErrOutOfStock, item)
	}
	return s.apply(ctx, core.Transaction{
		UserID: normalized,
		Amount: -it.Price,
		Type:   core.TxPurchase,
		Item:   it.ID,
	})
}

// Deposit credits amount cents to the user's tab.
func (s *TabService) Deposit(ctx context.Context, user core.UserID, amount core.Money) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: deposit must be positive", core.ErrInvalidAmount)
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Receipt{}, err
	}
	return s.apply(ctx, core.Transaction{
		UserID: normalized,
		Amount: amount,
		Type:   core.TxDeposit,
	})
}

func (s *TabService) apply(ctx context.Context, pending core.Transaction) (Receipt, error) {
	unlock := s.locks.lock(pending.UserID)
	defer unlock()

	pending.CreatedAt = s.now().UTC()
	c, existing, err := s.builder.Build(ctx, pending.UserID, &pending)
	if err != nil {
		return Receipt{}, err
	}
	added, err := s.rules.Evaluate(c)
	if err != nil {
		s.log.Error("achievement evaluation failed", "user", pending.UserID, "type", pending.Type, "error", err)
		return Receipt{}, fmt.Errorf("evaluate achievements: %w", err)
	}
	var merged []core.Badge
	if len(added) > 0 {
		merged = core.MergeBadges(existing, added)
	}
	tx, balance, err := s.storage.Commit(ctx, pending, merged)
	if err != nil {
		s.log.Error("commit failed", "user", pending.UserID, "type", pending.Type, "error", err)
		return Receipt{}, err
	}

	s.bus.Publish(ctx, core.NewTransactionEvent(tx, balance))
	s.publishUnlocks(ctx, tx.UserID, added)
	return Receipt{Transaction: tx, Balance: balance, Unlocked: added}, nil
}

// EvaluateAchievements re-runs the rule set without a trigger and persists
// anything newly satisfied.
func (s *TabService) EvaluateAchievements(ctx context.Context, user core.UserID) ([]core.Badge, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(normalized)
	defer unlock()

	c, existing, err := s.builder.Build(ctx, normalized, nil)
	if err != nil {
		return nil, err
	}
	added, err := s.rules.Evaluate(c)
	if err != nil {
		return nil, fmt.Errorf("evaluate achievements: %w", err)
	}
	if len(added) == 0 {
		return nil, nil
	}
	if err := s.storage.SaveUnlockedBadges(ctx, normalized, core.MergeBadges(existing, added)); err != nil {
		s.log.Error("saving badges failed", "user", normalized, "error", err)
		return nil, err
	}
	s.publishUnlocks(ctx, normalized, added)
	return added, nil
}

func (s *TabService) publishUnlocks(ctx context.Context, user core.UserID, added []core.Badge) {
	for _, b := range added {
		s.log.Info("achievement unlocked", "user", user, "badge", b.ID)
		s.bus.Publish(ctx, core.NewAchievementUnlocked(user, b))
	}
}

// Transactions returns the user's ledger, oldest first.
func (s *TabService) Transactions(ctx context.Context, user core.UserID) ([]core.Transaction, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.storage.Transactions(ctx, normalized)
}

// Stats summarizes the user's history within [from, to). Zero bounds are open.
func (s *TabService) Stats(ctx context.Context, user core.UserID, from, to time.Time) (analytics.Summary, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return analytics.Summary{}, err
	}
	txs, err := s.storage.Transactions(ctx, normalized)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(txs, s.loc, from, to), nil
}

func (s *TabService) Close() { s.bus.Close() }
