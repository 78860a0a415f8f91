package analytics

import (
	"context"
	"log/slog"
	"sync"

	"drinktab/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// LogHook writes one structured log line per event.
type LogHook struct{ log *slog.Logger }

func NewLogHook(l *slog.Logger) *LogHook {
	if l == nil {
		l = slog.Default()
	}
	return &LogHook{log: l}
}

func (h *LogHook) OnEvent(e core.Event) {
	attrs := []slog.Attr{
		slog.String("type", string(e.Type)),
		slog.String("user", string(e.UserID)),
		slog.String("balance", e.Balance.String()),
	}
	if e.Transaction != nil && e.Transaction.Item != "" {
		attrs = append(attrs, slog.String("item", string(e.Transaction.Item)))
	}
	if e.Badge != nil {
		attrs = append(attrs, slog.String("badge", e.Badge.ID))
	}
	h.log.LogAttrs(context.Background(), slog.LevelInfo, "tab event", attrs...)
}

// BadgeTally counts achievement unlocks per badge id.
type BadgeTally struct {
	mu      sync.RWMutex
	holders map[string]map[core.UserID]struct{}
}

func NewBadgeTally() *BadgeTally {
	return &BadgeTally{holders: make(map[string]map[core.UserID]struct{})}
}

func (t *BadgeTally) OnEvent(e core.Event) {
	if e.Type != core.EventAchievementUnlocked || e.Badge == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.holders[e.Badge.ID]
	if m == nil {
		m = make(map[core.UserID]struct{})
		t.holders[e.Badge.ID] = m
	}
	m[e.UserID] = struct{}{}
}

// Seed records users that unlocked badges before the tally started listening.
func (t *BadgeTally) Seed(user core.UserID, badges []core.Badge) {
	for _, b := range badges {
		t.OnEvent(core.Event{Type: core.EventAchievementUnlocked, UserID: user, Badge: &b})
	}
}

// Holders returns how many distinct users unlocked the badge.
func (t *BadgeTally) Holders(badgeID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.holders[badgeID])
}

// Counts returns a snapshot of unlock counts keyed by badge id.
func (t *BadgeTally) Counts() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.holders))
	for id, m := range t.holders {
		out[id] = len(m)
	}
	return out
}
