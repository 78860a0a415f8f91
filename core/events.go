package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventPurchaseMade        EventType = "purchase_made"
	EventDepositMade         EventType = "deposit_made"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)

// Event represents an immutable domain event.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id"`
	Transaction *Transaction   `json:"transaction,omitempty"`
	Balance     Money          `json:"balance"`
	Badge       *Badge         `json:"badge,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewTransactionEvent describes a committed purchase or deposit.
func NewTransactionEvent(tx Transaction, balance Money) Event {
	typ := EventDepositMade
	if tx.Type == TxPurchase {
		typ = EventPurchaseMade
	}
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: tx.UserID, Transaction: &tx, Balance: balance}
}

func NewAchievementUnlocked(user UserID, badge Badge) Event {
	b := CloneBadges([]Badge{badge})[0]
	return Event{ID: uuid.NewString(), Type: EventAchievementUnlocked, Time: time.Now().UTC(), UserID: user, Badge: &b}
}
