package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// UserID uniquely identifies a tab holder.
type UserID string

// ItemID identifies a buyable item.
type ItemID string

// Money is an amount in minor currency units (cents). -10.00 is Money(-1000).
type Money int64

// String renders the amount with two decimals, e.g. "-10.01".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseMoney parses a decimal amount such as "12", "12.5" or "-3.20" into cents.
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	digits := strings.TrimPrefix(raw, "-")
	whole, frac, hasFrac := strings.Cut(digits, ".")
	if !allDigits(whole) || (hasFrac && (!allDigits(frac) || len(frac) > 2)) {
		return 0, fmt.Errorf("%w: %q is not a money amount", ErrInvalidAmount, s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}
	v := units*100 + cents
	if strings.HasPrefix(raw, "-") {
		v = -v
	}
	return Money(v), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TransactionType distinguishes purchases from deposits.
type TransactionType string

const (
	TxPurchase TransactionType = "PURCHASE"
	TxDeposit  TransactionType = "DEPOSIT"
)

// Category classifies a buyable item.
type Category string

const (
	CategoryAlcohol   Category = "alcohol"
	CategorySoftdrink Category = "softdrink"
	CategoryFood      Category = "food"
	CategorySnack     Category = "snack"
	CategoryOther     Category = "other"
)

// Categories lists every known item category.
var Categories = []Category{CategoryAlcohol, CategorySoftdrink, CategoryFood, CategorySnack, CategoryOther}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Transaction is an immutable balance change. Amount is negative for purchases.
type Transaction struct {
	ID        int64           `json:"id" db:"id"`
	UserID    UserID          `json:"user_id" db:"user_id"`
	Amount    Money           `json:"amount" db:"amount"`
	Type      TransactionType `json:"type" db:"type"`
	Item      ItemID          `json:"item,omitempty" db:"item"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Item is a buyable product of the tab inventory.
type Item struct {
	ID       ItemID   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Price    Money    `json:"price" db:"price"`
	Stock    int64    `json:"stock" db:"stock"`
	Category Category `json:"category" db:"category"`
}

// Badge is an unlockable achievement. UnlockedAt is nil until unlocked.
type Badge struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	UnlockedAt  *time.Time `json:"unlocked_at"`
}

// User is a snapshot of a tab holder.
// Implementations should return deep copies to maintain immutability guarantees.
type User struct {
	ID      UserID    `json:"id"`
	Name    string    `json:"name"`
	Balance Money     `json:"balance"`
	Badges  []Badge   `json:"badges"`
	Created time.Time `json:"created"`
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	cp := u
	cp.Badges = CloneBadges(u.Badges)
	return cp
}

// CloneBadges copies a badge list including the unlock timestamps.
func CloneBadges(in []Badge) []Badge {
	if in == nil {
		return nil
	}
	out := make([]Badge, len(in))
	for i, b := range in {
		out[i] = b
		if b.UnlockedAt != nil {
			ts := *b.UnlockedAt
			out[i].UnlockedAt = &ts
		}
	}
	return out
}

// MergeBadges returns existing followed by the added badges whose ids are not
// yet present. Neither input is modified.
func MergeBadges(existing, added []Badge) []Badge {
	seen := make(map[string]struct{}, len(existing)+len(added))
	out := make([]Badge, 0, len(existing)+len(added))
	for _, list := range [][]Badge{existing, added} {
		for _, b := range list {
			if _, ok := seen[b.ID]; ok {
				continue
			}
			seen[b.ID] = struct{}{}
			out = append(out, b)
		}
	}
	return CloneBadges(out)
}

// BadgeIDs returns the set of ids in a badge list.
func BadgeIDs(badges []Badge) map[string]struct{} {
	ids := make(map[string]struct{}, len(badges))
	for _, b := range badges {
		ids[b.ID] = struct{}{}
	}
	return ids
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base Money, delta Money) (Money, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateID ensures a non-empty id made of alnum, dash and underscore.
func ValidateID(id string) error {
	s := strings.TrimSpace(id)
	if s == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("%w: invalid id %q", ErrInvalidInput, id)
	}
	return nil
}
