package core

import "errors"

var (
	ErrUnknownUser = errors.New("unknown user")
	ErrUserExists  = errors.New("user already exists")
	ErrUnknownItem = errors.New("unknown item")
	ErrOutOfStock  = errors.New("item out of stock")
	// ErrInvalidAmount is returned for non-positive deposits and prices.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput covers malformed ids and unknown categories.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedBadgeState means the stored badge list could not be decoded.
	// It must never be treated as "no badges unlocked".
	ErrMalformedBadgeState = errors.New("malformed badge state")
)
