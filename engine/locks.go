package engine

import (
	"sync"

	"drinktab/core"
)

// userLocks serializes balance-changing flows per user so that at most one
// badge merge per user is in flight.
type userLocks struct {
	mu    sync.Mutex
	locks map[core.UserID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[core.UserID]*userLock)}
}

// lock blocks until user is free and returns the unlock func.
func (l *userLocks) lock(user core.UserID) func() {
	l.mu.Lock()
	ul := l.locks[user]
	if ul == nil {
		ul = &userLock{}
		l.locks[user] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, user)
		}
		l.mu.Unlock()
	}
}
