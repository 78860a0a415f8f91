package leaderboard

import (
	"math/rand/v2"
	"sync"

	"drinktab/core"
)

// SkipList is an indexable skip list ordered by score descending, then user
// ascending. Every forward link records how many bottom-level nodes it
// skips, so ranks resolve in O(log n) like updates do.
type SkipList struct {
	mu     sync.RWMutex
	head   *node
	level  int
	size   int
	byUser map[core.UserID]*node
	coin   func() float64
}

const (
	maxLevel = 16
	promote  = 0.25
)

type link struct {
	to   *node
	span int
}

type node struct {
	e    Entry
	next [maxLevel]link
}

func NewSkipList() *SkipList {
	return &SkipList{head: &node{}, level: 1, byUser: map[core.UserID]*node{}, coin: rand.Float64}
}

// ahead reports whether a ranks before b.
func ahead(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.User < b.User
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.coin() < promote {
		lvl++
	}
	return lvl
}

// seek returns, per level, the last node ranked before e and the number of
// nodes passed to reach it.
func (s *SkipList) seek(e Entry) (prev [maxLevel]*node, passed [maxLevel]int) {
	cur, pos := s.head, 0
	for i := s.level - 1; i >= 0; i-- {
		for cur.next[i].to != nil && ahead(cur.next[i].to.e, e) {
			pos += cur.next[i].span
			cur = cur.next[i].to
		}
		prev[i], passed[i] = cur, pos
	}
	return prev, passed
}

func (s *SkipList) insertLocked(e Entry) {
	prev, passed := s.seek(e)
	lvl := s.randomLevel()
	for i := s.level; i < lvl; i++ {
		prev[i], passed[i] = s.head, 0
		s.head.next[i].span = s.size
	}
	if lvl > s.level {
		s.level = lvl
	}

	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		skipped := passed[0] - passed[i]
		n.next[i] = link{to: prev[i].next[i].to, span: prev[i].next[i].span - skipped}
		prev[i].next[i] = link{to: n, span: skipped + 1}
	}
	for i := lvl; i < s.level; i++ {
		prev[i].next[i].span++
	}
	s.byUser[e.User] = n
	s.size++
}

func (s *SkipList) removeLocked(n *node) {
	prev, _ := s.seek(n.e)
	for i := 0; i < s.level; i++ {
		if prev[i].next[i].to == n {
			prev[i].next[i] = link{to: n.next[i].to, span: prev[i].next[i].span + n.next[i].span - 1}
		} else {
			prev[i].next[i].span--
		}
	}
	for s.level > 1 && s.head.next[s.level-1].to == nil {
		s.level--
	}
	delete(s.byUser, n.e.User)
	s.size--
}

// Update inserts user or moves it to score.
func (s *SkipList) Update(user core.UserID, score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byUser[user]; ok {
		if n.e.Score == score {
			return
		}
		s.removeLocked(n)
	}
	s.insertLocked(Entry{User: user, Score: score})
}

// Increment adds delta to the user's score and returns the new score.
func (s *SkipList) Increment(user core.UserID, delta int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := delta
	if n, ok := s.byUser[user]; ok {
		score += n.e.Score
		s.removeLocked(n)
	}
	s.insertLocked(Entry{User: user, Score: score})
	return score
}

func (s *SkipList) Remove(user core.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byUser[user]; ok {
		s.removeLocked(n)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, min(n, s.size))
	for cur := s.head.next[0].to; cur != nil && len(out) < n; cur = cur.next[0].to {
		out = append(out, cur.e)
	}
	return out
}

func (s *SkipList) Get(user core.UserID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byUser[user]; ok {
		return n.e, true
	}
	return Entry{}, false
}

// Rank returns the 1-based position of user; ties share the better rank.
func (s *SkipList) Rank(user core.UserID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byUser[user]
	if !ok {
		return 0, false
	}
	// the empty user id sorts before every real one with the same score
	_, passed := s.seek(Entry{Score: n.e.Score})
	return passed[0] + 1, true
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

var _ Board = (*SkipList)(nil)
