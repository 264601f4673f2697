// Package toasts implements the per-session toast core: a deduplication
// ledger of recently seen message ids, a bounded queue of visible toasts and
// the Manager that owns both.
package toasts

import (
	"container/heap"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ledger remembers message ids for a fixed window after they were first seen.
// Expired ids are dropped by Sweep; HasSeen ignores them even before a sweep.
// Ledger is not safe for concurrent use.
type Ledger struct {
	clock  clockwork.Clock
	window time.Duration
	expiry map[string]time.Time
	queue  expiryQueue
}

// NewLedger creates a ledger with the given retention window.
func NewLedger(clock clockwork.Clock, window time.Duration) *Ledger {
	return &Ledger{
		clock:  clock,
		window: window,
		expiry: make(map[string]time.Time),
	}
}

// HasSeen reports whether id was marked within the current window.
func (l *Ledger) HasSeen(id string) bool {
	exp, ok := l.expiry[id]
	return ok && l.clock.Now().Before(exp)
}

// MarkSeen records id. Marking an id that is already live does not extend it.
func (l *Ledger) MarkSeen(id string) {
	if l.HasSeen(id) {
		return
	}
	exp := l.clock.Now().Add(l.window)
	l.expiry[id] = exp
	heap.Push(&l.queue, expiryItem{id: id, expiresAt: exp})
}

// Forget drops id before its window ends.
func (l *Ledger) Forget(id string) {
	delete(l.expiry, id)
}

// Sweep removes expired ids and returns how many were removed.
func (l *Ledger) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for l.queue.Len() > 0 && !l.queue[0].expiresAt.After(now) {
		item := heap.Pop(&l.queue).(expiryItem)
		// Skip entries superseded by Forget or a later MarkSeen.
		if exp, ok := l.expiry[item.id]; ok && exp.Equal(item.expiresAt) {
			delete(l.expiry, item.id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked ids, including expired ones not yet swept.
func (l *Ledger) Len() int {
	return len(l.expiry)
}

type expiryItem struct {
	id        string
	expiresAt time.Time
}

type expiryQueue []expiryItem

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) {
	*q = append(*q, x.(expiryItem))
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
