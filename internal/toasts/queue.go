package toasts

import (
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
)

// Entry is a visible toast.
type Entry struct {
	Event   domain.NotificationEvent
	ShownAt time.Time
}

// ID returns the entry's message id.
func (e Entry) ID() string {
	return e.Event.MessageID
}

// Queue is the ordered, bounded list of visible toasts. It consults the
// ledger so that an id is shown at most once per dedup window.
// Queue is not safe for concurrent use.
type Queue struct {
	capacity int
	ledger   *Ledger
	entries  []Entry
}

// NewQueue creates a queue holding at most capacity entries.
func NewQueue(capacity int, ledger *Ledger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		ledger:   ledger,
		entries:  make([]Entry, 0, capacity+1),
	}
}

// Push appends the event unless its id was already seen. When the queue
// grows past capacity the oldest entries are evicted and returned. Evicted
// ids stay in the ledger.
func (q *Queue) Push(event domain.NotificationEvent) (accepted bool, entry Entry, evicted []Entry) {
	if q.ledger.HasSeen(event.MessageID) {
		return false, Entry{}, nil
	}
	q.ledger.MarkSeen(event.MessageID)

	entry = Entry{Event: event, ShownAt: q.ledger.clock.Now()}
	q.entries = append(q.entries, entry)

	if over := len(q.entries) - q.capacity; over > 0 {
		evicted = make([]Entry, over)
		copy(evicted, q.entries[:over])
		q.entries = append(q.entries[:0], q.entries[over:]...)
	}
	return true, entry, evicted
}

// Remove drops the entry with the given id. Removing an absent id is a no-op.
func (q *Queue) Remove(id string) (Entry, bool) {
	for i, e := range q.entries {
		if e.ID() == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// Get returns the visible entry with the given id.
func (q *Queue) Get(id string) (Entry, bool) {
	for _, e := range q.entries {
		if e.ID() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns the visible entries in insertion order.
func (q *Queue) List() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of visible entries.
func (q *Queue) Len() int {
	return len(q.entries)
}
