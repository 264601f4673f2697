package toasts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/ctxlog"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

// Reason explains why a toast left the visible queue.
type Reason string

// Close reasons.
const (
	ReasonAutoDismissed Reason = "auto_dismissed"
	ReasonUserDismissed Reason = "user_dismissed"
	ReasonClicked       Reason = "clicked"
	ReasonEvicted       Reason = "evicted"
)

// Listener observes queue transitions. Calls arrive in mutation order and
// must not call back into the Manager synchronously.
type Listener interface {
	OnShow(entry Entry)
	OnHide(entry Entry, reason Reason)
}

// Config contains capacity and timing settings.
type Config struct {
	MaxVisible      int
	DisplayDuration time.Duration
	DedupWindow     time.Duration
}

// DefaultConfig returns default toast configuration.
func DefaultConfig() Config {
	return Config{
		MaxVisible:      3,
		DisplayDuration: 5 * time.Second,
		DedupWindow:     30 * time.Second,
	}
}

// Stats is a point-in-time view of a Manager.
type Stats struct {
	Visible    int
	Seen       int
	LastActive time.Time
}

// Manager owns one session's ledger and visible queue.
type Manager struct {
	config   Config
	clock    clockwork.Clock
	validate *validator.Validate

	mu         sync.Mutex
	ledger     *Ledger
	queue      *Queue
	lastActive time.Time

	// deliverMu keeps listener calls in mutation order.
	deliverMu sync.Mutex
	listeners []Listener
}

// NewManager creates a new toast manager.
func NewManager(config Config, clock clockwork.Clock, validate *validator.Validate) *Manager {
	if validate == nil {
		validate = validator.New()
	}
	ledger := NewLedger(clock, config.DedupWindow)
	return &Manager{
		config:     config,
		clock:      clock,
		validate:   validate,
		ledger:     ledger,
		queue:      NewQueue(config.MaxVisible, ledger),
		lastActive: clock.Now(),
	}
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.config
}

// AddListener registers a listener for subsequent transitions.
func (m *Manager) AddListener(l Listener) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.listeners = append(m.listeners, l)
}

type transition struct {
	entry  Entry
	shown  bool
	reason Reason
}

// Add validates the event and pushes it onto the visible queue.
// It returns false without error for duplicates inside the dedup window.
func (m *Manager) Add(ctx context.Context, event domain.NotificationEvent) (bool, error) {
	event.Normalize(m.clock.Now())

	if err := m.validate.Struct(event); err != nil {
		ctxlog.FromContext(ctx).Warn("dropping malformed notification event",
			"message_id", event.MessageID,
			"conversation_id", event.ConversationID,
			"error", err,
		)
		recordEvent(resultMalformed)
		return false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	m.mu.Lock()
	m.lastActive = m.clock.Now()
	accepted, entry, evicted := m.queue.Push(event)
	if !accepted {
		m.mu.Unlock()
		ctxlog.FromContext(ctx).Debug("duplicate notification suppressed", "message_id", event.MessageID)
		recordEvent(resultDuplicate)
		return false, nil
	}

	ts := make([]transition, 0, len(evicted)+1)
	for _, e := range evicted {
		ts = append(ts, transition{entry: e, reason: ReasonEvicted})
	}
	ts = append(ts, transition{entry: entry, shown: true})
	m.deliver(ts)

	recordEvent(resultAccepted)
	return true, nil
}

// Dismiss closes a toast on user request.
func (m *Manager) Dismiss(id string) bool {
	_, ok := m.close(id, ReasonUserDismissed)
	return ok
}

// Expire closes a toast whose display time ran out.
func (m *Manager) Expire(id string) bool {
	_, ok := m.close(id, ReasonAutoDismissed)
	return ok
}

// Click closes a toast and returns the navigation intent for its conversation.
func (m *Manager) Click(id string) (domain.Intent, bool) {
	entry, ok := m.close(id, ReasonClicked)
	if !ok {
		return domain.Intent{}, false
	}
	return domain.Intent{ConversationID: entry.Event.ConversationID}, true
}

// Intent returns the navigation intent of a visible toast without closing it.
func (m *Manager) Intent(id string) (domain.Intent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.queue.Get(id)
	if !ok {
		return domain.Intent{}, false
	}
	return domain.Intent{ConversationID: entry.Event.ConversationID}, true
}

// Forget removes id from the ledger so a corrected resend can alert again.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger.Forget(id)
}

// IsVisible reports whether the toast is currently in the queue.
func (m *Manager) IsVisible(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queue.Get(id)
	return ok
}

// List returns the visible toasts in insertion order.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.List()
}

// Observe calls fn with the visible toasts. No transition is delivered to
// listeners while fn runs, so a listener attached inside fn sees every
// later transition and none that the list already reflects. fn must not
// call back into the manager.
func (m *Manager) Observe(fn func(entries []Entry)) {
	m.mu.Lock()
	entries := m.queue.List()
	m.deliverMu.Lock()
	m.mu.Unlock()
	defer m.deliverMu.Unlock()

	fn(entries)
}

// Sweep drops expired ledger entries.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.ledger.Sweep()
	if n > 0 {
		recordLedgerExpired(n)
	}
	return n
}

// Stats returns current counters for the session.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Visible:    m.queue.Len(),
		Seen:       m.ledger.Len(),
		LastActive: m.lastActive,
	}
}

func (m *Manager) close(id string, reason Reason) (Entry, bool) {
	m.mu.Lock()
	entry, ok := m.queue.Remove(id)
	if !ok {
		m.mu.Unlock()
		return Entry{}, false
	}
	m.lastActive = m.clock.Now()
	m.deliver([]transition{{entry: entry, reason: reason}})
	return entry, true
}

// deliver must be called with m.mu held and releases it.
func (m *Manager) deliver(ts []transition) {
	m.deliverMu.Lock()
	m.mu.Unlock()
	defer m.deliverMu.Unlock()

	for _, t := range ts {
		if !t.shown {
			recordClosed(t.reason)
		}
		for _, l := range m.listeners {
			if t.shown {
				l.OnShow(t.entry)
			} else {
				l.OnHide(t.entry, t.reason)
			}
		}
	}
}
