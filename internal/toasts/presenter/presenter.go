// Package presenter adapts a session's toast queue to its viewers: it runs
// the per-toast display timers, renders cards, forwards click-through
// intents and fans transitions out to websocket streams.
package presenter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/jonboulle/clockwork"
)

// Navigator receives click-through intents for the routing layer.
type Navigator interface {
	Navigate(ctx context.Context, intent domain.Intent) error
}

type pendingTimer struct {
	timer clockwork.Timer
	seq   uint64
}

// Presenter is the presentation adapter for one session.
type Presenter struct {
	manager   *toasts.Manager
	clock     clockwork.Clock
	renderer  *Renderer
	hub       *Hub
	navigator Navigator
	display   time.Duration

	clickMu sync.Mutex

	mu     sync.Mutex
	timers map[string]pendingTimer
	seq    uint64
	closed bool
}

// New creates a presenter and registers it with the manager.
// A nil navigator sends intents to the presenter's own stream hub.
func New(manager *toasts.Manager, clock clockwork.Clock, renderer *Renderer, hub *Hub, navigator Navigator) *Presenter {
	if navigator == nil {
		navigator = hub
	}
	p := &Presenter{
		manager:   manager,
		clock:     clock,
		renderer:  renderer,
		hub:       hub,
		navigator: navigator,
		display:   manager.Config().DisplayDuration,
		timers:    make(map[string]pendingTimer),
	}
	manager.AddListener(p)
	return p
}

// OnShow starts the entry's display timer and announces the card.
func (p *Presenter) OnShow(entry toasts.Entry) {
	id := entry.ID()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if prev, ok := p.timers[id]; ok {
		prev.timer.Stop()
	}
	p.seq++
	seq := p.seq
	p.timers[id] = pendingTimer{
		timer: p.clock.AfterFunc(p.display, func() { p.expire(id, seq) }),
		seq:   seq,
	}
	p.mu.Unlock()

	card := p.renderer.Render(entry, p.display)
	p.hub.Publish(Frame{Type: FrameShown, Card: &card})
}

// OnHide cancels the entry's timer and announces the removal.
func (p *Presenter) OnHide(entry toasts.Entry, reason toasts.Reason) {
	id := entry.ID()

	p.mu.Lock()
	if pt, ok := p.timers[id]; ok {
		pt.timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()

	p.hub.Publish(Frame{Type: FrameHidden, MessageID: id, Reason: reason})
}

// expire runs when a display timer fires. A timer that was cancelled,
// superseded or outlived the presenter does nothing.
func (p *Presenter) expire(id string, seq uint64) {
	p.mu.Lock()
	pt, ok := p.timers[id]
	if p.closed || !ok || pt.seq != seq {
		p.mu.Unlock()
		return
	}
	delete(p.timers, id)
	p.mu.Unlock()

	p.manager.Expire(id)
}

// Dismiss closes a toast on user request.
func (p *Presenter) Dismiss(id string) bool {
	return p.manager.Dismiss(id)
}

// Click forwards the toast's navigation intent and then closes it, so viewers
// see the navigate frame before the hidden one.
func (p *Presenter) Click(ctx context.Context, id string) (domain.Intent, error) {
	p.clickMu.Lock()
	defer p.clickMu.Unlock()

	intent, ok := p.manager.Intent(id)
	if !ok {
		return domain.Intent{}, toasts.ErrToastNotVisible
	}

	if err := p.navigator.Navigate(ctx, intent); err != nil {
		slog.Warn("failed to forward navigation intent",
			"message_id", id,
			"conversation_id", intent.ConversationID,
			"error", err,
		)
	}
	p.manager.Click(id)
	return intent, nil
}

// Cards renders the visible toasts in display order.
func (p *Presenter) Cards() []Card {
	return p.render(p.manager.List())
}

func (p *Presenter) render(entries []toasts.Entry) []Card {
	cards := make([]Card, len(entries))
	for i, e := range entries {
		cards[i] = p.renderer.Render(e, p.display)
	}
	return cards
}

// Subscribe opens a frame subscription on the presenter's hub.
func (p *Presenter) Subscribe() *Subscription {
	return p.hub.Subscribe()
}

// SubscribeWithSnapshot opens a frame subscription together with the cards
// visible at that moment. Frames on the subscription start exactly after
// the snapshot.
func (p *Presenter) SubscribeWithSnapshot() (*Subscription, []Card) {
	var (
		sub     *Subscription
		entries []toasts.Entry
	)
	p.manager.Observe(func(es []toasts.Entry) {
		entries = es
		sub = p.hub.Subscribe()
	})

	return sub, p.render(entries)
}

// Subscribers returns the number of open stream subscriptions.
func (p *Presenter) Subscribers() int {
	return p.hub.Len()
}

// PendingTimers returns the number of armed display timers.
func (p *Presenter) PendingTimers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// Close cancels every display timer and closes all subscriptions.
// Timer callbacks that race with Close are ignored.
func (p *Presenter) Close() {
	p.mu.Lock()
	p.closed = true
	for id, pt := range p.timers {
		pt.timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()

	p.hub.Close()
}
