package presenter

import (
	"context"
	"sync"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
)

// FrameType identifies a stream frame.
type FrameType string

// Frame types.
const (
	FrameSnapshot FrameType = "snapshot"
	FrameShown    FrameType = "shown"
	FrameHidden   FrameType = "hidden"
	FrameNavigate FrameType = "navigate"
)

// Frame is a message pushed to stream subscribers.
type Frame struct {
	Type      FrameType      `json:"type"`
	Cards     []Card         `json:"cards,omitempty"`
	Card      *Card          `json:"card,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Reason    toasts.Reason  `json:"reason,omitempty"`
	Intent    *domain.Intent `json:"intent,omitempty"`
}

// Hub fans frames out to subscribers. A subscriber that falls behind loses
// frames instead of blocking the publisher.
type Hub struct {
	buffer int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer frames.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription is a single subscriber's frame channel.
type Subscription struct {
	hub *Hub
	ch  chan Frame
}

// Frames returns the subscription channel. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Frames() <-chan Frame {
	return s.ch
}

// Close detaches the subscription from its hub.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s]; ok {
		delete(s.hub.subs, s)
		close(s.ch)
		streamSubscribers.Dec()
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub returns
// an already closed subscription.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan Frame, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	streamSubscribers.Inc()
	return s
}

// Publish delivers f to every subscriber that has room for it.
func (h *Hub) Publish(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- f:
		default:
			recordFrameDropped(f.Type)
		}
	}
}

// Navigate publishes a navigation intent to the session's viewers.
func (h *Hub) Navigate(_ context.Context, intent domain.Intent) error {
	h.Publish(Frame{Type: FrameNavigate, Intent: &intent})
	return nil
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription. Later subscriptions are closed on creation.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
		streamSubscribers.Dec()
	}
}
