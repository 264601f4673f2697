package toasts

import (
	"testing"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(capacity int) (*Queue, clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewQueue(capacity, NewLedger(clock, 30*time.Second)), clock
}

func event(id string) domain.NotificationEvent {
	return domain.NotificationEvent{
		MessageID:      id,
		ConversationID: "conv-" + id,
		SenderName:     "Sender " + id,
		Body:           "hello " + id,
		AttachmentKind: domain.AttachmentNone,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID()
	}
	return out
}

func TestQueue_PushEvictsOldest(t *testing.T) {
	q, _ := newTestQueue(3)

	for _, id := range []string{"1", "2", "3"} {
		accepted, _, evicted := q.Push(event(id))
		require.True(t, accepted)
		require.Empty(t, evicted)
	}

	accepted, entry, evicted := q.Push(event("4"))
	require.True(t, accepted)
	assert.Equal(t, "4", entry.ID())
	assert.Equal(t, []string{"1"}, ids(evicted))
	assert.Equal(t, []string{"2", "3", "4"}, ids(q.List()))
}

func TestQueue_PushRejectsDuplicate(t *testing.T) {
	q, _ := newTestQueue(3)

	accepted, _, _ := q.Push(event("1"))
	require.True(t, accepted)

	accepted, _, _ = q.Push(event("1"))
	assert.False(t, accepted)
	assert.Equal(t, []string{"1"}, ids(q.List()))
}

func TestQueue_EvictedIDStaysSeen(t *testing.T) {
	q, _ := newTestQueue(1)

	q.Push(event("1"))
	q.Push(event("2"))

	accepted, _, _ := q.Push(event("1"))
	assert.False(t, accepted, "evicted id must stay suppressed within the window")
}

func TestQueue_DismissedIDStaysSeen(t *testing.T) {
	q, _ := newTestQueue(3)

	q.Push(event("1"))
	_, ok := q.Remove("1")
	require.True(t, ok)

	accepted, _, _ := q.Push(event("1"))
	assert.False(t, accepted)
}

func TestQueue_AcceptsAgainAfterWindow(t *testing.T) {
	q, clock := newTestQueue(3)

	q.Push(event("1"))
	q.Remove("1")
	clock.Advance(30 * time.Second)

	accepted, _, _ := q.Push(event("1"))
	assert.True(t, accepted)
}

func TestQueue_RemoveIsIdempotent(t *testing.T) {
	q, _ := newTestQueue(3)
	q.Push(event("1"))
	q.Push(event("2"))

	_, ok := q.Remove("1")
	assert.True(t, ok)
	_, ok = q.Remove("1")
	assert.False(t, ok)
	_, ok = q.Remove("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"2"}, ids(q.List()))
}

func TestQueue_ListIsACopy(t *testing.T) {
	q, _ := newTestQueue(3)
	q.Push(event("1"))

	list := q.List()
	list[0].Event.MessageID = "changed"

	assert.Equal(t, []string{"1"}, ids(q.List()))
}

func TestQueue_ShownAtUsesClock(t *testing.T) {
	q, clock := newTestQueue(3)
	clock.Advance(time.Minute)

	_, entry, _ := q.Push(event("1"))
	assert.Equal(t, clock.Now(), entry.ShownAt)
}
