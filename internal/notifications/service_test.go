package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, config Config, history HistoryRepository) (*Service, clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	svc, err := NewService(config, clock, nil, history)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)
	return svc, clock
}

func chatEvent(id string) domain.NotificationEvent {
	return domain.NotificationEvent{
		MessageID:      id,
		ConversationID: "conv-" + id,
		SenderID:       "u-42",
		SenderName:     "sara benali",
		Body:           "hello " + id,
	}
}

func TestService_Ingest(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig(), nil)
	ctx := context.Background()

	accepted, id, err := svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, "m1", id)

	accepted, _, err = svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	assert.False(t, accepted, "duplicate must be suppressed")

	accepted, _, err = svc.Ingest(ctx, "user-2", chatEvent("m1"))
	require.NoError(t, err)
	assert.True(t, accepted, "sessions keep separate ledgers")

	cards := svc.Cards("user-1")
	require.Len(t, cards, 1)
	assert.Equal(t, "Sara Benali", cards[0].Title)
	assert.Equal(t, 2, svc.Len())
}

func TestService_IngestDerivesMessageID(t *testing.T) {
	svc, clock := newTestService(t, DefaultConfig(), nil)

	event := chatEvent("")
	accepted, id, err := svc.Ingest(context.Background(), "user-1", event)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, domain.DeriveMessageID(event.ConversationID, event.SenderID, clock.Now()), id)
}

func TestService_IngestMalformed(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig(), nil)

	event := chatEvent("m1")
	event.ConversationID = ""

	accepted, _, err := svc.Ingest(context.Background(), "user-1", event)
	require.ErrorIs(t, err, toasts.ErrMalformedEvent)
	assert.False(t, accepted)
	assert.Empty(t, svc.Cards("user-1"))
}

func TestService_IngestRateLimited(t *testing.T) {
	config := DefaultConfig()
	config.IngestRate = 1
	config.IngestBurst = 2
	svc, clock := newTestService(t, config, nil)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		_, _, err := svc.Ingest(ctx, "user-1", chatEvent(id))
		require.NoError(t, err)
	}

	_, _, err := svc.Ingest(ctx, "user-1", chatEvent("m3"))
	require.ErrorIs(t, err, ErrRateLimited)

	clock.Advance(time.Second)
	_, _, err = svc.Ingest(ctx, "user-1", chatEvent("m3"))
	assert.NoError(t, err)
}

func TestService_ClickAndDismiss(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig(), nil)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		_, _, err := svc.Ingest(ctx, "user-1", chatEvent(id))
		require.NoError(t, err)
	}

	intent, err := svc.Click(ctx, "user-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "conv-m1", intent.ConversationID)

	_, err = svc.Click(ctx, "user-1", "m1")
	assert.ErrorIs(t, err, toasts.ErrToastNotVisible)

	_, err = svc.Click(ctx, "nobody", "m1")
	assert.ErrorIs(t, err, toasts.ErrToastNotVisible)

	svc.Dismiss("user-1", "m2")
	svc.Dismiss("user-1", "unknown")
	svc.Dismiss("nobody", "m2")
	assert.Empty(t, svc.Cards("user-1"))
}

func TestService_Forget(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig(), nil)
	ctx := context.Background()

	_, _, err := svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	svc.Dismiss("user-1", "m1")

	accepted, _, err := svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	assert.False(t, accepted)

	svc.Forget("user-1", "m1")

	accepted, _, err = svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestService_AutoDismiss(t *testing.T) {
	svc, clock := newTestService(t, DefaultConfig(), nil)

	_, _, err := svc.Ingest(context.Background(), "user-1", chatEvent("m1"))
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	require.Eventually(t, func() bool {
		return len(svc.Cards("user-1")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestService_SweepClosesIdleSessions(t *testing.T) {
	config := DefaultConfig()
	config.SessionIdleTTL = time.Minute
	svc, clock := newTestService(t, config, nil)

	_, _, err := svc.Ingest(context.Background(), "user-1", chatEvent("m1"))
	require.NoError(t, err)
	svc.Dismiss("user-1", "m1")

	svc.Sweep()
	assert.Equal(t, 1, svc.Len(), "ledger still remembers the message")

	clock.Advance(31 * time.Second)
	svc.Sweep()
	assert.Equal(t, 1, svc.Len(), "session not idle long enough")

	clock.Advance(30 * time.Second)
	svc.Sweep()
	assert.Equal(t, 0, svc.Len())

	_, ok := svc.Lookup("user-1")
	assert.False(t, ok)
}

func TestService_SweepKeepsWatchedSessions(t *testing.T) {
	config := DefaultConfig()
	config.SessionIdleTTL = time.Second
	svc, clock := newTestService(t, config, nil)

	sub := svc.Session("user-1").Presenter.Subscribe()
	defer sub.Close()

	clock.Advance(time.Minute)
	svc.Sweep()
	assert.Equal(t, 1, svc.Len())
}

func TestService_SweepKeepsHeldSessions(t *testing.T) {
	svc, clock := newTestService(t, DefaultConfig(), nil)

	sess, release := svc.acquire("user-1")
	clock.Advance(11 * time.Minute)
	svc.Sweep()

	held, ok := svc.Lookup("user-1")
	require.True(t, ok, "a session in use must survive the idle sweep")
	assert.Same(t, sess, held)

	accepted, err := sess.Manager.Add(context.Background(), chatEvent("m1"))
	require.NoError(t, err)
	assert.True(t, accepted)
	release()

	svc.Sweep()
	require.Len(t, svc.Cards("user-1"), 1)
}

func TestService_SweepClosesReleasedSessions(t *testing.T) {
	svc, clock := newTestService(t, DefaultConfig(), nil)

	_, release := svc.acquire("user-1")
	release()
	release()

	clock.Advance(11 * time.Minute)
	svc.Sweep()
	assert.Equal(t, 0, svc.Len())
}

func TestService_History(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _ := newTestService(t, DefaultConfig(), nil)

		_, err := svc.History(context.Background(), "user-1", 10)
		assert.ErrorIs(t, err, ErrHistoryDisabled)
	})

	t.Run("enabled", func(t *testing.T) {
		repo := &mockHistoryRepository{records: []HistoryRecord{
			{ID: "1", SessionID: "user-1", MessageID: "m1"},
			{ID: "2", SessionID: "user-2", MessageID: "m2"},
			{ID: "3", SessionID: "user-1", MessageID: "m3"},
		}}
		svc, _ := newTestService(t, DefaultConfig(), repo)

		records, err := svc.History(context.Background(), "user-1", 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "m3", records[0].MessageID)
	})
}

func TestService_RecordsClosedToasts(t *testing.T) {
	repo := &mockHistoryRepository{}
	clock := clockwork.NewFakeClock()
	recorder := NewHistoryRecorder(DefaultRecorderConfig(), repo, clock)

	svc, err := NewService(DefaultConfig(), clock, recorder, repo)
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = svc.Ingest(ctx, "user-1", chatEvent("m1"))
	require.NoError(t, err)
	_, err = svc.Click(ctx, "user-1", "m1")
	require.NoError(t, err)

	recorder.Start(ctx)
	svc.Stop()
	recorder.Stop()

	records := repo.stored()
	require.Len(t, records, 1)
	assert.Equal(t, "user-1", records[0].SessionID)
	assert.Equal(t, toasts.ReasonClicked, records[0].Outcome)
}

func TestService_StartStop(t *testing.T) {
	config := DefaultConfig()
	config.SessionIdleTTL = time.Second
	svc, clock := newTestService(t, config, nil)

	svc.Session("user-1")
	svc.Start(context.Background())

	require.Eventually(t, func() bool {
		clock.Advance(config.SweepInterval)
		return svc.Len() == 0
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	svc.Stop()
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 3, config.Toasts.MaxVisible)
	assert.Equal(t, 5*time.Second, config.Toasts.DisplayDuration)
	assert.Equal(t, 30*time.Second, config.Toasts.DedupWindow)
	assert.Equal(t, time.Second, config.SweepInterval)
}
