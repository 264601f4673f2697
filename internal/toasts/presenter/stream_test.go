package presenter

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, f *fixture, origins []string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	streamer := NewStreamer(StreamConfig{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingInterval: time.Second,
	}, origins)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamer.Serve(w, r, f.presenter, slog.Default())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamer_SnapshotAndUpdates(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "1")

	conn, _, err := dialStream(t, f, nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readFrame(t, conn)
	assert.Equal(t, FrameSnapshot, snapshot.Type)
	require.Len(t, snapshot.Cards, 1)
	assert.Equal(t, "1", snapshot.Cards[0].MessageID)

	f.add(t, "2")
	shown := readFrame(t, conn)
	assert.Equal(t, FrameShown, shown.Type)
	require.NotNil(t, shown.Card)
	assert.Equal(t, "2", shown.Card.MessageID)
}

func TestStreamer_Commands(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, "1")
	f.add(t, "2")

	conn, _, err := dialStream(t, f, nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, FrameSnapshot, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandDismiss, MessageID: "1"}))
	hidden := readFrame(t, conn)
	assert.Equal(t, FrameHidden, hidden.Type)
	assert.Equal(t, "1", hidden.MessageID)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandClick, MessageID: "2"}))
	nav := readFrame(t, conn)
	assert.Equal(t, FrameNavigate, nav.Type)
	require.NotNil(t, nav.Intent)
	assert.Equal(t, "conv-2", nav.Intent.ConversationID)
	clicked := readFrame(t, conn)
	assert.Equal(t, FrameHidden, clicked.Type)
	assert.Equal(t, "2", clicked.MessageID)

	assert.Empty(t, f.manager.List())
}

func TestStreamer_ClosesWithPresenter(t *testing.T) {
	f := newFixture(t, nil)

	conn, _, err := dialStream(t, f, nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, FrameSnapshot, readFrame(t, conn).Type)
	require.Eventually(t, func() bool { return f.presenter.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	f.presenter.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestStreamer_RejectsUnknownOrigin(t *testing.T) {
	f := newFixture(t, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")

	_, resp, err := dialStream(t, f, []string{"https://app.lionsgeek.ma"}, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
