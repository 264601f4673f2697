package presenter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const maxCommandSize = 4096

// StreamConfig holds websocket stream settings.
type StreamConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultStreamConfig returns default stream settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		PingInterval: 25 * time.Second,
	}
}

// Command types accepted from stream clients.
const (
	CommandDismiss = "dismiss"
	CommandClick   = "click"
)

// Command is a viewer action sent over the stream.
type Command struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

// Streamer serves toast streams over websocket.
type Streamer struct {
	config   StreamConfig
	upgrader websocket.Upgrader
}

// NewStreamer creates a streamer. Requests without an Origin header (native
// clients) are always accepted; browser origins must be in allowedOrigins
// unless it contains "*".
func NewStreamer(config StreamConfig, allowedOrigins []string) *Streamer {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Streamer{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// Serve upgrades the request and streams p's frames until either side closes.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, p *Presenter, logger *slog.Logger) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, snapshot := p.SubscribeWithSnapshot()
	defer sub.Close()

	logger.Debug("toast stream opened")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go s.readLoop(ctx, cancel, conn, p, logger)
	s.writeLoop(ctx, conn, sub, snapshot, logger)

	logger.Debug("toast stream closed")
}

func (s *Streamer) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, p *Presenter, logger *slog.Logger) {
	defer cancel()

	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logger.Warn("toast stream read error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		switch cmd.Type {
		case CommandDismiss:
			p.Dismiss(cmd.MessageID)
		case CommandClick:
			if _, err := p.Click(ctx, cmd.MessageID); err != nil {
				logger.Debug("click on toast that is no longer visible", "message_id", cmd.MessageID)
			}
		default:
			logger.Warn("unknown stream command", "type", cmd.Type)
		}
	}
}

func (s *Streamer) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription, snapshot []Card, logger *slog.Logger) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	if err := s.write(conn, Frame{Type: FrameSnapshot, Cards: snapshot}); err != nil {
		logger.Warn("failed to write snapshot", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := s.write(conn, frame); err != nil {
				logger.Warn("failed to write frame", "type", frame.Type, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Streamer) write(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteJSON(frame)
}
