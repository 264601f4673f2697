package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts/presenter"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Config contains session and ingest settings.
type Config struct {
	Toasts            toasts.Config
	SweepInterval     time.Duration
	SessionIdleTTL    time.Duration
	IngestRate        float64
	IngestBurst       int
	StreamBuffer      int
	PlaceholderAvatar string
}

// DefaultConfig returns default service configuration.
func DefaultConfig() Config {
	return Config{
		Toasts:            toasts.DefaultConfig(),
		SweepInterval:     time.Second,
		SessionIdleTTL:    10 * time.Minute,
		IngestRate:        20,
		IngestBurst:       40,
		StreamBuffer:      32,
		PlaceholderAvatar: "/static/avatar-placeholder.png",
	}
}

// Session is one app session's toast state.
type Session struct {
	ID        string
	Manager   *toasts.Manager
	Presenter *presenter.Presenter
	limiter   *rate.Limiter

	// refs counts callers holding the session; guarded by Service.mu.
	refs int
}

// Service owns every session's toast state and runs the ledger sweep.
type Service struct {
	config   Config
	clock    clockwork.Clock
	renderer *presenter.Renderer
	validate *validator.Validate
	recorder *HistoryRecorder
	history  HistoryRepository

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new notifications service. recorder and history may
// be nil when the history log is disabled.
func NewService(config Config, clock clockwork.Clock, recorder *HistoryRecorder, history HistoryRepository) (*Service, error) {
	renderer, err := presenter.NewRenderer(config.PlaceholderAvatar)
	if err != nil {
		return nil, fmt.Errorf("create card renderer: %w", err)
	}

	return &Service{
		config:   config,
		clock:    clock,
		renderer: renderer,
		validate: validator.New(),
		recorder: recorder,
		history:  history,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}, nil
}

// Session returns the session's toast state, creating it on first use.
func (s *Service) Session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked(id)
}

// acquire returns the session, creating it on first use, and keeps the idle
// sweep from closing it until release is called.
func (s *Service) acquire(id string) (*Session, func()) {
	s.mu.Lock()
	sess := s.sessionLocked(id)
	sess.refs++
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			sess.refs--
			s.mu.Unlock()
		})
	}
	return sess, release
}

func (s *Service) sessionLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	manager := toasts.NewManager(s.config.Toasts, s.clock, s.validate)
	if s.recorder != nil {
		manager.AddListener(s.recorder.Listener(id))
	}
	hub := presenter.NewHub(s.config.StreamBuffer)

	sess := &Session{
		ID:        id,
		Manager:   manager,
		Presenter: presenter.New(manager, s.clock, s.renderer, hub, nil),
		limiter:   rate.NewLimiter(rate.Limit(s.config.IngestRate), s.config.IngestBurst),
	}
	s.sessions[id] = sess

	slog.Debug("toast session opened", "session_id", id)
	return sess
}

// Lookup returns an existing session.
func (s *Service) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// CloseSession tears a session down. Its timers are cancelled and its
// streams closed.
func (s *Service) CloseSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Presenter.Close()
		slog.Debug("toast session closed", "session_id", id)
	}
}

// Len returns the number of open sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Ingest offers an inbound chat event to the recipient's session.
// It returns the (possibly derived) message id and whether a toast was shown.
func (s *Service) Ingest(ctx context.Context, recipientID string, event domain.NotificationEvent) (bool, string, error) {
	sess, release := s.acquire(recipientID)
	defer release()

	if !sess.limiter.AllowN(s.clock.Now(), 1) {
		recordRateLimited()
		return false, "", ErrRateLimited
	}

	event.Normalize(s.clock.Now())

	accepted, err := sess.Manager.Add(ctx, event)
	if err != nil {
		return false, event.MessageID, err
	}
	return accepted, event.MessageID, nil
}

// Cards returns the rendered visible toasts of a session.
func (s *Service) Cards(sessionID string) []presenter.Card {
	sess, ok := s.Lookup(sessionID)
	if !ok {
		return []presenter.Card{}
	}
	return sess.Presenter.Cards()
}

// Dismiss closes a toast on user request. Unknown ids are ignored.
func (s *Service) Dismiss(sessionID, messageID string) {
	if sess, ok := s.Lookup(sessionID); ok {
		sess.Presenter.Dismiss(messageID)
	}
}

// Click closes a toast and returns the navigation intent for its conversation.
func (s *Service) Click(ctx context.Context, sessionID, messageID string) (domain.Intent, error) {
	sess, ok := s.Lookup(sessionID)
	if !ok {
		return domain.Intent{}, toasts.ErrToastNotVisible
	}
	return sess.Presenter.Click(ctx, messageID)
}

// Forget lets a message id alert again before its dedup window ends.
func (s *Service) Forget(sessionID, messageID string) {
	if sess, ok := s.Lookup(sessionID); ok {
		sess.Manager.Forget(messageID)
	}
}

// History returns the most recent closed toasts of a session.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]HistoryRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	records, err := s.history.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Start launches the sweep loop.
func (s *Service) Start(ctx context.Context) {
	slog.Info("starting toast sweeper",
		"sweep_interval", s.config.SweepInterval,
		"session_idle_ttl", s.config.SessionIdleTTL,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the sweep loop and closes every session.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.CloseSession(id)
	}
	slog.Info("toast sweeper stopped")
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

// Sweep expires ledger entries in every session and closes idle sessions.
func (s *Service) Sweep() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	now := s.clock.Now()
	var visible, seen, closed int

	for _, sess := range sessions {
		sess.Manager.Sweep()

		if s.closeIfIdle(sess, now) {
			closed++
			continue
		}
		stats := sess.Manager.Stats()
		visible += stats.Visible
		seen += stats.Seen
	}

	if closed > 0 {
		slog.Debug("closed idle toast sessions", "count", closed)
	}
	recordSweep(len(sessions)-closed, visible, seen)
}

// closeIfIdle closes a session with nothing visible, nothing remembered, no
// viewers, no caller holding it and no activity for the idle TTL.
func (s *Service) closeIfIdle(sess *Session, now time.Time) bool {
	s.mu.Lock()
	stats := sess.Manager.Stats()
	idle := sess.refs == 0 &&
		stats.Visible == 0 &&
		stats.Seen == 0 &&
		sess.Presenter.Subscribers() == 0 &&
		now.Sub(stats.LastActive) >= s.config.SessionIdleTTL
	if idle && s.sessions[sess.ID] == sess {
		delete(s.sessions, sess.ID)
	} else {
		idle = false
	}
	s.mu.Unlock()

	if idle {
		sess.Presenter.Close()
	}
	return idle
}
