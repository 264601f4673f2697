// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/config"
	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/identity/jwt"
	"github.com/bissquit/lionsgeek-toasts/internal/notifications"
	notificationspostgres "github.com/bissquit/lionsgeek-toasts/internal/notifications/postgres"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/ctxlog"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/httputil"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/metrics"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/postgres"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts/presenter"
	"github.com/bissquit/lionsgeek-toasts/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// inboundGuard admits the chat backend to the event intake. Students are
// never allowed to inject events.
var inboundGuard = domain.RoleGuard{
	Authorized: []domain.Role{domain.RoleService},
	Excluded:   []domain.Role{domain.RoleStudent},
}

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	runCancel     context.CancelFunc
	service       *notifications.Service
	recorder      *notifications.HistoryRecorder
}

// New creates a new application instance. The database is only opened when
// the history log is enabled.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	clock := clockwork.NewRealClock()
	runCtx, runCancel := context.WithCancel(context.Background())

	app := &App{
		config:    cfg,
		logger:    logger,
		runCancel: runCancel,
	}

	var history notifications.HistoryRepository
	if cfg.History.Enabled {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			runCancel()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.db = db

		repo := notificationspostgres.NewRepository(db)
		history = repo
		app.recorder = notifications.NewHistoryRecorder(notifications.RecorderConfig{
			BatchSize:       cfg.History.BatchSize,
			FlushInterval:   cfg.History.FlushInterval,
			BufferSize:      cfg.History.BufferSize,
			Retention:       cfg.History.Retention,
			CleanupInterval: cfg.History.CleanupInterval,
		}, repo, clock)

		go app.collectDBMetrics(runCtx)
	}

	slog.Info("toast history configured", "enabled", cfg.History.Enabled)

	service, err := notifications.NewService(notifications.Config{
		Toasts: toasts.Config{
			MaxVisible:      cfg.Toasts.MaxVisible,
			DisplayDuration: cfg.Toasts.DisplayDuration,
			DedupWindow:     cfg.Toasts.DedupWindow,
		},
		SweepInterval:     cfg.Toasts.SweepInterval,
		SessionIdleTTL:    cfg.Toasts.SessionIdleTTL,
		IngestRate:        cfg.Toasts.IngestRate,
		IngestBurst:       cfg.Toasts.IngestBurst,
		StreamBuffer:      cfg.Toasts.StreamBuffer,
		PlaceholderAvatar: cfg.Toasts.PlaceholderAvatar,
	}, clock, app.recorder, history)
	if err != nil {
		app.closeDB()
		runCancel()
		return nil, fmt.Errorf("create notifications service: %w", err)
	}
	app.service = service

	if app.recorder != nil {
		app.recorder.Start(runCtx)
	}
	service.Start(runCtx)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	// Servers stop first so no request reopens a session. Closing sessions
	// cancels display timers; toasts still on screen are not recorded. The
	// recorder then drains what was already closed.
	a.service.Stop()
	if a.recorder != nil {
		a.recorder.Stop()
	}
	a.runCancel()

	a.closeDB()

	return errors.Join(errs...)
}

func (a *App) closeDB() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Service returns the notifications service. Used in tests.
func (a *App) Service() *notifications.Service {
	return a.service
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	streamer := presenter.NewStreamer(presenter.StreamConfig{
		ReadTimeout:  a.config.Websocket.ReadTimeout,
		WriteTimeout: a.config.Websocket.WriteTimeout,
		PingInterval: a.config.Websocket.PingInterval,
	}, a.config.CORS.AllowedOrigins)
	notificationsHandler := notifications.NewHandler(a.service, streamer)

	validator := jwt.NewValidator(jwt.Config{
		SecretKey: a.config.JWT.SecretKey,
		Issuer:    a.config.JWT.Issuer,
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(validator))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.config.Server.RequestTimeout))

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRoles(inboundGuard))
				notificationsHandler.RegisterInboundRoutes(r)
			})

			notificationsHandler.RegisterRoutes(r)
		})

		// Streams are long-lived and stay outside the request timeout.
		notificationsHandler.RegisterStreamRoutes(r)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
