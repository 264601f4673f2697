// Package config loads toastd configuration from defaults, an optional YAML
// file and TOASTD_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: TOASTD_SERVER__PORT sets server.port.
const EnvPrefix = "TOASTD_"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	JWT       JWTConfig       `koanf:"jwt"`
	CORS      CORSConfig      `koanf:"cors"`
	Toasts    ToastsConfig    `koanf:"toasts"`
	History   HistoryConfig   `koanf:"history"`
	Websocket WebsocketConfig `koanf:"websocket"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// DatabaseConfig contains PostgreSQL settings. Only used when history is enabled.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig contains bearer token validation settings.
type JWTConfig struct {
	SecretKey string `koanf:"secret_key"`
	Issuer    string `koanf:"issuer"`
}

// CORSConfig contains CORS and websocket origin settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ToastsConfig contains toast queue and session settings.
type ToastsConfig struct {
	MaxVisible        int           `koanf:"max_visible"`
	DisplayDuration   time.Duration `koanf:"display_duration"`
	DedupWindow       time.Duration `koanf:"dedup_window"`
	SweepInterval     time.Duration `koanf:"sweep_interval"`
	SessionIdleTTL    time.Duration `koanf:"session_idle_ttl"`
	IngestRate        float64       `koanf:"ingest_rate"`
	IngestBurst       int           `koanf:"ingest_burst"`
	StreamBuffer      int           `koanf:"stream_buffer"`
	PlaceholderAvatar string        `koanf:"placeholder_avatar"`
}

// HistoryConfig contains toast history log settings.
type HistoryConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BatchSize       int           `koanf:"batch_size"`
	FlushInterval   time.Duration `koanf:"flush_interval"`
	BufferSize      int           `koanf:"buffer_size"`
	Retention       time.Duration `koanf:"retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// WebsocketConfig contains toast stream settings.
type WebsocketConfig struct {
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PingInterval time.Duration `koanf:"ping_interval"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                "0.0.0.0",
		"server.port":                "8080",
		"server.metrics_port":        "9090",
		"server.read_timeout":        15 * time.Second,
		"server.read_header_timeout": 5 * time.Second,
		"server.write_timeout":       time.Duration(0),
		"server.idle_timeout":        120 * time.Second,
		"server.request_timeout":     30 * time.Second,

		"database.url":               "",
		"database.max_open_conns":    10,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": 30 * time.Minute,
		"database.connect_attempts":  5,
		"database.connect_timeout":   60 * time.Second,

		"log.level":  "info",
		"log.format": "json",

		"jwt.secret_key": "",
		"jwt.issuer":     "",

		"cors.allowed_origins": []string{},

		"toasts.max_visible":        3,
		"toasts.display_duration":   5 * time.Second,
		"toasts.dedup_window":       30 * time.Second,
		"toasts.sweep_interval":     time.Second,
		"toasts.session_idle_ttl":   10 * time.Minute,
		"toasts.ingest_rate":        20.0,
		"toasts.ingest_burst":       40,
		"toasts.stream_buffer":      32,
		"toasts.placeholder_avatar": "/static/avatar-placeholder.png",

		"history.enabled":          false,
		"history.batch_size":       100,
		"history.flush_interval":   2 * time.Second,
		"history.buffer_size":      1024,
		"history.retention":        30 * 24 * time.Hour,
		"history.cleanup_interval": time.Hour,

		"websocket.read_timeout":  60 * time.Second,
		"websocket.write_timeout": 10 * time.Second,
		"websocket.ping_interval": 25 * time.Second,
	}
}

// Load reads and validates configuration. path may be empty to skip the
// file layer.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Read reads configuration without validating it. Tools that need only a
// subset of the settings, such as migrations, use it directly.
func Read(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// envKey maps TOASTD_TOASTS__MAX_VISIBLE to toasts.max_visible.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	if c.Toasts.MaxVisible < 1 {
		errs = append(errs, errors.New("toasts.max_visible must be at least 1"))
	}
	if c.Toasts.DisplayDuration <= 0 {
		errs = append(errs, errors.New("toasts.display_duration must be positive"))
	}
	if c.Toasts.DedupWindow <= 0 {
		errs = append(errs, errors.New("toasts.dedup_window must be positive"))
	}
	if c.Toasts.SweepInterval <= 0 {
		errs = append(errs, errors.New("toasts.sweep_interval must be positive"))
	}
	if c.Toasts.IngestRate <= 0 || c.Toasts.IngestBurst < 1 {
		errs = append(errs, errors.New("toasts.ingest_rate and toasts.ingest_burst must be positive"))
	}

	if c.History.Enabled {
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required when history is enabled"))
		}
		if c.History.BatchSize < 1 || c.History.BufferSize < 1 {
			errs = append(errs, errors.New("history.batch_size and history.buffer_size must be positive"))
		}
		if c.History.FlushInterval <= 0 || c.History.CleanupInterval <= 0 {
			errs = append(errs, errors.New("history.flush_interval and history.cleanup_interval must be positive"))
		}
	}

	if c.Websocket.PingInterval <= 0 || c.Websocket.PingInterval >= c.Websocket.ReadTimeout {
		errs = append(errs, errors.New("websocket.ping_interval must be positive and shorter than websocket.read_timeout"))
	}

	return errors.Join(errs...)
}
