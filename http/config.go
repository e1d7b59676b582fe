package http

import (
	"crypto/tls"
	"log/slog"
	"time"
)

const (
	DefaultHeaderLimit         = 32 * 1024 // 32kB
	DefaultReadBufferSize      = 4096      // 4kB
	DefaultWriteBufferSize     = 4096      // 4kB
	DefaultQueueCapacity       = 1024
	DefaultMaxBodyDrain        = 256 * 1024 // 256kB
	DefaultFirstRequestTimeout = 90 * time.Second
	DefaultKeepAliveTimeout    = 15 * time.Second
)

// Config holds the tunables of a Listener and the connections it accepts.
type Config struct {
	// HeaderLimit caps the bytes accumulated for the request line and headers.
	HeaderLimit int
	// FirstRequestTimeout is the idle read timeout before the first request on a connection.
	FirstRequestTimeout time.Duration
	// KeepAliveTimeout is the idle read timeout between requests on a reused connection.
	KeepAliveTimeout time.Duration
	// WriteTimeout bounds every response write. Zero disables it.
	WriteTimeout time.Duration
	// QueueCapacity bounds the contexts waiting for GetContext.
	QueueCapacity int
	// MaxBodyDrain is how much unread request body is discarded to keep a connection alive.
	MaxBodyDrain int64
	// PreferIPv6 makes wildcard hosts bind the IPv6 unspecified address.
	PreferIPv6 bool
	// TLSConfig is required as soon as one https prefix is registered.
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		HeaderLimit:         DefaultHeaderLimit,
		FirstRequestTimeout: DefaultFirstRequestTimeout,
		KeepAliveTimeout:    DefaultKeepAliveTimeout,
		QueueCapacity:       DefaultQueueCapacity,
		MaxBodyDrain:        DefaultMaxBodyDrain,
		Logger:              logger,
	}
}

// Option customizes a Listener configuration.
type Option func(*Config)

func WithHeaderLimit(limit int) Option {
	return func(cfg *Config) {
		cfg.HeaderLimit = limit
	}
}

// WithTimeouts sets the idle timeouts for the first and the following requests of a connection.
func WithTimeouts(first, keepAlive time.Duration) Option {
	return func(cfg *Config) {
		cfg.FirstRequestTimeout = first
		cfg.KeepAliveTimeout = keepAlive
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.WriteTimeout = timeout
	}
}

func WithQueueCapacity(capacity int) Option {
	return func(cfg *Config) {
		cfg.QueueCapacity = capacity
	}
}

func WithIPv6(prefer bool) Option {
	return func(cfg *Config) {
		cfg.PreferIPv6 = prefer
	}
}

func WithTLS(tlsConfig *tls.Config) Option {
	return func(cfg *Config) {
		cfg.TLSConfig = tlsConfig
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

func (cfg *Config) normalize() {
	if cfg.HeaderLimit <= 0 {
		cfg.HeaderLimit = DefaultHeaderLimit
	}
	if cfg.FirstRequestTimeout <= 0 {
		cfg.FirstRequestTimeout = DefaultFirstRequestTimeout
	}
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.MaxBodyDrain < 0 {
		cfg.MaxBodyDrain = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
}
