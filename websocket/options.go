package websocket

import (
	"compress/flate"
	"log/slog"
	"time"
)

const (
	DefaultCloseTimeout         = 5 * time.Second
	DefaultCompressionThreshold = 256
)

// Options configures accepted connections.
type Options struct {
	// MaxPayloadLength bounds a frame and a reassembled message.
	MaxPayloadLength uint64
	FragmentSize     int
	// EnableCompression allows permessage-deflate when the client offers it.
	EnableCompression bool
	// CompressionThreshold is the smallest message compressed on send.
	CompressionThreshold int
	CompressionLevel     int
	// Subprotocols in the server order of preference.
	Subprotocols []string
	// KeepAliveInterval sends a ping that often. Zero disables it.
	KeepAliveInterval time.Duration
	// CloseTimeout bounds the wait for the peer's close frame.
	CloseTimeout time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxPayloadLength:     DefaultMaxPayloadLength,
		FragmentSize:         DefaultFragmentSize,
		CompressionThreshold: DefaultCompressionThreshold,
		CompressionLevel:     flate.BestSpeed,
		CloseTimeout:         DefaultCloseTimeout,
		Logger:               logger,
	}
}

type Option func(*Options)

func WithMaxPayloadLength(length uint64) Option {
	return func(o *Options) {
		o.MaxPayloadLength = length
	}
}

func WithFragmentSize(size int) Option {
	return func(o *Options) {
		o.FragmentSize = size
	}
}

func WithCompression(enabled bool) Option {
	return func(o *Options) {
		o.EnableCompression = enabled
	}
}

func WithSubprotocols(protocols ...string) Option {
	return func(o *Options) {
		o.Subprotocols = protocols
	}
}

func WithKeepAlive(interval time.Duration) Option {
	return func(o *Options) {
		o.KeepAliveInterval = interval
	}
}

func WithCloseTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CloseTimeout = timeout
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func (o *Options) normalize() {
	if o.MaxPayloadLength == 0 {
		o.MaxPayloadLength = DefaultMaxPayloadLength
	}
	if o.FragmentSize <= 0 {
		o.FragmentSize = DefaultFragmentSize
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.Logger == nil {
		o.Logger = logger
	}
}
