package rediskv

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/raniellyferreira/redis-inmemory-kv/lua"
)

// config holds the configuration for a Node
type config struct {
	// Listeners; an empty address disables the listener
	addr     string
	httpAddr string
	password string

	// Storage
	shardCount int
	clock      clockwork.Clock

	// Timeouts and limits
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	scriptCacheSize int

	// Observability
	logger        Logger
	metrics       MetricsCollector
	statsInterval time.Duration
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:            ":6379",
		shardCount:      64,
		clock:           clockwork.NewRealClock(),
		shutdownTimeout: 5 * time.Second,
		scriptCacheSize: lua.DefaultScriptCacheSize,
		logger:          NewSlogLogger(nil),
		statsInterval:   10 * time.Second,
	}
}

// Option represents a configuration option for a Node
type Option func(*config) error

func invalid(option string, value interface{}) error {
	return &ConfigError{Option: option, Value: value, Err: ErrInvalidConfig}
}

// WithAddr sets the address of the Redis protocol listener.
// An empty address disables it.
//
// Example:
//
//	WithAddr(":6379")
//	WithAddr("127.0.0.1:0") // random port, see Node.Addr
func WithAddr(addr string) Option {
	return func(c *config) error {
		c.addr = addr
		return nil
	}
}

// WithHTTPAddr enables the HTTP/JSON front end on addr
//
// Example:
//
//	WithHTTPAddr(":8080")
func WithHTTPAddr(addr string) Option {
	return func(c *config) error {
		c.httpAddr = addr
		return nil
	}
}

// WithPassword requires clients of the Redis protocol listener to AUTH
func WithPassword(password string) Option {
	return func(c *config) error {
		c.password = password
		return nil
	}
}

// WithShardCount sets the number of storage shards, rounded up to a power of two
//
// Example:
//
//	WithShardCount(256)
func WithShardCount(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return invalid("WithShardCount", n)
		}
		c.shardCount = n
		return nil
	}
}

// WithReadTimeout closes Redis protocol connections idle for longer than
// timeout. Zero disables the idle timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return invalid("WithReadTimeout", timeout)
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight HTTP requests
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return invalid("WithShutdownTimeout", timeout)
		}
		c.shutdownTimeout = timeout
		return nil
	}
}

// WithScriptCacheSize bounds the number of Lua scripts kept for EVALSHA
func WithScriptCacheSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return invalid("WithScriptCacheSize", n)
		}
		c.scriptCacheSize = n
		return nil
	}
}

// WithLogger sets a custom logger for the node
//
// Example:
//
//	WithLogger(rediskv.NewSlogLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return invalid("WithLogger", logger)
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

// WithStatsInterval sets how often key count and memory usage are sampled
// into the metrics collector.
func WithStatsInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval <= 0 {
			return invalid("WithStatsInterval", interval)
		}
		c.statsInterval = interval
		return nil
	}
}

// WithClock sets the time source for expiration, blocking-pop timeouts and
// stats sampling. Tests use clockwork.NewFakeClock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) error {
		if clock == nil {
			return invalid("WithClock", clock)
		}
		c.clock = clock
		return nil
	}
}
