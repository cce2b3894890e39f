package netoff

import (
	"log/slog"
	"time"
)

const (
	// DefaultPort is used when no port is configured for NewWorker/NewDriver.
	DefaultPort = 9091

	// DefaultRetryAttempts bounds the accept/connect retry loop (spec.md
	// §4.1: "bounded attempt count").
	DefaultRetryAttempts = 5
	// DefaultRetryDelay is the fixed inter-attempt delay (spec.md §4.1:
	// "fixed inter-attempt delay").
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultReadTimeout/DefaultWriteTimeout bound a single blocking
	// send/recv call on the underlying byte stream. Zero disables the
	// deadline.
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// Option defines a functional option for NewWorker/NewDriver, mirroring the
// teacher's Listen/Dial Option pattern.
type Option func(*Config)

// Config holds runtime settings for a Worker or Driver. Zero value is never
// used directly; defaultConfig() supplies library defaults, and Options
// layer on top via applyConfig.
type Config struct {
	port int

	retryAttempts int
	retryDelay    time.Duration
	retryBackoff  time.Duration // steady-state delay once ramped; == retryDelay for a fixed delay

	readTimeout  time.Duration
	writeTimeout time.Duration

	logger  *slog.Logger
	metrics Metrics

	blobCache     BlobCache
	auditSink     AuditSink
	sessionLedger SessionLedger
}

// Validate checks that the assembled configuration is usable. Structural
// constraints (port range, non-negative durations) are expressed as
// validator struct tags on configFields and checked via go-playground's
// validator, the same library marmos91-dittofs uses for its own config
// struct; a couple of cross-field checks the tag language can't express are
// layered on top, matching the teacher's Validate() shape.
func (c *Config) Validate() error {
	fields := configFields{
		Port:          c.port,
		RetryAttempts: c.retryAttempts,
		RetryDelay:    c.retryDelay,
		ReadTimeout:   c.readTimeout,
		WriteTimeout:  c.writeTimeout,
	}
	if err := configValidator.Struct(fields); err != nil {
		return wrapInvalidConfig(err)
	}
	if c.retryBackoff < c.retryDelay {
		return wrapInvalidConfig(errRetryBackoffBelowDelay)
	}
	return nil
}

// defaultConfig returns a Config with library defaults.
func defaultConfig() *Config {
	return &Config{
		port:          DefaultPort,
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		retryBackoff:  DefaultRetryDelay,
		readTimeout:   DefaultReadTimeout,
		writeTimeout:  DefaultWriteTimeout,
		logger:        slog.Default(),
		metrics:       NewDefaultMetrics(),
	}
}

// applyConfig builds a runtime config by applying opts on top of defaults.
func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithPort sets the TCP port the worker binds or the driver connects to.
func WithPort(port int) Option {
	return func(c *Config) {
		if port > 0 {
			c.port = port
		}
	}
}

// WithRetry sets the bounded accept/connect attempt count and the fixed
// inter-attempt delay between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if delay > 0 {
			c.retryDelay = delay
			if c.retryBackoff < delay {
				c.retryBackoff = delay
			}
		}
	}
}

// WithRetryBackoff lets the inter-attempt delay ramp from the fixed delay up
// to steady on repeated failures, instead of staying perfectly fixed.
// Most callers never need this; spec.md's own behavior is the fixed delay
// WithRetry already provides.
func WithRetryBackoff(steady time.Duration) Option {
	return func(c *Config) {
		if steady > 0 {
			c.retryBackoff = steady
		}
	}
}

// WithTimeouts bounds a single blocking send/recv call on the transport.
// Zero disables the corresponding deadline.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Config) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// WithLogger sets the structured logger used for lifecycle/error logging.
// A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets a custom Metrics sink. If not provided, DefaultMetrics is
// used.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithBlobCache attaches an optional worker-side cache for GET_FILE blobs.
func WithBlobCache(cache BlobCache) Option {
	return func(c *Config) { c.blobCache = cache }
}

// WithAuditSink attaches an optional worker-side sink for simulation
// lifecycle events.
func WithAuditSink(sink AuditSink) Option {
	return func(c *Config) { c.auditSink = sink }
}

// WithSessionLedger attaches an optional driver-side record of confirmed
// simulation registrations.
func WithSessionLedger(ledger SessionLedger) Option {
	return func(c *Config) { c.sessionLedger = ledger }
}
