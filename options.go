package nestedpool

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxCalls is the default limit on pool operations in a plan.
const DefaultMaxCalls = 32

// Logger defines a standard interface for structured, leveled logging.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a Compiler or Builder.
type Option func(*config)

// config holds the settings shared by the compiler components.
type config struct {
	allocator Allocator
	logger    Logger
	registry  prometheus.Registerer
	maxCalls  int
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		allocator: NewAllocator(),
		logger:    slog.New(slog.DiscardHandler),
		registry:  prometheus.NewRegistry(),
		maxCalls:  DefaultMaxCalls,
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAllocator replaces the reference allocator.
func WithAllocator(a Allocator) Option {
	return func(c *config) {
		if a != nil {
			c.allocator = a
		}
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegisterer registers the compiler metrics on reg.
// By default metrics go to a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// WithMaxCalls sets the maximum number of pool operations in a plan.
// Default is DefaultMaxCalls. Values below one are ignored.
func WithMaxCalls(max int) Option {
	return func(c *config) {
		if max > 0 {
			c.maxCalls = max
		}
	}
}
