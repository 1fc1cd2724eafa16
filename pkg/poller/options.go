package poller

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is how long to wait for all minions to return.
	DefaultTimeout = 60 * time.Second
	// DefaultInterval is the pause between two lookups of the job.
	DefaultInterval = 3 * time.Second
)

// Options contains the configuration for polling a job.
type Options struct {
	Logger *zerolog.Logger

	// Timeout bounds the time spent waiting for returns.
	Timeout time.Duration
	// Interval is the pause between two lookups.
	Interval time.Duration
	// FailIfIncomplete makes the exit signal non-zero if a minion
	// did not return before the timeout.
	FailIfIncomplete bool
	// Clock is the source of time.
	Clock Clock
}

// Option applies a configuration option
// for the execution of an operation.
type Option func(options *Options) error

// Apply applies the option functions to the current set of options.
func (o *Options) Apply(options ...Option) (*Options, error) {
	for _, option := range options {
		if err := option(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// GetDefaultOptions returns the default options
// for all operations of this library.
func GetDefaultOptions() *Options {
	logger := zerolog.Nop()

	return &Options{
		Logger:   &logger,
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
		Clock:    RealClock{},
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithTimeout sets the maximum time to wait for returns.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}

// WithInterval sets the pause between two lookups.
func WithInterval(interval time.Duration) Option {
	return func(options *Options) error {
		if interval <= 0 {
			interval = DefaultInterval
		}
		options.Interval = interval
		return nil
	}
}

// WithFailIfIncomplete reports a failure if a minion did not return.
func WithFailIfIncomplete(fail bool) Option {
	return func(options *Options) error {
		options.FailIfIncomplete = fail
		return nil
	}
}

// WithClock replaces the source of time, for example in tests.
func WithClock(clock Clock) Option {
	return func(options *Options) error {
		options.Clock = clock
		return nil
	}
}
