package session

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultMargin is how much longer than now a cached token must remain
// valid to be reused.
const DefaultMargin = 30 * time.Second

// Options contains the configuration for a session.
type Options struct {
	Logger *zerolog.Logger

	// CachePath is the file the token is persisted to.
	CachePath string
	// MakeToken reuses a valid token from CachePath and persists
	// freshly issued tokens there.
	MakeToken bool
	// Margin is the minimum remaining lifetime of a cached token.
	Margin time.Duration
	// Now returns the current time.
	Now func() time.Time
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
		Logger: &logger,
		Margin: DefaultMargin,
		Now:    time.Now,
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithCache enables the token cache at the given path.
func WithCache(path string, makeToken bool) Option {
	return func(options *Options) error {
		options.CachePath = path
		options.MakeToken = makeToken
		return nil
	}
}

// WithMargin overrides the minimum remaining lifetime of cached tokens.
func WithMargin(margin time.Duration) Option {
	return func(options *Options) error {
		options.Margin = margin
		return nil
	}
}

// WithClock overrides the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(options *Options) error {
		options.Now = now
		return nil
	}
}
