package saltapi

import (
	"time"

	"github.com/rs/zerolog"
)

// Options contains the configuration for a client.
type Options struct {
	Logger  *zerolog.Logger
	Timeout time.Duration
	TLS     TLSConfig

	// DebugHTTP dumps every request and response to the logger.
	DebugHTTP bool
	// RunURI sends low states to the /run endpoint, which expects the
	// credentials or the token inside every low state.
	RunURI bool
}

// TLSConfig describes how the server certificate is trusted and
// whether the client presents a certificate of its own.
type TLSConfig struct {
	// IgnoreErrors disables server certificate verification. It takes
	// precedence over CABundle.
	IgnoreErrors bool
	CABundle     string
	ClientCert   string
	ClientKey    string
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
		Timeout: time.Second * 30,
		Logger:  &logger,
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithTimeout sets the timeout of a single HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}

// WithTLS configures certificate verification and client certificates.
func WithTLS(config TLSConfig) Option {
	return func(options *Options) error {
		options.TLS = config
		return nil
	}
}

// WithDebugHTTP enables dumping of the HTTP exchange.
func WithDebugHTTP(debug bool) Option {
	return func(options *Options) error {
		options.DebugHTTP = debug
		return nil
	}
}

// WithRunURI sends commands to the /run endpoint instead of the root.
func WithRunURI(run bool) Option {
	return func(options *Options) error {
		options.RunURI = run
		return nil
	}
}
