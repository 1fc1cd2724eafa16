package config

import (
	"os"

	"github.com/rs/zerolog"
)

// LookupEnv returns the value of an environment variable and whether
// it is set, like os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Options contains the configuration for resolving a profile.
type Options struct {
	Logger *zerolog.Logger

	// Path is the configuration file. A missing file is only an error
	// if PathRequired is set.
	Path         string
	PathRequired bool
	// Profile selects the profile within the configuration file.
	Profile string
	// LookupEnv reads the environment.
	LookupEnv LookupEnv
	// Overrides take precedence over all other sources. Zero values
	// are ignored.
	Overrides *Profile
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
		Logger:    &logger,
		Path:      DefaultPath(),
		Profile:   DefaultProfile,
		LookupEnv: os.LookupEnv,
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithConfigPath overrides the default configuration path. The file
// must exist.
func WithConfigPath(configPath string) Option {
	return func(options *Options) error {
		if configPath != "" {
			options.Path = configPath
			options.PathRequired = true
		}
		return nil
	}
}

// WithProfile selects a profile from the configuration file.
func WithProfile(profile string) Option {
	return func(options *Options) error {
		if profile != "" {
			options.Profile = profile
		}
		return nil
	}
}

// WithLookupEnv replaces the environment, for example in tests.
func WithLookupEnv(lookup LookupEnv) Option {
	return func(options *Options) error {
		options.LookupEnv = lookup
		return nil
	}
}

// WithOverrides sets values that take precedence over the
// configuration file and the environment, usually from flags.
func WithOverrides(overrides *Profile) Option {
	return func(options *Options) error {
		options.Overrides = overrides
		return nil
	}
}
