package ops

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/pepper/pkg/config"
	"github.com/nicklasfrahm/pepper/pkg/lowstate"
	"github.com/nicklasfrahm/pepper/pkg/poller"
)

// Options contains the configuration for an operation.
type Options struct {
	Logger *zerolog.Logger

	// ConfigPath overrides the default configuration file.
	ConfigPath string
	// Profile selects the profile in the configuration file.
	Profile string
	// Overrides take precedence over the configuration file and the
	// environment.
	Overrides config.Profile
	// LookupEnv reads the environment.
	LookupEnv config.LookupEnv
	// Prompter asks for missing credentials.
	Prompter *config.Prompter

	// MakeToken reuses and persists tokens in the token cache.
	MakeToken bool
	DebugHTTP bool
	RunURI    bool

	Command      lowstate.Command
	JSON         string
	JSONFile     string
	LegacyKwargs bool

	Timeout          time.Duration
	PollInterval     time.Duration
	FailIfIncomplete bool
	Retcode          RetcodeFlags

	// Output is the output format, either json or yaml.
	Output string
	// OutputFile receives the output instead of Stdout. Output is
	// appended to an existing file.
	OutputFile string
	Stdout     io.Writer
}

// RetcodeFlags selects at most one retcode policy.
type RetcodeFlags struct {
	FailAny     bool
	FailAnyNone bool
	FailAll     bool
	FailAllNone bool
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
		Logger:       &logger,
		LookupEnv:    os.LookupEnv,
		Prompter:     config.NewTerminalPrompter(false),
		Timeout:      poller.DefaultTimeout,
		PollInterval: poller.DefaultInterval,
		Output:       FormatJSON,
		Stdout:       os.Stdout,
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithConfigPath overrides the default configuration path.
func WithConfigPath(configPath string) Option {
	return func(options *Options) error {
		options.ConfigPath = configPath
		return nil
	}
}

// WithProfile selects a profile of the configuration file.
func WithProfile(profile string) Option {
	return func(options *Options) error {
		options.Profile = profile
		return nil
	}
}

// WithOverrides sets connection settings that take precedence over
// the configuration file and the environment.
func WithOverrides(overrides config.Profile) Option {
	return func(options *Options) error {
		options.Overrides = overrides
		return nil
	}
}

// WithLookupEnv replaces the environment.
func WithLookupEnv(lookup config.LookupEnv) Option {
	return func(options *Options) error {
		options.LookupEnv = lookup
		return nil
	}
}

// WithPrompter replaces the prompter used for missing credentials.
func WithPrompter(prompter *config.Prompter) Option {
	return func(options *Options) error {
		options.Prompter = prompter
		return nil
	}
}

// WithMakeToken enables the token cache.
func WithMakeToken(makeToken bool) Option {
	return func(options *Options) error {
		options.MakeToken = makeToken
		return nil
	}
}

// WithDebugHTTP dumps HTTP traffic to the logger.
func WithDebugHTTP(debug bool) Option {
	return func(options *Options) error {
		options.DebugHTTP = debug
		return nil
	}
}

// WithRunURI uses the /run endpoint.
func WithRunURI(runURI bool) Option {
	return func(options *Options) error {
		options.RunURI = runURI
		return nil
	}
}

// WithCommand sets the command to run.
func WithCommand(cmd lowstate.Command) Option {
	return func(options *Options) error {
		options.Command = cmd
		return nil
	}
}

// WithJSON runs a raw JSON payload instead of a command.
func WithJSON(payload string) Option {
	return func(options *Options) error {
		options.JSON = payload
		return nil
	}
}

// WithJSONFile runs the JSON payload of a file instead of a command.
func WithJSONFile(path string) Option {
	return func(options *Options) error {
		options.JSONFile = path
		return nil
	}
}

// WithLegacyKwargs always splits key=value arguments of runner and
// wheel functions into keyword arguments.
func WithLegacyKwargs(legacy bool) Option {
	return func(options *Options) error {
		options.LegacyKwargs = legacy
		return nil
	}
}

// WithTimeout sets how long to wait for minions to return.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}

// WithPollInterval sets the pause between two job lookups.
func WithPollInterval(interval time.Duration) Option {
	return func(options *Options) error {
		options.PollInterval = interval
		return nil
	}
}

// WithFailIfIncomplete polls for returns and fails if a minion does
// not return in time.
func WithFailIfIncomplete(fail bool) Option {
	return func(options *Options) error {
		options.FailIfIncomplete = fail
		return nil
	}
}

// WithRetcode selects the retcode policy.
func WithRetcode(flags RetcodeFlags) Option {
	return func(options *Options) error {
		options.Retcode = flags
		return nil
	}
}

// WithOutput sets the output format and an optional output file.
func WithOutput(format, file string) Option {
	return func(options *Options) error {
		if format != "" {
			options.Output = format
		}
		options.OutputFile = file
		return nil
	}
}

// WithStdout replaces the standard output.
func WithStdout(stdout io.Writer) Option {
	return func(options *Options) error {
		options.Stdout = stdout
		return nil
	}
}
