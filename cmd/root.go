package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicklasfrahm/pepper/pkg/config"
	"github.com/nicklasfrahm/pepper/pkg/lowstate"
	"github.com/nicklasfrahm/pepper/pkg/ops"
	"github.com/nicklasfrahm/pepper/pkg/poller"
	"github.com/nicklasfrahm/pepper/pkg/retcode"
)

const (
	// ExitFailure is the exit code of runtime errors.
	ExitFailure = 1
	// ExitUsage is the exit code of invalid invocations.
	ExitUsage = 2
)

var version = "dev"

// errUsage marks errors caused by an invalid invocation.
var errUsage = errors.New("usage error")

// exitCode is set by commands that derive it from the results.
var exitCode int

// global contains the flags shared by all commands.
var global struct {
	configPath     string
	profile        string
	verbosity      int
	debugHTTP      bool
	url            string
	eauth          string
	username       string
	password       string
	nonInteractive bool
	cache          string
	tokenExpire    int
	runURI         bool
	ignoreSSL      bool
	caBundle       string
	clientCert     string
	clientCertKey  string
	output         string
	outputFile     string
}

// command contains the flags of the root command.
var command struct {
	timeout          int
	client           string
	ssh              bool
	batch            string
	failIfIncomplete bool
	retcode          ops.RetcodeFlags
	targets          map[string]*bool
	saltenv          string
	makeToken        bool
	json             string
	jsonFile         string
	legacyKwargs     bool
}

// targetTypes maps the targeting flags to the salt target types.
var targetTypes = []struct {
	flag, short, targetType, usage string
}{
	{"pcre", "E", "pcre", "target minions with a regular expression"},
	{"list", "L", "list", "target minions with a comma separated list"},
	{"grain", "G", "grain", "target minions with a grain"},
	{"grain-pcre", "", "grain_pcre", "target minions with a grain matched by a regular expression"},
	{"pillar", "I", "pillar", "target minions with a pillar value"},
	{"pillar-pcre", "", "pillar_pcre", "target minions with a pillar value matched by a regular expression"},
	{"range", "R", "range", "target minions with a range expression"},
	{"compound", "C", "compound", "target minions with a compound expression"},
	{"nodegroup", "N", "nodegroup", "target a nodegroup"},
}

var rootCmd = &cobra.Command{
	Use:   "pepper [flags] <target> <function> [arguments...]",
	Short: "A command line client for salt-api",
	Long: `Pepper sends commands to salt-api and prints the
results.

The connection is configured with a profile in the
configuration file, the SALTAPI_* environment variables
or flags, in this order of increasing precedence.

Examples:
  pepper '*' test.ping
  pepper --client runner manage.up
  pepper --fail-if-incomplete -t 30 'web*' state.apply`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && command.json == "" && command.jsonFile == "" {
			return cmd.Help()
		}

		opts, err := runOptions(cmd, args)
		if err != nil {
			return err
		}

		code, err := ops.Run(cmd.Context(), opts...)
		if err != nil {
			return err
		}

		exitCode = code
		return nil
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&global.configPath, "config", "c", "", "configuration file (default $PEPPERRC or ~/.pepperrc.yml)")
	flags.StringVarP(&global.profile, "profile", "p", config.DefaultProfile, "profile of the configuration file")
	flags.CountVarP(&global.verbosity, "verbose", "v", "increase the log level, may be repeated")
	flags.BoolVarP(&global.debugHTTP, "debug-http", "H", false, "log HTTP requests and responses")
	flags.StringVarP(&global.url, "saltapi-url", "u", "", "salt-api URL")
	flags.StringVarP(&global.eauth, "eauth", "a", "", "external authentication backend")
	flags.StringVar(&global.username, "username", "", "salt-api user")
	flags.StringVar(&global.password, "password", "", "salt-api password")
	flags.BoolVar(&global.nonInteractive, "non-interactive", false, "fail instead of prompting for missing credentials")
	flags.StringVarP(&global.cache, "cache", "x", "", "token cache (default $PEPPERCACHE or ~/.peppercache)")
	flags.IntVar(&global.tokenExpire, "token-expire", 0, "requested token lifetime in seconds")
	flags.BoolVar(&global.runURI, "run-uri", false, "use the /run endpoint")
	flags.BoolVarP(&global.ignoreSSL, "ignore-ssl-errors", "k", false, "do not verify the server certificate")
	flags.StringVar(&global.caBundle, "ca-bundle", "", "CA certificates to verify the server with")
	flags.StringVar(&global.clientCert, "client-cert", "", "client certificate")
	flags.StringVar(&global.clientCertKey, "client-cert-key", "", "private key of the client certificate (default: --client-cert)")
	flags.StringVar(&global.output, "output", ops.FormatJSON, "output format, json or yaml")
	flags.StringVar(&global.outputFile, "output-file", "", "append the output to a file")

	local := rootCmd.Flags()
	local.IntVarP(&command.timeout, "timeout", "t", int(poller.DefaultTimeout/time.Second), "seconds to wait for minions to return")
	local.StringVar(&command.client, "client", string(lowstate.ClientLocal), "salt client")
	local.BoolVar(&command.ssh, "ssh", false, "use salt-ssh")
	local.StringVarP(&command.batch, "batch", "b", "", "run in batches of a number or percentage of minions")
	local.BoolVar(&command.failIfIncomplete, "fail-if-incomplete", false, "poll for returns and fail if a minion does not return in time")
	local.BoolVar(&command.retcode.FailAny, "fail-any", false, "fail with the first non-zero retcode")
	local.BoolVar(&command.retcode.FailAnyNone, "fail-any-none", false, "like --fail-any, but fail if there is no retcode")
	local.BoolVar(&command.retcode.FailAll, "fail-all", false, "fail if all retcodes are non-zero")
	local.BoolVar(&command.retcode.FailAllNone, "fail-all-none", false, "like --fail-all, but fail if there is no retcode")
	local.StringVarP(&command.saltenv, "saltenv", "e", "", "salt environment")
	local.BoolVarP(&command.makeToken, "make-token", "T", false, "reuse a cached token and cache new tokens")
	local.StringVar(&command.json, "json", "", "send a raw JSON payload")
	local.StringVar(&command.jsonFile, "json-file", "", "send the JSON payload of a file")
	local.BoolVar(&command.legacyKwargs, "legacy-kwargs", false, "send key=value arguments of runner and wheel functions as keyword arguments")

	command.targets = make(map[string]*bool, len(targetTypes))
	for _, target := range targetTypes {
		command.targets[target.flag] = local.BoolP(target.flag, target.short, false, target.usage)
	}

	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Mark(err, errUsage)
	})
}

// normalizeFlag accepts underscores in flag names, for example
// --fail_if_incomplete.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// runOptions translates the flags into operation options.
func runOptions(cmd *cobra.Command, args []string) ([]ops.Option, error) {
	if command.json != "" && command.jsonFile != "" {
		return nil, errors.Mark(errors.New("--json and --json-file are mutually exclusive"), errUsage)
	}

	client, err := lowstate.ParseClient(command.client)
	if err != nil {
		return nil, err
	}
	if command.ssh {
		client = lowstate.ClientSSH
	}

	targetType := ""
	for _, target := range targetTypes {
		if !*command.targets[target.flag] {
			continue
		}
		if targetType != "" {
			return nil, errors.WithHint(errors.Mark(errors.New("more than one target type selected"), errUsage),
				"use a compound expression with -C to combine target types")
		}
		targetType = target.targetType
	}

	low := lowstate.FromArgs(client, args)
	low.TargetType = targetType
	low.Batch = command.batch
	low.Saltenv = command.saltenv
	if cmd.Flags().Changed("timeout") {
		low.Timeout = command.timeout
	}

	return append(commonOptions(),
		ops.WithCommand(low),
		ops.WithJSON(command.json),
		ops.WithJSONFile(command.jsonFile),
		ops.WithLegacyKwargs(command.legacyKwargs),
		ops.WithMakeToken(command.makeToken),
		ops.WithTimeout(time.Duration(command.timeout)*time.Second),
		ops.WithFailIfIncomplete(command.failIfIncomplete),
		ops.WithRetcode(command.retcode),
	), nil
}

// commonOptions translates the persistent flags into operation options.
func commonOptions() []ops.Option {
	logger := newLogger(global.verbosity)

	return []ops.Option{
		ops.WithLogger(logger),
		ops.WithConfigPath(global.configPath),
		ops.WithProfile(global.profile),
		ops.WithOverrides(config.Profile{
			URL:             global.url,
			Username:        global.username,
			Password:        global.password,
			Eauth:           global.eauth,
			TokenExpire:     global.tokenExpire,
			Cache:           global.cache,
			IgnoreSSLErrors: global.ignoreSSL,
			CABundle:        global.caBundle,
			ClientCert:      global.clientCert,
			ClientCertKey:   global.clientCertKey,
		}),
		ops.WithPrompter(config.NewTerminalPrompter(global.nonInteractive)),
		ops.WithDebugHTTP(global.debugHTTP),
		ops.WithRunURI(global.runURI),
		ops.WithOutput(global.output, global.outputFile),
	}
}

// newLogger returns a console logger. Each -v lowers the level by one,
// starting at error.
func newLogger(verbosity int) *zerolog.Logger {
	level := zerolog.ErrorLevel - zerolog.Level(verbosity)
	if level < zerolog.TraceLevel {
		level = zerolog.TraceLevel
	}

	logger := log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level)

	return &logger
}

// ExitCode maps the result of a command to the exit code of the process.
func ExitCode(err error) int {
	if err == nil {
		return exitCode
	}

	if errors.IsAny(err,
		errUsage,
		lowstate.ErrMissingArgument,
		lowstate.ErrUnknownClient,
		retcode.ErrConflictingOptions,
		config.ErrInvalidConfig,
		config.ErrMissingCredentials,
		config.ErrUnknownProfile,
		ops.ErrUnknownFormat,
	) {
		return ExitUsage
	}

	return ExitFailure
}

// Execute starts the invocation of the command line interface.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "pepper error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
	}

	os.Exit(ExitCode(err))
}
