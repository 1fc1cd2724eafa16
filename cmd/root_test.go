package cmd

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nicklasfrahm/pepper/pkg/config"
	"github.com/nicklasfrahm/pepper/pkg/lowstate"
	"github.com/nicklasfrahm/pepper/pkg/retcode"
	"github.com/nicklasfrahm/pepper/pkg/saltapi"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing argument", err: errors.Wrap(lowstate.ErrMissingArgument, "no target"), want: ExitUsage},
		{name: "unknown client", err: lowstate.ErrUnknownClient, want: ExitUsage},
		{name: "conflicting options", err: retcode.ErrConflictingOptions, want: ExitUsage},
		{name: "invalid config", err: config.ErrInvalidConfig, want: ExitUsage},
		{name: "missing credentials", err: config.ErrMissingCredentials, want: ExitUsage},
		{name: "flag error", err: errors.Mark(errors.New("unknown flag: --nope"), errUsage), want: ExitUsage},
		{name: "auth denied", err: saltapi.ErrAuthDenied, want: ExitFailure},
		{name: "server error", err: errors.Wrap(saltapi.ErrServerError, "/"), want: ExitFailure},
		{name: "invalid payload", err: lowstate.ErrInvalidPayload, want: ExitFailure},
		{name: "other", err: context.DeadlineExceeded, want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}

	exitCode = 127
	t.Cleanup(func() { exitCode = 0 })
	assert.Equal(t, 127, ExitCode(nil))
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, newLogger(0).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, newLogger(1).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(2).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, newLogger(3).GetLevel())
	assert.Equal(t, zerolog.TraceLevel, newLogger(4).GetLevel())
	assert.Equal(t, zerolog.TraceLevel, newLogger(9).GetLevel())
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"timeout", "client", "fail-if-incomplete", "fail-any", "json-file", "pcre", "compound"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}
	for _, name := range []string{"config", "profile", "saltapi-url", "ignore-ssl-errors", "output"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, rootCmd.Flags().ShorthandLookup("T"))
}

func TestNormalizeFlag(t *testing.T) {
	assert.NotNil(t, rootCmd.Flags().Lookup("fail_if_incomplete"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("saltapi_url"))
}
