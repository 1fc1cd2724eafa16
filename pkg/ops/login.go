package ops

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/saltapi"
	"github.com/nicklasfrahm/pepper/pkg/session"
)

// Login obtains a token and stores it in the token cache, so that
// subsequent commands with --make-token do not need credentials. A
// valid cached token is reused. The token is printed.
func Login(ctx context.Context, options ...Option) (*saltapi.Token, error) {
	// Fetch the options for this operation.
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	profile, err := opts.resolveProfile()
	if err != nil {
		return nil, err
	}

	printer, err := NewPrinter(opts.Output, opts.Stdout, opts.OutputFile)
	if err != nil {
		return nil, err
	}
	defer printer.Close()

	_, token, err := opts.authenticate(ctx, profile, true)
	if err != nil {
		return nil, interrupted(opts, err)
	}

	if err := printer.Print(token); err != nil {
		return nil, err
	}

	return token, printer.Close()
}

// Logout invalidates the cached token on the server and removes the
// token cache.
func Logout(ctx context.Context, options ...Option) error {
	// Fetch the options for this operation.
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return err
	}

	profile, err := opts.resolveProfile()
	if err != nil {
		return err
	}

	logger := opts.Logger.With().Str("path", profile.Cache).Logger()

	token, err := session.LoadCached(profile.Cache)
	if err != nil {
		logger.Warn().Err(err).Msg("Removing unreadable token cache")
		return session.RemoveCached(profile.Cache)
	}
	if token == nil {
		logger.Info().Msg("Not logged in")
		return nil
	}

	client, err := opts.newClient(profile)
	if err != nil {
		return err
	}
	client.SetToken(token.Token)

	if err := client.Logout(ctx); err != nil {
		if !errors.Is(err, saltapi.ErrAuthDenied) {
			return interrupted(opts, err)
		}
		logger.Warn().Msg("Token was already invalid")
	}

	if err := session.RemoveCached(profile.Cache); err != nil {
		return err
	}

	logger.Info().Str("user", token.User).Msg("Logged out")

	return nil
}
