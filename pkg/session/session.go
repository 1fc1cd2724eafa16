// Package session manages the salt-api token of an invocation,
// including the optional on-disk token cache.
package session

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/saltapi"
)

// LoginFunc exchanges credentials for a token, for example
// (*saltapi.Client).Login.
type LoginFunc func(ctx context.Context, creds *saltapi.Credentials) (*saltapi.Token, error)

// CredentialsFunc resolves the credentials. It is only called if a
// fresh login is required, which allows it to prompt the user.
type CredentialsFunc func() (*saltapi.Credentials, error)

// Session obtains a token either from the cache or by logging in.
type Session struct {
	*Options

	login       LoginFunc
	credentials CredentialsFunc
}

// New creates a new session.
func New(login LoginFunc, credentials CredentialsFunc, options ...Option) (*Session, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &Session{
		Options:     opts,
		login:       login,
		credentials: credentials,
	}, nil
}

// Authenticate resolves the credentials and logs in.
func (s *Session) Authenticate(ctx context.Context) (*saltapi.Token, error) {
	creds, err := s.credentials()
	if err != nil {
		return nil, err
	}

	token, err := s.login(ctx, creds)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// Token returns a token that is valid for at least the configured
// margin. A cached token is reused if possible, otherwise a new one is
// requested and written to the cache. Failing to write the cache is
// not fatal.
func (s *Session) Token(ctx context.Context) (*saltapi.Token, error) {
	useCache := s.MakeToken && s.CachePath != ""

	if useCache {
		if token := s.cached(); token != nil {
			return token, nil
		}
	}

	token, err := s.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := SaveCached(s.CachePath, token); err != nil {
			s.Logger.Error().Err(err).Str("path", s.CachePath).Msg("Unable to save token")
		} else {
			s.Logger.Debug().Str("path", s.CachePath).Msg("Saved token")
		}
	}

	return token, nil
}

// cached returns the cached token if it is still valid. Corrupt cache
// files are deleted.
func (s *Session) cached() *saltapi.Token {
	logger := s.Logger.With().Str("path", s.CachePath).Logger()

	token, err := LoadCached(s.CachePath)
	if err != nil {
		logger.Error().Err(err).Msg("Unable to load token")

		if errors.Is(err, ErrCorruptCache) {
			if err := RemoveCached(s.CachePath); err != nil {
				logger.Error().Err(err).Msg("Unable to remove token")
			}
		}
		return nil
	}

	if token == nil {
		return nil
	}

	if !IsValid(token, s.Now(), s.Margin) {
		logger.Info().Float64("expire", token.Expire).Msg("Token expired")
		return nil
	}

	logger.Debug().Str("user", token.User).Msg("Using cached token")

	return token
}
