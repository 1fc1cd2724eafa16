package ops

import (
	"context"

	"github.com/hashicorp/go-version"

	"github.com/nicklasfrahm/pepper/pkg/config"
	"github.com/nicklasfrahm/pepper/pkg/saltapi"
	"github.com/nicklasfrahm/pepper/pkg/session"
)

// legacyKwargsBefore is the first salt release that parses key=value
// arguments of runner and wheel functions on its own.
var legacyKwargsBefore = version.Must(version.NewVersion("3000"))

// resolveProfile layers the configuration sources of the options.
func (o *Options) resolveProfile() (*config.Profile, error) {
	overrides := o.Overrides

	return config.Resolve(
		config.WithLogger(o.Logger),
		config.WithConfigPath(o.ConfigPath),
		config.WithProfile(o.Profile),
		config.WithLookupEnv(o.LookupEnv),
		config.WithOverrides(&overrides),
	)
}

// newClient creates a salt-api client for the profile.
func (o *Options) newClient(profile *config.Profile) (*saltapi.Client, error) {
	return saltapi.NewClient(profile.URL,
		saltapi.WithLogger(o.Logger),
		saltapi.WithDebugHTTP(o.DebugHTTP),
		saltapi.WithRunURI(o.RunURI),
		saltapi.WithTLS(saltapi.TLSConfig{
			IgnoreErrors: profile.IgnoreSSLErrors,
			CABundle:     profile.CABundle,
			ClientCert:   profile.ClientCert,
			ClientKey:    profile.ClientCertKey,
		}),
	)
}

// newSession creates a session that logs in with the client. Tokens
// for the /run endpoint are requested from /token.
func (o *Options) newSession(client *saltapi.Client, profile *config.Profile, makeToken bool) (*session.Session, error) {
	login := client.Login
	if o.RunURI {
		login = client.Token
	}

	credentials := func() (*saltapi.Credentials, error) {
		return profile.Credentials(o.Prompter)
	}

	return session.New(login, credentials,
		session.WithLogger(o.Logger),
		session.WithCache(profile.Cache, makeToken),
	)
}

// authenticate connects to salt-api and obtains a token.
func (o *Options) authenticate(ctx context.Context, profile *config.Profile, makeToken bool) (*saltapi.Client, *saltapi.Token, error) {
	client, err := o.newClient(profile)
	if err != nil {
		return nil, nil, err
	}

	sess, err := o.newSession(client, profile, makeToken)
	if err != nil {
		return nil, nil, err
	}

	token, err := sess.Token(ctx)
	if err != nil {
		return nil, nil, err
	}
	client.SetToken(token.Token)

	return client, token, nil
}

// isLegacyServer reports whether the salt release of the server
// predates keyword argument parsing. Unknown versions are not legacy.
func isLegacyServer(saltVersion string) bool {
	if saltVersion == "" {
		return false
	}

	v, err := version.NewVersion(saltVersion)
	if err != nil {
		return false
	}

	return v.LessThan(legacyKwargsBefore)
}
