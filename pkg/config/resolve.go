package config

import (
	"os"
	"strconv"

	"dario.cat/mergo"
	"github.com/cockroachdb/errors"
)

// Environment variables read by FromEnvironment.
const (
	EnvURL         = "SALTAPI_URL"
	EnvUser        = "SALTAPI_USER"
	EnvPass        = "SALTAPI_PASS"
	EnvEauth       = "SALTAPI_EAUTH"
	EnvTokenExpire = "SALTAPI_TOKEN_EXPIRE"
	EnvCache       = "PEPPERCACHE"
)

// Resolve layers the defaults, the selected profile of the
// configuration file, the environment and the overrides, in this order
// of increasing precedence, and verifies the result.
func Resolve(options ...Option) (*Profile, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	profile := Defaults()

	fromFile, err := opts.profileFromFile()
	if err != nil {
		return nil, err
	}

	fromEnv, err := FromEnvironment(opts.LookupEnv)
	if err != nil {
		return nil, err
	}

	for _, layer := range []*Profile{fromFile, fromEnv, opts.Overrides} {
		if layer == nil {
			continue
		}
		if err := mergo.Merge(profile, layer, mergo.WithOverride); err != nil {
			return nil, errors.Wrap(err, "failed to merge configuration")
		}
	}

	profile.Cache = ExpandHome(profile.Cache)
	profile.CABundle = ExpandHome(profile.CABundle)
	profile.ClientCert = ExpandHome(profile.ClientCert)
	profile.ClientCertKey = ExpandHome(profile.ClientCertKey)

	if err := profile.Verify(); err != nil {
		return nil, err
	}

	opts.Logger.Debug().
		Str("url", profile.URL).
		Str("username", profile.Username).
		Str("eauth", profile.Eauth).
		Msg("Resolved configuration")

	return profile, nil
}

func (o *Options) profileFromFile() (*Profile, error) {
	logger := o.Logger.With().Str("path", o.Path).Logger()

	file, err := LoadConfig(o.Path)
	if err != nil {
		if os.IsNotExist(err) && !o.PathRequired {
			logger.Debug().Msg("Configuration file not found")
			return nil, nil
		}
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrInvalidConfig, "configuration file %s does not exist", o.Path)
		}
		return nil, err
	}

	profile, ok := file[o.Profile]
	if !ok {
		if o.Profile == DefaultProfile {
			logger.Debug().Str("profile", o.Profile).Msg("Profile not found")
			return nil, nil
		}
		return nil, errors.WithHintf(errors.Wrapf(ErrUnknownProfile, "%s", o.Profile),
			"available profiles: %v", file.Profiles())
	}

	logger.Debug().Str("profile", o.Profile).Msg("Loaded profile")

	return &profile, nil
}

// FromEnvironment reads the SALTAPI_* and PEPPERCACHE variables.
func FromEnvironment(lookup LookupEnv) (*Profile, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) string {
		value, _ := lookup(key)
		return value
	}

	profile := &Profile{
		URL:      get(EnvURL),
		Username: get(EnvUser),
		Password: get(EnvPass),
		Eauth:    get(EnvEauth),
		Cache:    get(EnvCache),
	}

	if raw := get(EnvTokenExpire); raw != "" {
		expire, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "%s: %q is not a number of seconds", EnvTokenExpire, raw)
		}
		profile.TokenExpire = expire
	}

	return profile, nil
}
