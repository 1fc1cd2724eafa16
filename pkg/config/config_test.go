package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicklasfrahm/pepper/pkg/config"
)

const rcFile = `
main:
  saltapi-url: https://salt.example.com:8000
  username: saltdev
  password: saltdev
  eauth: pam
  cache: ~/.cache/pepper
lab:
  saltapi-url: http://lab.example.com:8000
  username: labuser
  eauth: ldap
  token-expire: 94670856
  ignore-ssl-errors: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".pepperrc.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func env(vars map[string]string) config.LookupEnv {
	return func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	}
}

func withPath(path string) config.Option {
	return func(options *config.Options) error {
		options.Path = path
		return nil
	}
}

func TestLoadConfig(t *testing.T) {
	file, err := config.LoadConfig(writeConfig(t, rcFile))
	require.NoError(t, err)

	assert.Equal(t, []string{"lab", "main"}, file.Profiles())
	assert.Equal(t, "ldap", file["lab"].Eauth)
	assert.Equal(t, 94670856, file["lab"].TokenExpire)
	assert.True(t, file["lab"].IgnoreSSLErrors)

	_, err = config.LoadConfig(writeConfig(t, "main: [broken"))
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestResolve(t *testing.T) {
	path := writeConfig(t, rcFile)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name    string
		options []config.Option
		check   func(t *testing.T, profile *config.Profile)
		wantErr error
	}{
		{
			name:    "defaults without file",
			options: []config.Option{withPath(filepath.Join(t.TempDir(), "missing.yml")), config.WithLookupEnv(env(nil))},
			check: func(t *testing.T, profile *config.Profile) {
				assert.Equal(t, config.DefaultURL, profile.URL)
				assert.Equal(t, config.DefaultEauth, profile.Eauth)
				assert.Equal(t, config.DefaultCachePath(), profile.Cache)
			},
		},
		{
			name:    "main profile",
			options: []config.Option{config.WithConfigPath(path), config.WithLookupEnv(env(nil))},
			check: func(t *testing.T, profile *config.Profile) {
				assert.Equal(t, "https://salt.example.com:8000", profile.URL)
				assert.Equal(t, "saltdev", profile.Username)
				assert.Equal(t, "pam", profile.Eauth)
				assert.Equal(t, filepath.Join(home, ".cache/pepper"), profile.Cache)
			},
		},
		{
			name:    "selected profile",
			options: []config.Option{config.WithConfigPath(path), config.WithProfile("lab"), config.WithLookupEnv(env(nil))},
			check: func(t *testing.T, profile *config.Profile) {
				assert.Equal(t, "http://lab.example.com:8000", profile.URL)
				assert.Equal(t, "labuser", profile.Username)
				assert.Empty(t, profile.Password)
				assert.True(t, profile.IgnoreSSLErrors)
			},
		},
		{
			name: "environment overrides file",
			options: []config.Option{config.WithConfigPath(path), config.WithLookupEnv(env(map[string]string{
				config.EnvUser:        "envuser",
				config.EnvPass:        "envpass",
				config.EnvTokenExpire: "3600",
				config.EnvCache:       "/tmp/pepper-cache",
			}))},
			check: func(t *testing.T, profile *config.Profile) {
				assert.Equal(t, "https://salt.example.com:8000", profile.URL)
				assert.Equal(t, "envuser", profile.Username)
				assert.Equal(t, "envpass", profile.Password)
				assert.Equal(t, 3600, profile.TokenExpire)
				assert.Equal(t, "/tmp/pepper-cache", profile.Cache)
			},
		},
		{
			name: "overrides win",
			options: []config.Option{
				config.WithConfigPath(path),
				config.WithLookupEnv(env(map[string]string{config.EnvURL: "https://env.example.com"})),
				config.WithOverrides(&config.Profile{URL: "https://flag.example.com", Eauth: "sharedsecret"}),
			},
			check: func(t *testing.T, profile *config.Profile) {
				assert.Equal(t, "https://flag.example.com", profile.URL)
				assert.Equal(t, "sharedsecret", profile.Eauth)
				assert.Equal(t, "saltdev", profile.Username)
			},
		},
		{
			name:    "required file missing",
			options: []config.Option{config.WithConfigPath(filepath.Join(t.TempDir(), "missing.yml"))},
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "unknown profile",
			options: []config.Option{config.WithConfigPath(path), config.WithProfile("prod")},
			wantErr: config.ErrUnknownProfile,
		},
		{
			name: "invalid token expire in environment",
			options: []config.Option{withPath(path), config.WithLookupEnv(env(map[string]string{
				config.EnvTokenExpire: "forever",
			}))},
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := config.Resolve(tt.options...)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, profile)
		})
	}
}

func TestProfileVerify(t *testing.T) {
	valid := config.Profile{URL: "https://salt:8000", Eauth: "pam"}
	assert.NoError(t, valid.Verify())

	invalid := config.Profile{URL: "salt:8000", TokenExpire: -1, ClientCertKey: "/tmp/key.pem"}
	err := invalid.Verify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	for _, field := range []string{"saltapi-url", "eauth", "token-expire", "client-cert-key"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.NotEmpty(t, errors.GetAllHints(err))

	var empty *config.Profile
	assert.True(t, errors.Is(empty.Verify(), config.ErrInvalidConfig))
}

func TestProfileCredentials(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		profile := config.Profile{Username: "saltdev", Password: "saltdev", Eauth: "pam", TokenExpire: 3600}

		creds, err := profile.Credentials(nil)
		require.NoError(t, err)
		assert.Equal(t, "saltdev", creds.Username)
		require.NotNil(t, creds.Password)
		assert.Equal(t, "saltdev", *creds.Password)
		require.NotNil(t, creds.TokenExpire)
		assert.Equal(t, 3600, *creds.TokenExpire)
	})

	t.Run("kerberos has no password", func(t *testing.T) {
		profile := config.Profile{Username: "saltdev", Password: "ignored", Eauth: config.EauthKerberos}

		creds, err := profile.Credentials(nil)
		require.NoError(t, err)
		assert.Nil(t, creds.Password)
		assert.Nil(t, creds.TokenExpire)
	})

	t.Run("prompted", func(t *testing.T) {
		var out bytes.Buffer
		prompter := &config.Prompter{
			In:  strings.NewReader("saltdev\n"),
			Out: &out,
			ReadPassword: func() ([]byte, error) {
				return []byte("s3cret"), nil
			},
		}
		profile := config.Profile{Eauth: "pam"}

		creds, err := profile.Credentials(prompter)
		require.NoError(t, err)
		assert.Equal(t, "saltdev", creds.Username)
		assert.Equal(t, "s3cret", *creds.Password)
		assert.Contains(t, out.String(), "Username: ")
		assert.Contains(t, out.String(), "Password: ")
		assert.NotContains(t, out.String(), "s3cret")
	})

	t.Run("non interactive", func(t *testing.T) {
		profile := config.Profile{Username: "saltdev", Eauth: "pam"}

		_, err := profile.Credentials(&config.Prompter{NonInteractive: true})
		assert.True(t, errors.Is(err, config.ErrMissingCredentials))
	})
}
