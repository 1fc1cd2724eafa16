// Package config resolves the salt-api connection profile from the
// configuration file, the environment and command line flags.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	// Program is used to configure the name of the configuration file.
	Program = "pepper"
	// DefaultProfile is the profile used if none is selected.
	DefaultProfile = "main"
	// DefaultURL is the salt-api address used if none is configured.
	DefaultURL = "https://localhost:8000"
	// DefaultEauth lets salt pick the external authentication backend.
	DefaultEauth = "auto"
	// EauthKerberos is the external authentication backend that does
	// not use a password.
	EauthKerberos = "kerberos"
)

var (
	// ErrInvalidConfig is returned if the resolved profile is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMissingCredentials is returned if credentials are required
	// but cannot be prompted for.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrUnknownProfile is returned if the selected profile does not
	// exist in the configuration file.
	ErrUnknownProfile = errors.New("unknown profile")
)

// Profile describes how to connect and authenticate to salt-api.
type Profile struct {
	URL             string `yaml:"saltapi-url" validate:"required,url,startswith=http"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Eauth           string `yaml:"eauth" validate:"required"`
	TokenExpire     int    `yaml:"token-expire" validate:"gte=0"`
	Cache           string `yaml:"cache"`
	IgnoreSSLErrors bool   `yaml:"ignore-ssl-errors"`
	CABundle        string `yaml:"ca-bundle"`
	ClientCert      string `yaml:"client-cert"`
	ClientCertKey   string `yaml:"client-cert-key" validate:"excluded_without=ClientCert"`
}

// File is the content of the configuration file, a set of profiles
// keyed by name.
type File map[string]Profile

// Profiles returns the sorted profile names.
func (f File) Profiles() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the profile used if nothing else is configured.
func Defaults() *Profile {
	return &Profile{
		URL:   DefaultURL,
		Eauth: DefaultEauth,
		Cache: DefaultCachePath(),
	}
}

// DefaultPath returns the path of the configuration file, which may be
// overridden with the PEPPERRC environment variable.
func DefaultPath() string {
	if path := os.Getenv("PEPPERRC"); path != "" {
		return path
	}
	return filepath.Join(homeDir(), "."+Program+"rc.yml")
}

// DefaultCachePath returns the path of the token cache.
func DefaultCachePath() string {
	return filepath.Join(homeDir(), "."+Program+"cache")
}

// LoadConfig sets up the configuration parser and loads
// the configuration file.
func LoadConfig(configFile string) (File, error) {
	configBytes, err := os.ReadFile(ExpandHome(configFile))
	if err != nil {
		return nil, err
	}

	// Parse YAML config into struct.
	config := make(File)
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: %v", configFile, err)
	}

	return config, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by the name used in the configuration file.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// Verify verifies the profile. All problems are reported at once.
func (p *Profile) Verify() error {
	if p == nil {
		return errors.Wrap(ErrInvalidConfig, "configuration empty")
	}

	var result *multierror.Error
	if err := validate.Struct(p); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return errors.Wrap(ErrInvalidConfig, err.Error())
		}

		for _, fieldError := range fieldErrors {
			result = multierror.Append(result, errors.Newf("%s: %s", fieldError.Field(), describe(fieldError)))
		}
	}

	if result == nil {
		return nil
	}

	result.ErrorFormat = func(errs []error) string {
		messages := make([]string, len(errs))
		for i, err := range errs {
			messages[i] = err.Error()
		}
		return strings.Join(messages, "; ")
	}

	return errors.WithHint(errors.Wrap(ErrInvalidConfig, result.Error()),
		"check the profile in the configuration file, the SALTAPI_* environment variables and the flags")
}

func describe(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "url", "startswith":
		return "must be an http:// or https:// URL"
	case "gte":
		return "must not be negative"
	case "excluded_without":
		return "requires client-cert"
	default:
		return "failed " + fieldError.Tag() + " validation"
	}
}

// ExpandHome replaces a leading ~ with the home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
