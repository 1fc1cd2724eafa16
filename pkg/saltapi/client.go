// Package saltapi is a thin client for the rest_cherrypy interface of
// salt-api.
package saltapi

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Client sends JSON requests to salt-api and holds the token of the
// current session.
type Client struct {
	*Options

	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	saltVersion string
}

// NewClient creates a client for the salt-api instance at apiURL.
func NewClient(apiURL string, options ...Option) (*Client, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		return nil, errors.Wrapf(ErrInvalidURL, "%q", apiURL)
	}

	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidURL, "%v", err)
	}

	client := &Client{
		Options: opts,
		baseURL: baseURL,
	}

	tlsConfig, err := client.newTLSConfig()
	if err != nil {
		return nil, err
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
	}
	if opts.DebugHTTP {
		transport = &debugTransport{next: transport, logger: opts.Logger}
	}

	client.httpClient = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}

	return client, nil
}

// newTLSConfig creates the TLS configuration. Ignoring certificate
// errors takes precedence over a custom CA bundle, which in turn takes
// precedence over the system trust store.
func (client *Client) newTLSConfig() (*tls.Config, error) {
	config := &tls.Config{}

	if client.TLS.IgnoreErrors {
		client.Logger.Warn().Msg("Skipping certificate verification is insecure!")
		client.Logger.Warn().Msg("This allows for person-in-the-middle attacks!")
		config.InsecureSkipVerify = true
	} else if client.TLS.CABundle != "" {
		bundle, err := os.ReadFile(expandHome(client.TLS.CABundle))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CA bundle")
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(bundle) {
			return nil, errors.Newf("no certificates found in CA bundle %s", client.TLS.CABundle)
		}
		config.RootCAs = pool
	}

	if client.TLS.ClientCert != "" {
		// The key may be bundled with the certificate.
		key := client.TLS.ClientKey
		if key == "" {
			key = client.TLS.ClientCert
		}

		cert, err := tls.LoadX509KeyPair(expandHome(client.TLS.ClientCert), expandHome(key))
		if err != nil {
			return nil, errors.Wrap(err, "failed to load client certificate")
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// SetToken sets the token that authenticates subsequent requests.
func (client *Client) SetToken(token string) {
	client.mu.Lock()
	defer client.mu.Unlock()

	client.token = token
}

// SaltVersion returns the salt release reported by the server, or an
// empty string if no response carried a version header yet.
func (client *Client) SaltVersion() string {
	client.mu.Lock()
	defer client.mu.Unlock()

	return client.saltVersion
}

// URL returns the base URL of the API.
func (client *Client) URL() string {
	return client.baseURL.String()
}

func (client *Client) currentToken() string {
	client.mu.Lock()
	defer client.mu.Unlock()

	return client.token
}

// expandHome resolves a leading tilde in a path.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return home + path[1:]
}

// logger returns a logger scoped to the API endpoint.
func (client *Client) logger() *zerolog.Logger {
	logger := client.Logger.With().Str("api", client.baseURL.Host).Logger()
	return &logger
}
