package saltapi

import (
	"net/http"
	"net/http/httputil"
	"regexp"

	"github.com/rs/zerolog"
)

var (
	tokenHeader = regexp.MustCompile(`(?mi)^(X-Auth-Token:\s*).*$`)
	secretField = regexp.MustCompile(`("(?:password|token)"\s*:\s*)"(?:[^"\\]|\\.)*"`)
)

// debugTransport dumps the HTTP exchange to the logger with secrets
// redacted.
type debugTransport struct {
	next   http.RoundTripper
	logger *zerolog.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.logger.Debug().Msg("HTTP request\n" + redact(dump))
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if dump, err := httputil.DumpResponse(resp, true); err == nil {
		t.logger.Debug().Msg("HTTP response\n" + redact(dump))
	}

	return resp, nil
}

func redact(dump []byte) string {
	dump = tokenHeader.ReplaceAll(dump, []byte("${1}<redacted>"))
	dump = secretField.ReplaceAll(dump, []byte(`${1}"<redacted>"`))
	return string(dump)
}
