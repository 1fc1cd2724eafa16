package saltapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/lowstate"
)

// Login authenticates against the /login endpoint and stores the
// issued token in the client.
func (client *Client) Login(ctx context.Context, creds *Credentials) (*Token, error) {
	response := new(tokenResponse)
	if err := client.post(ctx, "/login", creds, response); err != nil {
		return nil, err
	}

	if len(response.Return) == 0 || response.Return[0].Token == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "login returned no token")
	}

	token := response.Return[0]
	client.SetToken(token.Token)

	client.logger().Info().
		Str("user", token.User).
		Str("eauth", token.Eauth).
		Float64("expire", token.Expire).
		Msg("Authenticated")

	return &token, nil
}

// Token requests a token from the /token endpoint. Tokens issued this
// way are used with the /run endpoint.
func (client *Client) Token(ctx context.Context, creds *Credentials) (*Token, error) {
	var tokens []Token
	if err := client.post(ctx, "/token", creds, &tokens); err != nil {
		return nil, err
	}

	if len(tokens) == 0 || tokens[0].Token == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "token endpoint returned no token")
	}

	token := tokens[0]
	client.SetToken(token.Token)

	return &token, nil
}

// Logout invalidates the current token on the server.
func (client *Client) Logout(ctx context.Context) error {
	if err := client.post(ctx, "/logout", nil, nil); err != nil {
		return err
	}

	client.SetToken("")

	return nil
}

// Low submits a list of low states and returns the response envelope.
func (client *Client) Low(ctx context.Context, lows []lowstate.LowState) (*Response, error) {
	path := "/"
	if client.RunURI {
		path = "/run"

		// The /run endpoint does not read the token header.
		token := client.currentToken()
		embedded := make([]lowstate.LowState, len(lows))
		for i, low := range lows {
			low.Extra = copyExtra(low.Extra)
			low.Set("token", token)
			embedded[i] = low
		}
		lows = embedded
	}

	response := new(Response)
	if err := client.post(ctx, path, lows, response); err != nil {
		return nil, err
	}

	if response.Return == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "response has no return")
	}

	return response, nil
}

// LookupJID fetches the returns of a job from the job cache.
func (client *Client) LookupJID(ctx context.Context, jid string) (map[string]interface{}, error) {
	low := lowstate.LowState{
		Client:   lowstate.ClientRunner,
		Function: "jobs.lookup_jid",
	}
	low.Set("jid", jid)

	response, err := client.Low(ctx, []lowstate.LowState{low})
	if err != nil {
		return nil, err
	}

	if len(response.Return) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "lookup returned no data")
	}

	returns, ok := response.Return[0].(map[string]interface{})
	if !ok {
		return nil, errors.Wrapf(ErrMalformedResponse, "lookup returned %T", response.Return[0])
	}

	return returns, nil
}

// ParseAsyncJob extracts the job id and the targeted minions from the
// response to a local_async submission.
func ParseAsyncJob(response *Response) (*AsyncJob, error) {
	if response == nil || len(response.Return) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "submission returned no job")
	}

	raw, ok := response.Return[0].(map[string]interface{})
	if !ok {
		return nil, errors.Wrapf(ErrMalformedResponse, "submission returned %T", response.Return[0])
	}
	if _, ok := raw["jid"]; !ok {
		return nil, errors.Wrap(ErrMalformedResponse, "submission returned no job id")
	}
	if _, ok := raw["minions"]; !ok {
		return nil, errors.Wrap(ErrMalformedResponse, "submission returned no minions")
	}

	job := new(AsyncJob)
	if err := decodeInto(raw, job); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "%v", err)
	}
	if job.JID == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "submission returned an empty job id")
	}

	return job, nil
}

// post sends data as JSON to path and decodes the response into out.
func (client *Client) post(ctx context.Context, path string, data interface{}, out interface{}) error {
	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(payload)
	}

	endpoint := client.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if path == "/" {
		endpoint = client.baseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token := client.currentToken(); token != "" {
		req.Header.Set("X-Auth-Token", token)
	}

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if version := resp.Header.Get("Salt-Version"); version != "" {
		client.mu.Lock()
		client.saltVersion = version
		client.mu.Unlock()
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Wrapf(ErrAuthDenied, "%s", path)
	case resp.StatusCode >= http.StatusInternalServerError:
		return errors.Wrapf(ErrServerError, "%s returned %d", path, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "%s: %v", path, err)
	}

	return nil
}

func copyExtra(extra map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(extra)+1)
	for key, value := range extra {
		copied[key] = value
	}
	return copied
}
