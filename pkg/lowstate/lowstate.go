// Package lowstate builds the request payloads, called low states, that
// salt-api executes on behalf of the client.
package lowstate

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Client is the salt-api client a low state is dispatched to.
type Client string

const (
	// ClientLocal runs an execution module on minions and waits for the
	// results.
	ClientLocal Client = "local"
	// ClientLocalAsync runs an execution module on minions and returns
	// the job id immediately.
	ClientLocalAsync Client = "local_async"
	// ClientLocalBatch runs an execution module on minions in batches.
	ClientLocalBatch Client = "local_batch"
	// ClientRunner runs a runner module on the master.
	ClientRunner Client = "runner"
	// ClientWheel runs a wheel module on the master.
	ClientWheel Client = "wheel"
	// ClientSSH runs an execution module over salt-ssh.
	ClientSSH Client = "ssh"
)

var (
	// Clients is a list of the supported clients.
	Clients = []Client{ClientLocal, ClientLocalAsync, ClientLocalBatch, ClientRunner, ClientWheel, ClientSSH}

	// ErrUnknownClient is returned for client names salt-api does not know.
	ErrUnknownClient = errors.New("unknown client")
)

// ParseClient validates a client name.
func ParseClient(name string) (Client, error) {
	for _, client := range Clients {
		if string(client) == name {
			return client, nil
		}
	}

	return "", errors.WithHint(
		errors.Wrapf(ErrUnknownClient, "%q", name),
		"use one of: local, local_async, local_batch, runner, wheel, ssh",
	)
}

// IsLocal reports whether the client targets minions through the
// local client family.
func (c Client) IsLocal() bool {
	return c == ClientLocal || c == ClientLocalAsync || c == ClientLocalBatch
}

// RequiresTarget reports whether the client needs a target expression.
func (c Client) RequiresTarget() bool {
	return c.IsLocal() || c == ClientSSH
}

// LowState is a single salt-api request. The well-known keys are typed
// fields, everything else lives in Extra and is flattened into the
// JSON object so that newer salt-api keywords pass through untouched.
type LowState struct {
	Client     Client                 `json:"client"`
	Target     string                 `json:"tgt,omitempty"`
	TargetType string                 `json:"tgt_type,omitempty"`
	Function   string                 `json:"fun,omitempty"`
	Arg        []interface{}          `json:"arg,omitempty"`
	Kwarg      map[string]interface{} `json:"kwarg,omitempty"`
	Batch      string                 `json:"batch,omitempty"`
	Timeout    int                    `json:"timeout,omitempty"`
	Saltenv    string                 `json:"saltenv,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

// alias strips the methods of LowState to avoid recursion while
// encoding and decoding.
type alias LowState

var knownKeys = map[string]bool{
	"client": true, "tgt": true, "tgt_type": true, "fun": true, "arg": true,
	"kwarg": true, "batch": true, "timeout": true, "saltenv": true,
}

// Set stores an additional key in the extension bag.
func (low *LowState) Set(key string, value interface{}) {
	if low.Extra == nil {
		low.Extra = make(map[string]interface{})
	}
	low.Extra[key] = value
}

// MarshalJSON flattens the typed fields and the extension bag into a
// single JSON object. Typed fields win over extension keys, except for
// an empty client when the extension bag carries one.
func (low LowState) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(alias(low))
	if err != nil {
		return nil, err
	}

	if len(low.Extra) == 0 {
		return typed, nil
	}

	merged := make(map[string]interface{}, len(low.Extra)+len(knownKeys))
	for key, value := range low.Extra {
		merged[key] = value
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if _, ok := low.Extra[key]; ok && key == "client" && low.Client == "" {
			continue
		}
		merged[key] = value
	}

	return json.Marshal(merged)
}

// UnmarshalJSON decodes the well-known keys into the typed fields and
// keeps every other key in the extension bag. A well-known key whose
// value would not be encoded again unchanged, like a list target or an
// explicit zero timeout, is kept in the extension bag as well. Untyped
// numbers are kept as json.Number so that they are re-encoded verbatim.
func (low *LowState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	typed := make(map[string]json.RawMessage, len(raw))
	extra := make(map[string]interface{})
	for key, value := range raw {
		if knownKeys[key] && fitsField(key, value) {
			typed[key] = value
			continue
		}

		var decoded interface{}
		if err := decodeNumbers(value, &decoded); err != nil {
			return err
		}
		extra[key] = decoded
	}

	encoded, err := json.Marshal(typed)
	if err != nil {
		return err
	}

	var fields alias
	if err := decodeNumbers(encoded, &fields); err != nil {
		return err
	}

	*low = LowState(fields)
	low.Extra = nil
	if len(extra) > 0 {
		low.Extra = extra
	}

	return nil
}

// fitsField reports whether value decodes into the typed field for key
// and is encoded back to the same JSON.
func fitsField(key string, value json.RawMessage) bool {
	object, err := json.Marshal(map[string]json.RawMessage{key: value})
	if err != nil {
		return false
	}

	var field alias
	if err := decodeNumbers(object, &field); err != nil {
		return false
	}

	encoded, err := json.Marshal(field)
	if err != nil {
		return false
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return false
	}

	got, ok := fields[key]
	if !ok {
		return false
	}

	var want, have bytes.Buffer
	if json.Compact(&want, value) != nil || json.Compact(&have, got) != nil {
		return false
	}

	return bytes.Equal(want.Bytes(), have.Bytes())
}

func decodeNumbers(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}
