package lowstate

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/jsonc"
)

// ErrInvalidPayload is returned when a raw JSON payload cannot be used
// as a list of low states.
var ErrInvalidPayload = errors.New("invalid payload")

// ParsePayload decodes a raw JSON document into low states. The
// document may be a single object or a list of objects and is used
// verbatim, no client specific validation is applied.
func ParsePayload(data []byte) ([]LowState, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "empty document")
	}

	var lows []LowState
	if data[0] == '{' {
		var low LowState
		if err := json.Unmarshal(data, &low); err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
		}
		lows = append(lows, low)
	} else if err := json.Unmarshal(data, &lows); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}

	if len(lows) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "no low states in document")
	}

	return lows, nil
}

// LoadPayloadFile reads a JSON payload from a file. Comments and
// trailing commas are stripped before decoding.
func LoadPayloadFile(path string) ([]LowState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}

	return ParsePayload(jsonc.ToJSON(data))
}
