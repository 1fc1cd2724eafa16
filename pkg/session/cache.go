package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/saltapi"
)

// ErrCorruptCache is returned when the token cache exists but cannot
// be decoded.
var ErrCorruptCache = errors.New("corrupt token cache")

// LoadCached reads a token from the cache file. A missing file is not
// an error, in that case the token is nil.
func LoadCached(path string) (*saltapi.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read token cache")
	}

	token := new(saltapi.Token)
	if err := json.Unmarshal(data, token); err != nil {
		return nil, errors.Wrapf(ErrCorruptCache, "%s: %v", path, err)
	}

	return token, nil
}

// IsValid reports whether the token expires later than now plus margin.
func IsValid(token *saltapi.Token, now time.Time, margin time.Duration) bool {
	if token == nil {
		return false
	}

	deadline := float64(now.Add(margin).UnixNano()) / float64(time.Second)

	return token.Expire > deadline
}

// SaveCached writes the token to the cache file, readable by the
// current user only.
func SaveCached(path string, token *saltapi.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}

	return writePrivate(path, data)
}

// RemoveCached deletes the cache file if it exists.
func RemoveCached(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove token cache")
	}
	return nil
}

// writePrivate replaces the file at path with data. The content is
// written to a temporary file in the same directory, which is created
// with mode 0600 independent of the umask, and then renamed.
func writePrivate(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pepper-token-*")
	if err != nil {
		return errors.Wrap(err, "failed to create token cache")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to restrict token cache permissions")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write token cache")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write token cache")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to replace token cache")
	}

	return nil
}
