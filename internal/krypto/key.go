package krypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	keyLen = 32

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidKey = errors.New("invalid key")

// Key is a 32 byte secret key. It's used for data encryption,
// blind indexes and signing of access tokens.
type Key struct {
	value []byte
}

// ParseKey expects a hex encoded key of 32 bytes (64 characters as hex).
func ParseKey(raw string) (Key, error) {
	if len(raw) != keyLen*2 {
		return Key{}, ErrInvalidKey
	}

	k, err := hex.DecodeString(raw)
	if err != nil {
		return Key{}, ErrInvalidKey
	}

	return Key{
		value: k,
	}, nil
}

// ParseKeys parses a comma separated list of hex encoded keys.
func ParseKeys(raw string) ([]Key, error) {
	parts := strings.Split(raw, ",")
	keys := make([]Key, 0, len(parts))
	for i, p := range parts {
		k, err := ParseKey(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (k Key) Format(f fmt.State, verb rune) {
	_, _ = f.Write([]byte(SecretMarker))
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// LogValue implements the slog.LogValuer interface.
func (k Key) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// SecretValue returns the key as a byte slice. This is an escape
// hatch for third party packages that need the raw key.
func (k Key) SecretValue() []byte {
	return k.value
}
