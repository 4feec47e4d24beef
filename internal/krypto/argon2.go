package krypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Variant     = "argon2id"
	argon2MemoryKiB   = 46 * 1024
	argon2Iterations  = 1
	argon2Parallelism = 1
	argon2SaltLen     = 16
	argon2KeyLen      = 32
)

// ErrInvalidInput indicates the input can't be hashed or parsed as a hash.
var ErrInvalidInput = errors.New("invalid input")

// Argon2Hash is an argon2id hash together with the parameters
// that were used to create it.
//
// The string format is the one used by the reference implementation:
// $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
type Argon2Hash struct {
	Variant     string
	Version     int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// HashArgon2 hashes data using argon2id with a random salt.
func HashArgon2(data []byte) (Argon2Hash, error) {
	salt, err := genRandomBytes(argon2SaltLen)
	if err != nil {
		return Argon2Hash{}, err
	}

	return hashArgon2(data, salt)
}

// HashArgon2WithKey hashes data using argon2id with the key as salt.
// The result is deterministic for the same data and key, which makes it
// usable as a blind index.
func HashArgon2WithKey(data []byte, key Key) (Argon2Hash, error) {
	if len(key.value) == 0 {
		return Argon2Hash{}, fmt.Errorf("empty key: %w", ErrInvalidInput)
	}

	return hashArgon2(data, key.value)
}

func hashArgon2(data, salt []byte) (Argon2Hash, error) {
	if len(data) == 0 {
		return Argon2Hash{}, fmt.Errorf("nothing to hash: %w", ErrInvalidInput)
	}

	h := Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		MemoryKiB:   argon2MemoryKiB,
		Iterations:  argon2Iterations,
		Parallelism: argon2Parallelism,
		Salt:        salt,
	}

	h.Hash = argon2.IDKey(data, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, argon2KeyLen)

	return h, nil
}

// ParseArgon2Hash parses the string format of an argon2id hash.
func ParseArgon2Hash(raw string) (Argon2Hash, error) {
	parts := strings.Split(raw, "$")
	// The leading $ produces an empty first part.
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, fmt.Errorf("expected 6 parts: %w", ErrInvalidInput)
	}

	h := Argon2Hash{
		Variant: parts[1],
	}

	if h.Variant != argon2Variant {
		return Argon2Hash{}, fmt.Errorf("unsupported variant %q: %w", h.Variant, ErrInvalidInput)
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return Argon2Hash{}, fmt.Errorf("missing version: %w", ErrInvalidInput)
	}

	var err error
	h.Version, err = strconv.Atoi(version)
	if err != nil || h.Version != argon2.Version {
		return Argon2Hash{}, fmt.Errorf("unsupported version %q: %w", version, ErrInvalidInput)
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return Argon2Hash{}, fmt.Errorf("expected 3 parameters: %w", ErrInvalidInput)
	}

	memory, err := parseParam(params[0], "m=", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	iterations, err := parseParam(params[1], "t=", 32)
	if err != nil {
		return Argon2Hash{}, err
	}

	parallelism, err := parseParam(params[2], "p=", 8)
	if err != nil {
		return Argon2Hash{}, err
	}

	h.MemoryKiB = uint32(memory)
	h.Iterations = uint32(iterations)
	h.Parallelism = uint8(parallelism)

	// The salt is empty for blind indexes.
	if parts[4] != "" {
		h.Salt, err = base64.RawStdEncoding.DecodeString(parts[4])
		if err != nil {
			return Argon2Hash{}, fmt.Errorf("invalid salt encoding: %w", ErrInvalidInput)
		}
	}

	h.Hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(h.Hash) == 0 {
		return Argon2Hash{}, fmt.Errorf("invalid hash encoding: %w", ErrInvalidInput)
	}

	return h, nil
}

func parseParam(raw, prefix string, bitSize int) (uint64, error) {
	v, ok := strings.CutPrefix(raw, prefix)
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", prefix, ErrInvalidInput)
	}

	n, err := strconv.ParseUint(v, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter %q: %w", prefix, ErrInvalidInput)
	}

	return n, nil
}

// MatchBytes reports whether data hashes to h using the parameters of h.
func (h Argon2Hash) MatchBytes(data []byte) bool {
	if len(h.Hash) == 0 {
		return false
	}

	//nolint:gosec // hash lengths are bounded by what we produce.
	other := argon2.IDKey(data, h.Salt, h.Iterations, h.MemoryKiB, h.Parallelism, uint32(len(h.Hash)))
	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

// String returns the string format of the hash.
func (h Argon2Hash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant,
		h.Version,
		h.MemoryKiB,
		h.Iterations,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed
	return nil
}

// Scan implements sql.Scanner.
func (h *Argon2Hash) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return h.UnmarshalText([]byte(v))
	case []byte:
		return h.UnmarshalText(v)
	default:
		return fmt.Errorf("can't scan %T into argon2 hash", src)
	}
}

func genRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}
