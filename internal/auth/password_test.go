package auth_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/krypto"
)

func Test_Password_ParseHashMatch(t *testing.T) {
	okPasswords := map[string]string{
		"ok, single character":  "x",
		"ok, short":             "test123",
		"ok, long passphrase":   "correct horse battery staple",
		"ok, non-ascii":         "wachtwoord🥸",
		"ok, max length":        stringOfLen(512),
		"ok, surrounding space": " spaced ",
	}

	for name, raw := range okPasswords {
		t.Run(name, func(t *testing.T) {
			pwd, err := auth.ParsePassword(raw)
			if err != nil {
				t.Fatalf("failed to parse password: %v", err)
			}

			hash, err := pwd.Hash()
			if err != nil {
				t.Fatalf("failed to hash password: %v", err)
			}

			// We can't compare the resulting hash to a known value, because of the random salt,
			// so we check if the password matches its own hash instead.
			if !pwd.Match(hash) {
				t.Errorf("password does not match own hash\n%+v", hash)
			}

			if hash.String() == raw || string(hash.Hash) == raw {
				t.Errorf("hash equals the plaintext password")
			}
		})
	}

	t.Run("ok, password does not match hash", func(t *testing.T) {
		pwd := must(auth.ParsePassword("reallyStrongPassword1"))
		hash := must(pwd.Hash())

		other := must(auth.ParsePassword("reallyStrongPassword2"))
		if other.Match(hash) {
			t.Errorf("password\n%s\nshould not match hash\n%+v", other, hash)
		}
	})

	t.Run("ok, password matches hash with different settings", func(t *testing.T) {
		// Taken these settings from the tests in the argon2 package.
		hash := krypto.Argon2Hash{
			Variant:     "argon2id",
			Version:     19,
			MemoryKiB:   64,
			Iterations:  1,
			Parallelism: 1,
			Salt:        []byte("somesalt"),
			Hash:        mustHexDecodeString(t, "655ad15eac652dc59f7170a7332bf49b8469be1fdb9c28bb"),
		}

		pwd := must(auth.ParsePassword("password"))
		if !pwd.Match(hash) {
			t.Errorf("password\n%s\ndoes not match hash\n%+v", pwd, hash)
		}
	})

	failParsing := map[string]string{
		"fail, empty":    "",
		"fail, too long": stringOfLen(513),
	}

	for name, raw := range failParsing {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParsePassword(raw)
			if err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func Test_Password_PreventExposure(t *testing.T) {
	raw := "12345678"
	pwd := must(auth.ParsePassword(raw))

	assert := func(t *testing.T, s string) {
		t.Helper()
		if s != krypto.SecretMarker {
			t.Errorf("wanted\n%s\ngot\n%s\n", krypto.SecretMarker, s)
		}
	}

	t.Run("ok, fmt", func(t *testing.T) {
		assert(t, fmt.Sprintf("%s", pwd)) //nolint:gosimple
		assert(t, fmt.Sprintf("%d", pwd))
		assert(t, fmt.Sprintf("%v", pwd))
		assert(t, fmt.Sprintf("%#v", pwd))
	})

	t.Run("ok, marshal as text", func(t *testing.T) {
		b, err := pwd.MarshalText()
		if err != nil {
			t.Fatalf("failed to marshal as text: %v", err)
		}

		assert(t, string(b))
	})

	t.Run("ok, marshal as json", func(t *testing.T) {
		b, err := json.Marshal(struct{ Password auth.Password }{pwd})
		if err != nil {
			t.Fatalf("failed to marshal as json: %v", err)
		}

		if strings.Contains(string(b), raw) {
			t.Errorf("json output\n%s\ncontains raw password", b)
		}
	})

	for name, newHandler := range map[string]func(*bytes.Buffer) slog.Handler{
		"text": func(b *bytes.Buffer) slog.Handler { return slog.NewTextHandler(b, nil) },
		"json": func(b *bytes.Buffer) slog.Handler { return slog.NewJSONHandler(b, nil) },
	} {
		t.Run("ok, "+name+" log output", func(t *testing.T) {
			var buf bytes.Buffer

			logger := slog.New(newHandler(&buf))
			logger.Info("attempting to log a password", "password", pwd)

			s := buf.String()
			if !strings.Contains(s, krypto.SecretMarker) {
				t.Errorf("log output\n%s\ndoes not contain secret marker: %s", s, krypto.SecretMarker)
			}

			if strings.Contains(s, raw) {
				t.Errorf("log output\n%s\ncontains raw password: %s", s, raw)
			}
		})
	}
}

func mustHexDecodeString(t *testing.T, str string) []byte {
	t.Helper()

	b, err := hex.DecodeString(str)
	if err != nil {
		t.Fatalf("failed to decode hex string: %v", err)
	}

	return b
}

func stringOfLen(n int) string {
	return strings.Repeat("a", n)
}
