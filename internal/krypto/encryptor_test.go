package krypto_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/willemschots/rentals/internal/krypto"
)

const (
	emailKey1 = "2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d"
	emailKey2 = "90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf"
)

func Test_NewEncryptor(t *testing.T) {
	t.Run("ok, keys from environment value", func(t *testing.T) {
		keys := must(krypto.ParseKeys(emailKey1 + ", " + emailKey2))

		_, err := krypto.NewEncryptor(keys)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("fail, no keys", func(t *testing.T) {
		_, err := krypto.NewEncryptor(nil)
		if err == nil {
			t.Fatalf("wanted error, got <nil>")
		}
	})

	t.Run("fail, zero key", func(t *testing.T) {
		_, err := krypto.NewEncryptor([]krypto.Key{{}})
		if !errors.Is(err, krypto.ErrInvalidKey) {
			t.Fatalf("wanted error %v, got %v (via errors.Is)", krypto.ErrInvalidKey, err)
		}
	})
}

func Test_Encryptor_Emails(t *testing.T) {
	emails := map[string]string{
		"ok, short address":      "a@b.nl",
		"ok, typical address":    "alice@example.com",
		"ok, plus address":       "alice+rentals@example.com",
		"ok, subdomain address":  "bob.smith@mail.example.co.uk",
		"ok, unicode local part": "jörg@example.de",
	}

	for name, email := range emails {
		t.Run(name, func(t *testing.T) {
			enc := encryptorForTest(emailKey1)

			ciphertext, err := enc.Encrypt([]byte(email))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if bytes.Contains(ciphertext, []byte(email)) {
				t.Errorf("ciphertext %x contains the plain email %q", ciphertext, email)
			}

			got, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if string(got) != email {
				t.Errorf("got %q, want %q", got, email)
			}
		})
	}

	t.Run("ok, same email encrypts differently every time", func(t *testing.T) {
		enc := encryptorForTest(emailKey1)

		first := must(enc.Encrypt([]byte("alice@example.com")))
		second := must(enc.Encrypt([]byte("alice@example.com")))

		if bytes.Equal(first, second) {
			t.Errorf("got equal ciphertexts %x, want them to differ", first)
		}
	})

	invalidEncrypt := map[string][]byte{
		"fail, nil":   nil,
		"fail, empty": {},
	}

	for name, raw := range invalidEncrypt {
		t.Run(name, func(t *testing.T) {
			enc := encryptorForTest(emailKey1)

			_, err := enc.Encrypt(raw)
			if !errors.Is(err, krypto.ErrInvalidData) {
				t.Fatalf("wanted error %v, got %v (via errors.Is)", krypto.ErrInvalidData, err)
			}
		})
	}
}

func Test_Encryptor_KeyRotation(t *testing.T) {
	const email = "alice@example.com"

	t.Run("ok, stored emails remain readable after adding a key", func(t *testing.T) {
		before := encryptorForTest(emailKey1)
		stored := must(before.Encrypt([]byte(email)))

		after := encryptorForTest(emailKey1, emailKey2)

		got, err := after.Decrypt(stored)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if string(got) != email {
			t.Errorf("got %q, want %q", got, email)
		}
	})

	t.Run("ok, new emails use the newest key", func(t *testing.T) {
		enc := encryptorForTest(emailKey1, emailKey2)
		stored := must(enc.Encrypt([]byte(email)))

		if got := binary.BigEndian.Uint32(stored[:4]); got != 1 {
			t.Errorf("got key index %d, want %d", got, 1)
		}

		// The index points at the second key, a single key encryptor lacks it.
		_, err := encryptorForTest(emailKey2).Decrypt(stored)
		if !errors.Is(err, krypto.ErrUnknownKey) {
			t.Errorf("wanted error %v, got %v (via errors.Is)", krypto.ErrUnknownKey, err)
		}
	})

	t.Run("fail, newest key was removed", func(t *testing.T) {
		stored := must(encryptorForTest(emailKey1, emailKey2).Encrypt([]byte(email)))

		_, err := encryptorForTest(emailKey1).Decrypt(stored)
		if !errors.Is(err, krypto.ErrUnknownKey) {
			t.Fatalf("wanted error %v, got %v (via errors.Is)", krypto.ErrUnknownKey, err)
		}
	})

	t.Run("fail, key was replaced instead of added", func(t *testing.T) {
		stored := must(encryptorForTest(emailKey1).Encrypt([]byte(email)))

		_, err := encryptorForTest(emailKey2).Decrypt(stored)
		if err == nil {
			t.Fatalf("wanted error, got <nil>")
		}
	})

	t.Run("fail, key index was tampered with", func(t *testing.T) {
		enc := encryptorForTest(emailKey1, emailKey1)
		stored := must(enc.Encrypt([]byte(email)))

		// Both keys are equal, only the authenticated index differs.
		binary.BigEndian.PutUint32(stored[:4], 0)

		_, err := enc.Decrypt(stored)
		if err == nil {
			t.Fatalf("wanted error, got <nil>")
		}
	})
}

func Test_Encryptor_DecryptInvalid(t *testing.T) {
	invalid := map[string][]byte{
		"fail, nil":            nil,
		"fail, empty slice":    {},
		"fail, short of index": {0, 0, 0},
		"fail, only index":     {0, 0, 0, 0},
		"fail, short of nonce": {
			0, 0, 0, 0, 1, 1, 1, 1,
			1, 1, 1, 1, 1, 1, 1,
		},
		"fail, only index and nonce": {
			0, 0, 0, 0, 1, 1, 1, 1,
			1, 1, 1, 1, 1, 1, 1, 1,
		},
	}

	for name, msg := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := encryptorForTest(emailKey1).Decrypt(msg)
			if !errors.Is(err, krypto.ErrInvalidData) {
				t.Fatalf("wanted error %v, got %v (via errors.Is)", krypto.ErrInvalidData, err)
			}
		})
	}
}

func encryptorForTest(rawKeys ...string) *krypto.Encryptor {
	keys := make([]krypto.Key, 0, len(rawKeys))
	for _, raw := range rawKeys {
		keys = append(keys, must(krypto.ParseKey(raw)))
	}

	return must(krypto.NewEncryptor(keys))
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}
