package email_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/willemschots/rentals/internal/email"
)

func Test_ParseAddress(t *testing.T) {
	okTests := map[string]struct {
		raw  string
		want email.Address
	}{
		"shortest possible": {
			raw:  "a@b",
			want: "a@b",
		},
		"typical": {
			raw:  "alice@example.com",
			want: "alice@example.com",
		},
		"whitespace is trimmed": {
			raw:  " 	alice@example.com  ",
			want: "alice@example.com",
		},
		"case is kept": {
			raw:  "Alice@GMAIL.COM",
			want: "Alice@GMAIL.COM",
		},
	}

	for name, tc := range okTests {
		t.Run(name, func(t *testing.T) {
			got, err := email.ParseAddress(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	failTests := map[string]struct {
		raw     string
		wantErr error
	}{
		"empty":                 {"", email.ErrEmptyEmail},
		"whitespace only":       {" 	", email.ErrEmptyEmail},
		"missing @":             {"alice.example.com", email.ErrInvalidEmail},
		"missing domain":        {"alice@", email.ErrInvalidEmail},
		"missing local part":    {"@example.com", email.ErrInvalidEmail},
		"with name":             {"Alice <alice@example.com>", email.ErrInvalidEmail},
		"with name and comment": {"Alice <alice@example.com>(comment)", email.ErrInvalidEmail},
		"too long":              {strings.Repeat("a", 250) + "@example.com", email.ErrInvalidEmail},
	}

	for name, tc := range failTests {
		t.Run(name, func(t *testing.T) {
			_, err := email.ParseAddress(tc.raw)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v (via errors.Is)", err, tc.wantErr)
			}
		})
	}
}

func Test_NormalizeAddress(t *testing.T) {
	tests := map[string]struct {
		in   email.Address
		want email.Address
	}{
		"already normalized": {"test@gmail.com", "test@gmail.com"},
		"uppercase domain":   {"mail@GMAIL.COM", "mail@gmail.com"},
		"uppercase local":    {"MAIL@gmail.com", "mail@gmail.com"},
		"mixed":              {"Mail@Gmail.Com", "mail@gmail.com"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := email.NormalizeAddress(tc.in)
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}

			// Normalizing is idempotent.
			if again := email.NormalizeAddress(got); again != got {
				t.Errorf("got %q after normalizing twice, want %q", again, got)
			}
		})
	}

	t.Run("parse and normalize", func(t *testing.T) {
		got, err := email.ParseNormalizedAddress("  mail@GMAIL.COM ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got != "mail@gmail.com" {
			t.Errorf("got %q, want %q", got, "mail@gmail.com")
		}
	})
}
