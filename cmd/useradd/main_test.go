package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/migrate"
	"github.com/willemschots/rentals/migrations"
)

func Test_Run(t *testing.T) {
	t.Run("ok, creates a user with the password from the environment", testEnv(func(t *testing.T) {
		t.Setenv(passwordEnv, "reallyStrongPassword1")

		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		got := run(context.Background(), []string{"-name", "Tester", "Test@GMAIL.com"}, strings.NewReader(""), stdout, stderr)
		if got != 0 {
			t.Fatalf("got exit code %d, want 0. stderr:\n%s", got, stderr.String())
		}

		want := "created user 1: test@gmail.com (staff: true, superuser: false)\n"
		if stdout.String() != want {
			t.Errorf("got %q, want %q", stdout.String(), want)
		}
	}))

	t.Run("ok, creates a superuser with the password from stdin", testEnv(func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		got := run(context.Background(), []string{"-superuser", "admin@example.com"}, strings.NewReader("reallyStrongPassword1\n"), stdout, stderr)
		if got != 0 {
			t.Fatalf("got exit code %d, want 0. stderr:\n%s", got, stderr.String())
		}

		want := "created user 1: admin@example.com (staff: true, superuser: true)\n"
		if stdout.String() != want {
			t.Errorf("got %q, want %q", stdout.String(), want)
		}
	}))

	t.Run("fail, duplicate email", testEnv(func(t *testing.T) {
		t.Setenv(passwordEnv, "reallyStrongPassword1")

		for i, wantCode := range []int{0, 1} {
			stderr := &bytes.Buffer{}
			got := run(context.Background(), []string{"test@gmail.com"}, strings.NewReader(""), &bytes.Buffer{}, stderr)
			if got != wantCode {
				t.Fatalf("call %d: got exit code %d, want %d. stderr:\n%s", i, got, wantCode, stderr.String())
			}
		}
	}))

	t.Run("fail, empty email", testEnv(func(t *testing.T) {
		t.Setenv(passwordEnv, "reallyStrongPassword1")

		stderr := &bytes.Buffer{}
		got := run(context.Background(), []string{""}, strings.NewReader(""), &bytes.Buffer{}, stderr)
		if got != 1 {
			t.Fatalf("got exit code %d, want 1", got)
		}

		if !strings.Contains(stderr.String(), "email") {
			t.Errorf("expected error about the email, got %q", stderr.String())
		}
	}))

	t.Run("fail, no email argument", testEnv(func(t *testing.T) {
		got := run(context.Background(), []string{}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
		if got != 2 {
			t.Fatalf("got exit code %d, want 2", got)
		}
	}))

	t.Run("fail, invalid environment", testEnv(func(t *testing.T) {
		t.Setenv("DB_BLIND_INDEX_SALT", "abc")

		stderr := &bytes.Buffer{}
		got := run(context.Background(), []string{"test@gmail.com"}, strings.NewReader("pwd\n"), &bytes.Buffer{}, stderr)
		if got != 1 {
			t.Fatalf("got exit code %d, want 1", got)
		}

		if !strings.Contains(stderr.String(), "DB_BLIND_INDEX_SALT") {
			t.Errorf("expected error to mention DB_BLIND_INDEX_SALT, got %q", stderr.String())
		}
	}))
}

// testEnv returns a test function that runs with a migrated database in a temporary directory.
func testEnv(testFunc func(t *testing.T)) func(t *testing.T) {
	return func(t *testing.T) {
		t.Helper()

		dbFile := filepath.Join(t.TempDir(), "useradd-test.db")

		t.Setenv("ENV_FILE", filepath.Join("testdata", "empty.env"))
		t.Setenv("DB_FILENAME", dbFile)
		t.Setenv("DB_ENCRYPTION_KEYS", "2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d")
		t.Setenv("DB_BLIND_INDEX_SALT", "b61115eeb1bdf0847f1d7ea978c7da71e3b31361f7450bc8aa12566a16b7b03f")

		conn, err := db.OpenSQLite(db.DriverCGO, dbFile)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err = migrate.RunFS(ctx, conn, migrations.FS, migrate.Metadata{})
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		err = conn.Close()
		if err != nil {
			t.Fatalf("failed to close database: %v", err)
		}

		testFunc(t)
	}
}
