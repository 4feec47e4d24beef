package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/migrate"
	"github.com/willemschots/rentals/migrations"
)

// DriverEnv selects the SQLite driver used in tests. Defaults to db.DriverCGO.
const DriverEnv = "TEST_DB_DRIVER"

// RunWhile runs a database while the provided test is executing.
// It returns an empty database with all migrations applied.
func RunWhile(t *testing.T) *sql.DB {
	t.Helper()

	db := RunUnmigratedWhile(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := migrate.RunFS(ctx, db, migrations.FS, migrate.Metadata{})
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// RunUnmigratedWhile runs a database while the provided test is executing.
// It returns an empty database without any migrations applied.
func RunUnmigratedWhile(t *testing.T) *sql.DB {
	t.Helper()

	driver := os.Getenv(DriverEnv)
	if driver == "" {
		driver = db.DriverCGO
	}

	conn, err := db.OpenSQLite(driver, ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		err := conn.Close()
		if err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return conn
}
