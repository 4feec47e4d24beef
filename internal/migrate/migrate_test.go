package migrate_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/willemschots/rentals/internal/db/testdb"
	"github.com/willemschots/rentals/internal/migrate"
)

func Test_RunFS(t *testing.T) {
	t.Run("ok, empty dir", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t)

		got, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/emptydir"), meta(t, "v1.0.0", "2024-03-20T14:56:00Z"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertMigrations(t, got, []migrate.Migration{})
		assertTable(t, db, []migrate.Migration{})
	})

	t.Run("ok, subdirs and other files are skipped", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t)

		m := meta(t, "v1.0.0", "2024-03-20T14:56:00Z")
		got, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/skip_subdir"), m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []migrate.Migration{
			{Sequence: 0, Filename: "2_create_test_table.sql", Metadata: m},
		}
		assertMigrations(t, got, want)
		assertTable(t, db, want)
		assertNrOfRowsInTestTable(t, db, 0)
	})

	t.Run("ok, progression of migrations", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t)

		metas := []migrate.Metadata{
			meta(t, "v1.0.0", "2024-03-20T14:56:00Z"),
			meta(t, "v2.0.0", "2024-04-20T14:56:00Z"),
			meta(t, "v3.0.0", "2024-05-20T14:56:00Z"),
		}

		migrations := []migrate.Migration{
			{Sequence: 0, Filename: "1_create_test_table.sql", Metadata: metas[0]},
			{Sequence: 1, Filename: "2_add_row_to_test_table.sql", Metadata: metas[1]},
			{Sequence: 2, Filename: "3_add_another_row.sql", Metadata: metas[2]},
			{Sequence: 3, Filename: "4_and_one_more.sql", Metadata: metas[2]},
		}

		runs := []struct {
			dir     string
			meta    migrate.Metadata
			wantNew []migrate.Migration
			wantAll []migrate.Migration
			rows    int
		}{
			{"run_1", metas[0], migrations[:1], migrations[:1], 0},
			{"run_2", metas[1], migrations[1:2], migrations[:2], 1},
			{"run_3", metas[2], migrations[2:4], migrations[:4], 3},
			// Running the same files again is a no-op.
			{"run_3", metas[2], migrations[4:], migrations[:4], 3},
		}

		for _, r := range runs {
			got, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/progression/"+r.dir), r.meta)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", r.dir, err)
			}

			assertMigrations(t, got, r.wantNew)
			assertTable(t, db, r.wantAll)
			assertNrOfRowsInTestTable(t, db, r.rows)
		}
	})

	t.Run("fail, error in migration", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t)

		_, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/error_in_migration/run_1"), meta(t, "v1.0.0", "2024-03-20T14:56:00Z"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = migrate.RunFS(context.Background(), db, os.DirFS("./testdata/error_in_migration/run_2"), meta(t, "v2.0.0", "2024-04-20T14:56:00Z"))

		var mErr migrate.MigrationError
		if !errors.As(err, &mErr) {
			t.Fatalf("got %T, want %T", err, mErr)
		}

		if mErr.Sequence != 1 || mErr.Filename != "2_insert_with_typo.sql" {
			t.Errorf("got %v, want migration [1] %q", mErr, "2_insert_with_typo.sql")
		}

		// The failed run was rolled back entirely.
		assertTable(t, db, []migrate.Migration{
			{Sequence: 0, Filename: "1_create_test_table.sql", Metadata: meta(t, "v1.0.0", "2024-03-20T14:56:00Z")},
		})
	})

	mismatches := map[string]string{
		"fail, executed migration was removed": "removal_mismatch",
		"fail, executed migration was renamed": "rename_mismatch",
	}

	for name, dir := range mismatches {
		t.Run(name, func(t *testing.T) {
			db := testdb.RunUnmigratedWhile(t)

			_, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/"+dir+"/run_1"), meta(t, "v1.0.0", "2024-03-20T14:56:00Z"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assertNrOfRowsInTestTable(t, db, 3)

			_, err = migrate.RunFS(context.Background(), db, os.DirFS("./testdata/"+dir+"/run_2"), meta(t, "v2.0.0", "2024-04-20T14:56:00Z"))
			if !errors.Is(err, migrate.ErrMigrationsMismatch) {
				t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrMigrationsMismatch)
			}

			assertNrOfRowsInTestTable(t, db, 3)
		})
	}
}

func Test_QueryMigrations(t *testing.T) {
	t.Run("fail, no table", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t)

		_, err := migrate.QueryMigrations(context.Background(), db)
		if !errors.Is(err, migrate.ErrNoTable) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrNoTable)
		}
	})
}

func assertTable(t *testing.T, db *sql.DB, want []migrate.Migration) {
	t.Helper()

	got, err := migrate.QueryMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to query migrations: %v", err)
	}

	assertMigrations(t, got, want)
}

func assertMigrations(t *testing.T, got, want []migrate.Migration) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got\n%+v\nwant\n%+v\n", got, want)
	}

	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("got\n%+v\nwant\n%+v\n", got, want)
		}
	}
}

// assertNrOfRowsInTestTable checks the number of rows in the test_table
// that is created by the testdata migrations.
func assertNrOfRowsInTestTable(t *testing.T, db *sql.DB, want int) {
	t.Helper()

	var got int
	err := db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&got)
	if err != nil {
		t.Fatalf("failed to scan test_table: %v", err)
	}

	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func meta(t *testing.T, version, ts string) migrate.Metadata {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}

	return migrate.Metadata{AppVersion: version, Timestamp: parsed}
}
