package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/willemschots/rentals/internal"
	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/migrate"
	"github.com/willemschots/rentals/migrations"
)

const helpText = `Usage: dbmigrate [-driver sqlite3|sqlite] [sqlite_file]`

func main() {
	driver := flag.String("driver", db.DriverCGO, "sqlite driver, sqlite3 (cgo) or sqlite (pure Go)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, helpText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	dbFile := flag.Arg(0)

	sqlDB, err := db.OpenSQLite(*driver, dbFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	meta := migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  internal.BuildRevisionTime,
	}

	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, meta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	for _, migration := range ran {
		fmt.Printf("%d: %s\n", migration.Sequence, migration.Filename)
	}
}
