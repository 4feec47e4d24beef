package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the cgo based mattn/go-sqlite3 driver.
	DriverCGO = "sqlite3"
	// DriverPure is the pure Go modernc.org/sqlite driver.
	DriverPure = "sqlite"
)

// Both drivers are configured the same way so that SQLite works well with our app:
// - WAL Mode so that reads and writes don't block eachother.
// - A busy timeout, specifying the duration a connection will wait for a lock.
// - Foreign keys are enforced.
// - Immediate transactions, so a transaction that will write takes the lock up front.
var driverOptions = map[string]string{
	DriverCGO:  "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate",
	DriverPure: "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_txlock=immediate",
}

// IsDriver reports whether name is a supported driver.
func IsDriver(name string) bool {
	_, ok := driverOptions[name]
	return ok
}

// OpenSQLite opens a SQLite database with the given driver.
//
// The pool holds a single connection that is never closed, SQLite only
// allows one writer at a time and an in-memory database lives as long as
// its connection.
//
// See this comment for more information:
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(driver, dbFile string) (*sql.DB, error) {
	opts, ok := driverOptions[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dbFile+opts)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return db, nil
}
