// Package db stores fitting runs and their records in SQLite.
package db

import (
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id matches no run.
var ErrRunNotFound = errors.New("db: run not found")

// DB is a migrated record database.
type DB struct {
	*sql.DB
}

// Applied on every new connection; foreign_keys is per connection in SQLite.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// NewDB opens the database at path, creating it if needed, and migrates it to
// LatestVersion.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
