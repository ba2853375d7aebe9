package repository

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/photodiary/server/internal/repository/migrations"
)

// sqliteParams makes every transaction take the write lock up front and wait
// out short lock contention instead of failing immediately.
const sqliteParams = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on&_journal_mode=WAL"

// OpenSQLite opens a SQLite database without touching its schema.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite3", dbPath+sep+sqliteParams)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteDB opens a SQLite database and applies pending migrations
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return db, nil
}
