package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/photodiary/server/internal/repository/migrations"
)

// OpenPostgres opens a PostgreSQL connection without touching its schema.
func OpenPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresDB opens a PostgreSQL connection and applies pending migrations
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := OpenPostgres(connStr)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db, migrations.Postgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating postgres: %w", err)
	}
	return db, nil
}
