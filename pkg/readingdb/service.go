// Package readingdb stores manually entered pump readings and per tenant
// settings in SQLite. Values are stored as decimal text so nothing is lost to
// floating point, timestamps as unix milliseconds.
package readingdb

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/NotCoffee418/dbmigrator"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store implements dashboard.ReadingSource.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and applies pending migrations.
// ":memory:" gives a private database, used by tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open reading db: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		// every connection would get its own empty database otherwise
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping reading db: %w", err)
	}
	if _, err = db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		log.Printf("Warning: Could not set busy timeout: %v", err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	// MigrateUpCh does not surface errors.
	if _, err = db.Exec("SELECT 1 FROM readings LIMIT 1;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading db schema missing after migration: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}
