// Package repository implements tenant-scoped persistence for incidents,
// runbooks, the action log, and notification channels over sqlx. SQLite is
// the embedded default; Postgres serves multi-node deployments. Queries are
// written with `?` placeholders and rebound per driver.
package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLRepository implements Store over a sqlx database handle.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) a SQLite database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &SQLRepository{db: db}, nil
}

// NewPostgresRepository connects to PostgreSQL with pooled connections.
func NewPostgresRepository(connectionString string) (*SQLRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &SQLRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// RunMigrations executes migration SQL against the database.
func (r *SQLRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// rebind adapts `?` placeholders to the active driver's bindvar style.
func (r *SQLRepository) rebind(query string) string {
	return r.db.Rebind(query)
}

// isUniqueViolation detects a unique-constraint insert failure on either
// driver without importing driver error types into callers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite3
		strings.Contains(msg, "duplicate key value") // pq
}
