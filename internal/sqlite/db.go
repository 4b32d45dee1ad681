// Package sqlite is the single-file storage backend. It shares the room,
// chat and membership schema with the postgres backend.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/repository"

	"github.com/XSAM/otelsql"
	"github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const MemoryPath = ":memory:"

//go:embed schema.sql
var schema string

// Open opens the database behind an otelsql-instrumented handle.
// SQLite allows one writer, so the pool is pinned to a single connection
// and every transaction is serialized.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite3", dsn(path),
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path == "" || path == MemoryPath {
		return "file::memory:?" + params
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return "file:" + path + "?" + params + "&_journal_mode=WAL"
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return repository.ErrAlreadyExists
		case sqlite3.ErrConstraintForeignKey:
			return repository.ErrNotFound
		}
	}
	return err
}
