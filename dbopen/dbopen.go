// Package dbopen opens the SQLite databases used by dailydrop.
//
// Every connection gets the same pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// The modernc driver is registered by this package.
//
//	db, err := dbopen.Open("state/journal.db", dbopen.WithMkdirAll())
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(journal.Schema))
package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Driver is the database/sql driver name registered by modernc.org/sqlite.
const Driver = "sqlite"

type pragma struct{ name, value string }

type options struct {
	pragmas  []pragma
	mkdirAll bool
	schemas  []string
}

func (o *options) set(name, value string) {
	for i := range o.pragmas {
		if o.pragmas[i].name == name {
			o.pragmas[i].value = value
			return
		}
	}
	o.pragmas = append(o.pragmas, pragma{name, value})
}

// Option customises Open.
type Option func(*options)

// WithBusyTimeout sets busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option {
	return func(o *options) { o.set("busy_timeout", fmt.Sprint(ms)) }
}

// WithPragma sets or overrides one pragma.
func WithPragma(name, value string) Option {
	return func(o *options) { o.set(name, value) }
}

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithSchema runs s once the pragmas are applied. Schemas run in order.
func WithSchema(s string) Option { return func(o *options) { o.schemas = append(o.schemas, s) } }

// Open is OpenContext with a background context.
func Open(path string, opts ...Option) (*sql.DB, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext opens the database at path, applies pragmas and schemas, and
// pings it. The returned DB is closed on any error.
func OpenContext(ctx context.Context, path string, opts ...Option) (*sql.DB, error) {
	o := &options{}
	o.set("foreign_keys", "ON")
	o.set("journal_mode", "WAL")
	o.set("busy_timeout", "10000")
	o.set("synchronous", "NORMAL")
	for _, opt := range opts {
		opt(o)
	}

	if o.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open(Driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := setup(ctx, db, o); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setup(ctx context.Context, db *sql.DB, o *options) error {
	for _, p := range o.pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dbopen: %s: %w", stmt, err)
		}
	}
	for i, s := range o.schemas {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("dbopen: ping: %w", err)
	}
	return nil
}

// OpenMemory opens an in-memory database closed on t.Cleanup. The pool is
// capped at one connection: each ":memory:" connection is its own database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
