package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = "2006-01-02 15:04:05"

// DBTX is implemented by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures a Store
type Options struct {
	// Transactions disables transactional writes when false, as on hosts
	// whose storage engine cannot roll back.
	Transactions bool
}

// Store persists legacy posts and the normalized custom tables
type Store struct {
	db           *sql.DB
	q            DBTX
	inTx         bool
	transactions bool
}

// Open opens a SQLite database at the given path and runs migrations.
func Open(dbPath string, opts Options) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: in-memory databases are per connection and SQLite
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return New(db, opts), nil
}

// New wraps an already migrated database
func New(db *sql.DB, opts Options) *Store {
	return &Store{db: db, q: db, transactions: opts.Transactions}
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// TransactionsSupported reports whether writes can be rolled back
func (s *Store) TransactionsSupported() bool {
	return s.transactions
}

// InTx runs fn against a transaction-bound store. The transaction commits
// only when commit is set and fn succeeds. Without transaction support fn
// runs against s directly; nested calls reuse the open transaction.
func (s *Store) InTx(ctx context.Context, commit bool, fn func(*Store) error) (err error) {
	if !s.transactions || s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	done := false
	defer func() {
		if !done {
			tx.Rollback()
		}
	}()

	if err := fn(&Store{db: s.db, q: tx, inTx: true, transactions: s.transactions}); err != nil {
		return err
	}

	done = true
	if !commit {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("rollback tx: %w", err)
		}
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
