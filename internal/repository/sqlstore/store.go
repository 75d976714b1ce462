// Package sqlstore implements repository.Store over database/sql using sqlx.
//
// Two dialects share one code path:
//
//	sqlite   - modernc.org/sqlite, a single file (or ":memory:" in tests)
//	postgres - jackc/pgx/v5 through its database/sql adapter
//
// Queries are written with "?" placeholders and passed through sqlx's
// Rebind, which turns them into $1, $2 ... for pgx. Schema changes live in
// embedded goose migrations, one directory per dialect.
//
// SQLITE AND CONNECTIONS:
// SQLite allows one writer at a time, and an in-memory database exists only
// inside the connection that created it. The pool is therefore capped at a
// single connection. Inside a transaction every query goes through the tx;
// a query on s.db would block on the connection the tx holds.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/sakif/tubescribe/internal/repository"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// compile-time check that *Store implements the full repository surface
var _ repository.Store = (*Store)(nil)

// Config selects and tunes the backend.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the SQLite file, or ":memory:".
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// MaxOpenConns applies to Postgres only. SQLite always uses one.
	MaxOpenConns int
}

// Store is the sqlx-backed repository.Store.
type Store struct {
	db     *sqlx.DB
	driver string
	logger zerolog.Logger
}

// Open connects to the configured database and applies pending migrations.
//
//	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: "sqlite", Path: ":memory:"}, logger)
//	if err != nil { ... }
//	defer store.Close()
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "sqlstore").Str("driver", cfg.Driver).Logger()

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		db, err = sqlx.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	case DriverPostgres:
		db, err = sqlx.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening postgres: %w", err)
		}
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 20
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Msg("database ready")
	return s, nil
}

// sqliteDSN appends the pragmas every connection needs. _time_format=sqlite
// makes the driver write times as "YYYY-MM-DD HH:MM:SS..." so they compare
// correctly as text.
func sqliteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep +
		"_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_time_format=sqlite"
}

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies every embedded migration the database has not seen yet.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect, dir := "sqlite3", "migrations/sqlite"
	if s.driver == DriverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, dir); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}

// Ping checks the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.logger.Info().Msg("closing database")
	return s.db.Close()
}

// withTx runs fn inside a transaction. fn's error rolls back; a panic rolls
// back and re-panics.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// The helpers below accept either *sqlx.DB or *sqlx.Tx and rebind "?"
// placeholders for the active driver.

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
