// Package storage keeps player sightings, peer gossip and the failover packet log
// in SQLite (default) or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // Driver postgres
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/internal/clock"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Options configures the database connection.
type Options struct {
	// Clock stamps first/last/time columns. Defaults to clock.System.
	Clock clock.Clock

	// Driver is "sqlite" or "postgres".
	Driver string

	// Path is the SQLite database file, used when DSN is blank.
	Path string

	// DSN is passed to the driver as is.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repository manages the database connection and the three hub tables.
type Repository struct {
	db      *sql.DB
	clock   clock.Clock
	dialect dialect
}

// New opens the database, sets connection pool parameters, and runs migrations.
func New(opts Options) (*Repository, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dsn == "" {
		if d.name != DriverSQLite {
			return nil, fmt.Errorf("storage: %s requires a DSN", d.name)
		}
		dsn = sqliteDSN(opts.Path)
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r := newRepository(db, d, opts.Clock)
	if err := runMigrations(db, d); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("driver", d.name).Msg("Database ready")

	return r, nil
}

func newRepository(db *sql.DB, d dialect, c clock.Clock) *Repository {
	if c == nil {
		c = clock.System{}
	}

	return &Repository{db: db, clock: c, dialect: d}
}

// sqliteDSN appends the pragmas the concurrency model relies on: WAL so readers never
// block the writer, and a busy timeout so concurrent writers queue instead of failing.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep +
		"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// now returns the injected clock time, always UTC.
func (r *Repository) now() time.Time {
	return r.clock.Now().UTC()
}

func (r *Repository) q(query string) string {
	return r.dialect.rebind(query)
}
