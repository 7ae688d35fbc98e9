package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS          = 5000
	defaultMaxOpenConns    = 1
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "FSTORE_DB_MAX_OPEN_CONNS"
	maxIdleConnsEnvKey    = "FSTORE_DB_MAX_IDLE_CONNS"
	connMaxLifetimeEnvKey = "FSTORE_DB_CONN_MAX_LIFETIME"
)

// Store is the SQLite-backed file catalog.
type Store struct {
	db *sql.DB
}

var _ Catalog = (*Store)(nil)

// Open opens the SQLite database and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Plan reports pending migrations for the database at path without
// applying them.
func Plan(path string) (*MigrationStatus, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return MigrationPlan(db)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openDB(path string) (*sql.DB, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	poolSettingsFromEnv(os.Getenv).apply(db)
	return nil
}

// poolSettings sizes the sql.DB pool. Pragmas are per connection, so the
// defaults keep a single long-lived connection.
type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

func poolSettingsFromEnv(getenv func(string) string) poolSettings {
	ps := poolSettings{
		maxOpen:     defaultMaxOpenConns,
		maxIdle:     defaultMaxIdleConns,
		maxLifetime: defaultConnMaxLifetime,
	}
	if n, ok := positiveInt(getenv(maxOpenConnsEnvKey)); ok {
		ps.maxOpen = n
	}
	if n, ok := positiveInt(getenv(maxIdleConnsEnvKey)); ok {
		ps.maxIdle = n
	}
	raw := strings.TrimSpace(getenv(connMaxLifetimeEnvKey))
	if secs, ok := positiveInt(raw); ok {
		ps.maxLifetime = time.Duration(secs) * time.Second
	} else if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		ps.maxLifetime = d
	}
	if ps.maxIdle > ps.maxOpen {
		ps.maxIdle = ps.maxOpen
	}
	return ps
}

func (ps poolSettings) apply(db *sql.DB) {
	db.SetMaxOpenConns(ps.maxOpen)
	db.SetMaxIdleConns(ps.maxIdle)
	db.SetConnMaxLifetime(ps.maxLifetime)
}

func positiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	q := u.Query()
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
