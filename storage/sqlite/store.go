// Package sqlite provides a SQLite implementation of storage.Backend. It is
// the default on-device backend for the offline report queue.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opGet   = "sqlite.Get"
	opSet   = "sqlite.Set"
	opClose = "sqlite.Close"

	component = "storage/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration options for the SQLite Store.
//
// DefaultConfig enables WAL mode. A single device rarely needs more than a
// couple of connections, so the pool defaults are small.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:fieldsync.db"
	DataSourceName string

	// EnableWAL appends "?_journal_mode=WAL" to DataSourceName when no
	// journal mode is given.
	EnableWAL bool

	// Logger receives internal diagnostics. Defaults to the package logger.
	Logger *logging.Logger

	// TableName is the key-value table. Defaults to "kv_store".
	TableName string

	MaxOpenConns    int           // Default: 4
	MaxIdleConns    int           // Default: 2
	ConnMaxLifetime time.Duration // Default: 1h
	ConnMaxIdleTime time.Duration // Default: 5m
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "kv_store"
	}
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component("sqlite-store"))
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		sep := "?"
		if strings.Contains(c.DataSourceName, "?") {
			sep = "&"
		}
		c.DataSourceName += sep + "_journal_mode=WAL"
	}
}

// DefaultConfig returns a Config with WAL enabled for dataSourceName.
func DefaultConfig(dataSourceName string) *Config {
	return &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store implements storage.Backend on a single SQLite table.
type Store struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *logging.Logger

	getQuery string
	setQuery string
}

// Compile-time check to ensure Store satisfies the storage.Backend interface
var _ storage.Backend = (*Store)(nil)

// New opens the database, configures the pool and creates the table.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	logger := config.Logger
	logger.Debug("opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   logger,
		getQuery: fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, config.TableName),
		setQuery: fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, config.TableName),
	}

	if err := s.setupSchema(config.TableName); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.Debug("SQLite store initialized", slog.String("table_name", config.TableName))
	return s, nil
}

func (s *Store) setupSchema(table string) error {
	_, err := s.db.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        key         TEXT PRIMARY KEY,
        value       TEXT NOT NULL,
        updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );`, table))
	return err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

// Get returns the value for key or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opGet, component)
	}
	return value, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return syncErrors.WrapOpComponent(err, opSet, component)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return syncErrors.WrapOpComponent(err, opClose, component)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}
