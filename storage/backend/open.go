// Package backend selects and opens a storage.Backend by driver name.
package backend

import (
	"fmt"
	"strings"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage"
	"github.com/c0deZ3R0/fieldsync/storage/file"
	"github.com/c0deZ3R0/fieldsync/storage/memory"
	"github.com/c0deZ3R0/fieldsync/storage/postgres"
	"github.com/c0deZ3R0/fieldsync/storage/redis"
	"github.com/c0deZ3R0/fieldsync/storage/sqlite"
)

// Supported driver names.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Drivers lists every driver Open accepts.
var Drivers = []string{DriverMemory, DriverFile, DriverSQLite, DriverPostgres, DriverRedis}

// Options configures Open. DSN means a directory for "file", a data source
// name for "sqlite", a connection string for "postgres" and a URL for "redis".
type Options struct {
	Driver string
	DSN    string
	Table  string
	Logger *logging.Logger
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (storage.Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver != DriverMemory && opts.DSN == "" {
		return nil, fmt.Errorf("storage driver %q requires a DSN", driver)
	}

	switch driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverFile:
		return file.New(opts.DSN)
	case DriverSQLite:
		cfg := sqlite.DefaultConfig(opts.DSN)
		cfg.TableName = opts.Table
		cfg.Logger = opts.Logger
		return sqlite.New(cfg)
	case DriverPostgres:
		return postgres.New(&postgres.Config{
			ConnectionString: opts.DSN,
			TableName:        opts.Table,
			Logger:           opts.Logger,
		})
	case DriverRedis:
		return redis.New(&redis.Config{URL: opts.DSN, Logger: opts.Logger})
	default:
		return nil, fmt.Errorf("unknown storage driver %q (supported: %s)", opts.Driver, strings.Join(Drivers, ", "))
	}
}
