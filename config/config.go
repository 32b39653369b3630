// Package config loads fieldsync settings from a YAML or JSON file and the
// FIELDSYNC_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage/backend"
)

// Config is the complete fieldsync configuration.
type Config struct {
	Server  ServerSettings  `json:"server" yaml:"server"`
	Storage StorageSettings `json:"storage" yaml:"storage"`
	Sync    SyncSettings    `json:"sync" yaml:"sync"`
	Logging logging.Config  `json:"logging" yaml:"logging"`
}

// ServerSettings describes the remote API.
type ServerSettings struct {
	URL             string `json:"url" yaml:"url"`
	HealthPath      string `json:"health_path,omitempty" yaml:"health_path,omitempty"`
	Token           string `json:"token,omitempty" yaml:"token,omitempty"`
	ProbeTimeoutMs  int    `json:"probe_timeout_ms,omitempty" yaml:"probe_timeout_ms,omitempty"`
	SubmitTimeoutMs int    `json:"submit_timeout_ms,omitempty" yaml:"submit_timeout_ms,omitempty"`

	Compression      bool  `json:"compression" yaml:"compression"`
	GzipMinBytes     int   `json:"gzip_min_bytes,omitempty" yaml:"gzip_min_bytes,omitempty"`
	MaxResponseBytes int64 `json:"max_response_bytes,omitempty" yaml:"max_response_bytes,omitempty"`
}

// StorageSettings selects the key-value backend holding the offline queue.
type StorageSettings struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
}

// SyncSettings controls when sync runs happen.
type SyncSettings struct {
	SettleDelayMs      int `json:"settle_delay_ms" yaml:"settle_delay_ms"`
	PeriodicIntervalMs int `json:"periodic_interval_ms,omitempty" yaml:"periodic_interval_ms,omitempty"`
	WatchIntervalMs    int `json:"watch_interval_ms,omitempty" yaml:"watch_interval_ms,omitempty"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Server: ServerSettings{
			URL:              "http://localhost:8080",
			HealthPath:       "/api/health",
			ProbeTimeoutMs:   5000,
			SubmitTimeoutMs:  30000,
			Compression:      true,
			GzipMinBytes:     1024,
			MaxResponseBytes: 1 << 20,
		},
		Storage: StorageSettings{
			Driver: backend.DriverSQLite,
			DSN:    "fieldsync.db",
			Key:    "offline_reports",
		},
		Sync: SyncSettings{
			SettleDelayMs:   2000,
			WatchIntervalMs: 5000,
		},
		Logging: logging.GetConfigFromEnv(),
	}
}

// Load reads path over Default. The format follows the extension: .json is
// JSON, anything else YAML.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, syncErrors.E(syncErrors.OpConfig, syncErrors.Component("config"), syncErrors.KindInvalid,
			fmt.Errorf("failed to read config file %s: %w", path, err))
	}
	return LoadBytes(data, detectFormat(path))
}

// LoadBytes parses data in the given format ("yaml", "yml" or "json") over
// Default.
func LoadBytes(data []byte, format string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, invalid(fmt.Errorf("failed to parse YAML config: %w", err))
		}
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, invalid(fmt.Errorf("failed to parse JSON config: %w", err))
		}
	default:
		return Config{}, invalid(fmt.Errorf("unsupported config format: %s", format))
	}
	return cfg, nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func invalid(err error) error {
	return syncErrors.E(syncErrors.OpConfig, syncErrors.Component("config"), syncErrors.KindInvalid, syncErrors.ErrCodeValidationFailure, err)
}

// Environment variables read by ApplyEnv.
const (
	EnvServerURL       = "FIELDSYNC_SERVER_URL"
	EnvHealthPath      = "FIELDSYNC_HEALTH_PATH"
	EnvToken           = "FIELDSYNC_TOKEN"
	EnvProbeTimeoutMs  = "FIELDSYNC_PROBE_TIMEOUT_MS"
	EnvSubmitTimeoutMs = "FIELDSYNC_SUBMIT_TIMEOUT_MS"
	EnvCompression     = "FIELDSYNC_COMPRESSION"
	EnvStorageDriver   = "FIELDSYNC_STORAGE_DRIVER"
	EnvStorageDSN      = "FIELDSYNC_STORAGE_DSN"
	EnvStorageTable    = "FIELDSYNC_STORAGE_TABLE"
	EnvStorageKey      = "FIELDSYNC_STORAGE_KEY"
	EnvSettleDelayMs   = "FIELDSYNC_SETTLE_DELAY_MS"
	EnvPeriodicMs      = "FIELDSYNC_PERIODIC_INTERVAL_MS"
	EnvWatchMs         = "FIELDSYNC_WATCH_INTERVAL_MS"
)

// ApplyEnv overrides c with any FIELDSYNC_* variables that are set.
// Logging variables are read by logging.GetConfigFromEnv.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		EnvServerURL:     &c.Server.URL,
		EnvHealthPath:    &c.Server.HealthPath,
		EnvToken:         &c.Server.Token,
		EnvStorageDriver: &c.Storage.Driver,
		EnvStorageDSN:    &c.Storage.DSN,
		EnvStorageTable:  &c.Storage.Table,
		EnvStorageKey:    &c.Storage.Key,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvProbeTimeoutMs:  &c.Server.ProbeTimeoutMs,
		EnvSubmitTimeoutMs: &c.Server.SubmitTimeoutMs,
		EnvSettleDelayMs:   &c.Sync.SettleDelayMs,
		EnvPeriodicMs:      &c.Sync.PeriodicIntervalMs,
		EnvWatchMs:         &c.Sync.WatchIntervalMs,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return invalid(fmt.Errorf("%s: %w", name, err))
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvCompression); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return invalid(fmt.Errorf("%s: %w", EnvCompression, err))
		}
		c.Server.Compression = b
	}
	return nil
}

// Validate checks that c can be used to build the sync stack.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(fmt.Errorf("server url %q must be an absolute http(s) URL", c.Server.URL))
	}
	if c.Server.HealthPath != "" && !strings.HasPrefix(c.Server.HealthPath, "/") {
		return invalid(fmt.Errorf("health path %q must start with /", c.Server.HealthPath))
	}
	if !slices.Contains(backend.Drivers, strings.ToLower(c.Storage.Driver)) {
		return invalid(fmt.Errorf("unknown storage driver %q (want one of %s)", c.Storage.Driver, strings.Join(backend.Drivers, ", ")))
	}
	if c.Storage.Driver != backend.DriverMemory && c.Storage.DSN == "" {
		return invalid(fmt.Errorf("storage driver %q requires a dsn", c.Storage.Driver))
	}

	for name, v := range map[string]int{
		"probe_timeout_ms":     c.Server.ProbeTimeoutMs,
		"submit_timeout_ms":    c.Server.SubmitTimeoutMs,
		"settle_delay_ms":      c.Sync.SettleDelayMs,
		"periodic_interval_ms": c.Sync.PeriodicIntervalMs,
		"watch_interval_ms":    c.Sync.WatchIntervalMs,
		"gzip_min_bytes":       c.Server.GzipMinBytes,
	} {
		if v < 0 {
			return invalid(fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// ProbeTimeout is Server.ProbeTimeoutMs as a duration.
func (c *Config) ProbeTimeout() time.Duration { return ms(c.Server.ProbeTimeoutMs) }

// SubmitTimeout is Server.SubmitTimeoutMs as a duration.
func (c *Config) SubmitTimeout() time.Duration { return ms(c.Server.SubmitTimeoutMs) }

// SettleDelay is Sync.SettleDelayMs as a duration.
func (c *Config) SettleDelay() time.Duration { return ms(c.Sync.SettleDelayMs) }

// PeriodicInterval is Sync.PeriodicIntervalMs as a duration. Zero disables
// periodic sync.
func (c *Config) PeriodicInterval() time.Duration { return ms(c.Sync.PeriodicIntervalMs) }

// WatchInterval is Sync.WatchIntervalMs as a duration.
func (c *Config) WatchInterval() time.Duration { return ms(c.Sync.WatchIntervalMs) }
