// Package config loads the TOML configuration shared by the xmeta CLI and
// library users.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
	"github.com/mwantia/xmeta/prefs"
	"github.com/mwantia/xmeta/restore"
	"github.com/pelletier/go-toml/v2"
)

// Backend names accepted in [backup].
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendConsul   = "consul"
	BackendS3       = "s3"
)

// maxAttributeSize is the largest value most filesystems accept in one
// extended attribute.
const maxAttributeSize = 64 * 1024

// Attributes configures the physical attribute layout.
type Attributes struct {
	IndexedPrefix   string `toml:"indexed_prefix"`
	OpaquePrefix    string `toml:"opaque_prefix"`
	MaxValueSize    int    `toml:"max_value_size"`
	TouchModifyTime bool   `toml:"touch_modify_time"`
}

// SQLite configures the SQLite backup store.
type SQLite struct {
	Path string `toml:"path"`
}

// Postgres configures the PostgreSQL backup store.
type Postgres struct {
	URL string `toml:"url"`
}

// Consul configures the Consul KV backup store.
type Consul struct {
	Address    string `toml:"address"`
	Token      string `toml:"token"`
	Datacenter string `toml:"datacenter"`
	Namespace  string `toml:"namespace"`
	Prefix     string `toml:"prefix"`
}

// S3 configures the S3 compatible backup store.
type S3 struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

// Backup selects and configures the backup store.
type Backup struct {
	Backend  string   `toml:"backend"`
	SQLite   SQLite   `toml:"sqlite"`
	Postgres Postgres `toml:"postgres"`
	Consul   Consul   `toml:"consul"`
	S3       S3       `toml:"s3"`
}

// Restore configures the background worker pool.
type Restore struct {
	Workers         int `toml:"workers"`
	ShutdownTimeout int `toml:"shutdown_timeout"` // seconds
}

// Logging configures the logger.
type Logging struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	JSON       bool   `toml:"json"`
	NoTerminal bool   `toml:"no_terminal"`
	NoColor    bool   `toml:"no_color"`
}

// Prefs configures the recent tags file.
type Prefs struct {
	RecentTagsPath string `toml:"recent_tags_path"`
	MaxRecent      int    `toml:"max_recent"`
}

// Watch configures the attribute watcher.
type Watch struct {
	Debounce int `toml:"debounce"` // milliseconds
}

// Config is the full configuration.
type Config struct {
	Attributes Attributes `toml:"attributes"`
	Backup     Backup     `toml:"backup"`
	Restore    Restore    `toml:"restore"`
	Logging    Logging    `toml:"logging"`
	Prefs      Prefs      `toml:"prefs"`
	Watch      Watch      `toml:"watch"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Attributes: Attributes{
			IndexedPrefix: data.DefaultNaming.IndexedPrefix,
			OpaquePrefix:  data.DefaultNaming.OpaquePrefix,
			MaxValueSize:  codec.DefaultMaxSize,
		},
		Backup: Backup{
			Backend: BackendSQLite,
			SQLite: SQLite{
				Path: "~/.local/share/xmeta/backup.db",
			},
			Consul: Consul{
				Address: "127.0.0.1:8500",
				Prefix:  "xmeta/",
			},
		},
		Restore: Restore{
			Workers:         restore.DefaultWorkers,
			ShutdownTimeout: 10,
		},
		Logging: Logging{
			Level: "info",
		},
		Prefs: Prefs{
			RecentTagsPath: "~/.config/xmeta/recent_tags.toml",
			MaxRecent:      prefs.DefaultMaxRecent,
		},
		Watch: Watch{
			Debounce: 250,
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/xmeta/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) normalize() error {
	c.Backup.Backend = strings.ToLower(strings.TrimSpace(c.Backup.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	var err error
	if c.Backup.SQLite.Path != ":memory:" {
		if c.Backup.SQLite.Path, err = expandPath(c.Backup.SQLite.Path); err != nil {
			return err
		}
	}
	if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
		return err
	}
	if c.Prefs.RecentTagsPath, err = expandPath(c.Prefs.RecentTagsPath); err != nil {
		return err
	}

	if c.Attributes.MaxValueSize == 0 {
		c.Attributes.MaxValueSize = codec.DefaultMaxSize
	}
	if c.Restore.Workers == 0 {
		c.Restore.Workers = restore.DefaultWorkers
	}
	if c.Prefs.MaxRecent == 0 {
		c.Prefs.MaxRecent = prefs.DefaultMaxRecent
	}
	return nil
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.Attributes.IndexedPrefix == "" || c.Attributes.OpaquePrefix == "" {
		return errors.New("attributes: indexed_prefix and opaque_prefix must be set")
	}
	if c.Attributes.IndexedPrefix == c.Attributes.OpaquePrefix {
		return errors.New("attributes: indexed_prefix and opaque_prefix must differ")
	}
	if c.Attributes.MaxValueSize <= 0 || c.Attributes.MaxValueSize > maxAttributeSize {
		return fmt.Errorf("attributes: max_value_size must be between 1 and %d", maxAttributeSize)
	}

	switch c.Backup.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Backup.SQLite.Path == "" {
			return errors.New("backup.sqlite: path must be set")
		}
	case BackendPostgres:
		if c.Backup.Postgres.URL == "" {
			return errors.New("backup.postgres: url must be set")
		}
	case BackendConsul:
		if c.Backup.Consul.Address == "" {
			return errors.New("backup.consul: address must be set")
		}
	case BackendS3:
		if c.Backup.S3.Endpoint == "" || c.Backup.S3.Bucket == "" {
			return errors.New("backup.s3: endpoint and bucket must be set")
		}
	default:
		return fmt.Errorf("backup: unknown backend %q", c.Backup.Backend)
	}

	if c.Restore.Workers < 1 {
		return errors.New("restore: workers must be positive")
	}
	if c.Restore.ShutdownTimeout < 0 {
		return errors.New("restore: shutdown_timeout must not be negative")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Prefs.MaxRecent < 0 {
		return errors.New("prefs: max_recent must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch: debounce must not be negative")
	}
	return nil
}

// Naming returns the attribute naming of the configuration.
func (c *Config) Naming() data.Naming {
	return data.Naming{
		IndexedPrefix: c.Attributes.IndexedPrefix,
		OpaquePrefix:  c.Attributes.OpaquePrefix,
	}
}

// ShutdownTimeout returns the drain timeout of the restore scheduler.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Restore.ShutdownTimeout) * time.Second
}

// WatchDebounce returns the debounce window of the watcher.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.Debounce) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
