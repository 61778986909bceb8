package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/backup/consul"
	"github.com/mwantia/xmeta/backup/memory"
	"github.com/mwantia/xmeta/backup/postgres"
	"github.com/mwantia/xmeta/backup/s3"
	"github.com/mwantia/xmeta/backup/sqlite"
	"github.com/mwantia/xmeta/config"
	"github.com/mwantia/xmeta/log"
	"github.com/mwantia/xmeta/prefs"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	readOnlyFlag *bool

	configOnce sync.Once
	config     *config.Config
	logger     *log.Logger
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, readOnlyFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		readOnlyFlag: readOnlyFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Logging.Level = strings.ToLower(*c.logLevelFlag)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	options := []log.LoggerOption{log.WithLevel(level)}
	if cfg.Logging.File != "" {
		options = append(options, log.WithFile(cfg.Logging.File))
	}
	if cfg.Logging.JSON {
		options = append(options, log.WithJSON())
	}
	if cfg.Logging.NoColor {
		options = append(options, log.WithoutColor())
	}
	if cfg.Logging.NoTerminal {
		options = append(options, log.WithoutTerminal())
	}
	return log.NewLogger("xmeta", options...)
}

// withService opens a service for the duration of fn and drains its
// background work afterwards.
func (c *commandContext) withService(ctx context.Context, fn func(*xmeta.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	attrs, err := newAttributeStore(cfg, c.logger)
	if err != nil {
		return err
	}
	if c.readOnlyFlag != nil && *c.readOnlyFlag {
		attrs = attr.NewReadOnly(attrs)
	}
	backups, err := newBackupStore(ctx, cfg)
	if err != nil {
		return err
	}

	options := []xmeta.ServiceOption{
		xmeta.WithNaming(cfg.Naming()),
		xmeta.WithMaxValueSize(cfg.Attributes.MaxValueSize),
		xmeta.WithWorkers(cfg.Restore.Workers),
		xmeta.WithLogger(c.logger),
	}
	if cfg.Prefs.RecentTagsPath != "" && cfg.Prefs.MaxRecent > 0 {
		recent, err := prefs.NewRecentTags(cfg.Prefs.RecentTagsPath, cfg.Prefs.MaxRecent)
		if err != nil {
			return err
		}
		options = append(options, xmeta.WithRecentTags(recent))
	}

	service, err := xmeta.New(attrs, backups, options...)
	if err != nil {
		return err
	}
	if err := service.Open(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
		defer cancel()

		if err := service.Close(shutdownCtx); err != nil {
			c.logger.Warn("Unable to shut down cleanly: %v", err)
		}
	}()

	return fn(service)
}

func newBackupStore(ctx context.Context, cfg *config.Config) (backup.Store, error) {
	switch cfg.Backup.Backend {
	case config.BackendMemory:
		return memory.NewMemoryBackend(), nil
	case config.BackendSQLite:
		return sqlite.NewSQLiteBackend(cfg.Backup.SQLite.Path)
	case config.BackendPostgres:
		return postgres.NewPostgresBackend(ctx, cfg.Backup.Postgres.URL)
	case config.BackendConsul:
		return consul.NewConsulBackend(&consul.ConsulBackendConfig{
			Address:    cfg.Backup.Consul.Address,
			Token:      cfg.Backup.Consul.Token,
			Datacenter: cfg.Backup.Consul.Datacenter,
			Namespace:  cfg.Backup.Consul.Namespace,
			Prefix:     cfg.Backup.Consul.Prefix,
		})
	case config.BackendS3:
		return s3.NewS3Backend(&s3.S3BackendConfig{
			Endpoint:  cfg.Backup.S3.Endpoint,
			Bucket:    cfg.Backup.S3.Bucket,
			AccessKey: cfg.Backup.S3.AccessKey,
			SecretKey: cfg.Backup.S3.SecretKey,
			UseSSL:    cfg.Backup.S3.UseSSL,
			Prefix:    cfg.Backup.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown backup backend %q", cfg.Backup.Backend)
	}
}

// absolutePaths resolves arguments so backup records carry stable paths.
func absolutePaths(args []string) ([]string, error) {
	paths := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", arg, err)
		}
		paths[i] = abs
	}
	return paths, nil
}
