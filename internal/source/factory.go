package source

import (
	"context"
	"fmt"
	"time"

	"finwise/internal/api"
	"finwise/internal/cache"
	"finwise/internal/config"
	"finwise/internal/log"
	"finwise/internal/storage"
)

// CleanupFunc releases resources owned by a source.
type CleanupFunc func() error

// Result contains the source and an optional cleanup function.
type Result struct {
	Source  Source
	Cleanup CleanupFunc
}

// Config holds what the factory needs to build any source.
type Config struct {
	Type Type

	// api
	Client *api.Client
	Cache  *cache.RecordCache

	// sqlite: an already open store, or driver + DSN to open one
	Store    *storage.Store
	DBDriver string
	DBDSN    string

	// memory
	DataDir string
}

// FromAppConfig converts the application config to a source config.
func FromAppConfig(cfg *config.Config, logger *log.Logger) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(cfg.DataSource)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid source type in config: %s", cfg.DataSource)
	}
	out := Config{
		Type:     t,
		DBDriver: cfg.DBDriver,
		DBDSN:    cfg.DBDSN,
		DataDir:  cfg.DataDir,
	}
	if t == TypeAPI {
		out.Client = api.New(cfg.APIBaseURL, cfg.APITimeout, api.WithLogger(logger))
		out.Cache = cache.NewRecordCache(cfg.CacheSize, cfg.CacheTTL, logger)
	}
	return out, nil
}

// Factory creates sources based on configuration.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentSource)}
}

// Create builds the source named by cfg.Type.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	switch cfg.Type {
	case TypeAPI:
		if cfg.Client == nil {
			return nil, fmt.Errorf("api source needs a client")
		}
		c := cfg.Cache
		if c == nil {
			c = cache.NewRecordCache(256, 2*time.Minute, f.logger)
		}
		f.logger.Info("Initialized API source")
		return &Result{Source: NewRemote(cfg.Client, c, f.logger)}, nil

	case TypeSQLite:
		if cfg.Store != nil {
			f.logger.Info("Initialized snapshot source", "driver", cfg.Store.Driver())
			return &Result{Source: NewSQL(cfg.Store)}, nil
		}
		store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		f.logger.Info("Initialized snapshot source", "driver", cfg.DBDriver)
		return &Result{Source: NewSQL(store), Cleanup: store.Close}, nil

	case TypeMemory:
		dir := cfg.DataDir
		if dir == "" {
			dir = "data"
		}
		m, err := NewMemoryFromDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed data: %w", err)
		}
		f.logger.Info("Initialized memory source", "data_directory", dir)
		return &Result{Source: m}, nil
	}
	return nil, fmt.Errorf("invalid source type: %s", cfg.Type)
}
