// Package cli provides the initialization shared by cmd/finwise,
// cmd/finwise-worker and cmd/finwise-report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finwise/internal/amqp"
	"finwise/internal/api"
	"finwise/internal/cache"
	"finwise/internal/config"
	"finwise/internal/log"
	"finwise/internal/mail"
	"finwise/internal/services"
	"finwise/internal/sheets"
	gsheet "finwise/internal/sheets/google"
	"finwise/internal/source"
	"finwise/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger creates the process logger at cfg's level and makes it the
// slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}

// App holds the components every binary builds from the configuration.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Client   *api.Client
	Cache    *cache.RecordCache
	Store    *storage.Store
	Source   source.Source
	Analysis *services.AnalysisService

	closers []func() error
}

// NewApp builds the record source and the analysis on top of it. The
// snapshot store is opened when withStore is set or the source needs it.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, withStore bool) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	srcCfg, err := source.FromAppConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	if withStore || srcCfg.Type == source.TypeSQLite {
		store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		app.Store = store
		app.closers = append(app.closers, store.Close)
		srcCfg.Store = store
	}

	res, err := source.NewFactory(logger).Create(ctx, srcCfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if res.Cleanup != nil {
		app.closers = append(app.closers, res.Cleanup)
	}
	app.Source = res.Source
	app.Client = srcCfg.Client
	app.Cache = srcCfg.Cache
	app.Analysis = services.NewAnalysisService(res.Source, cfg.TrendMonths, logger)
	return app, nil
}

// RemoteSource returns the REST backend source, building a client when the
// configured source is not the backend.
func (a *App) RemoteSource() source.Source {
	if r, ok := a.Source.(*source.Remote); ok {
		return r
	}
	if a.Client == nil {
		a.Client = api.New(a.Config.APIBaseURL, a.Config.APITimeout, api.WithLogger(a.Logger))
	}
	if a.Cache == nil {
		a.Cache = cache.NewRecordCache(a.Config.CacheSize, a.Config.CacheTTL, a.Logger)
	}
	return source.NewRemote(a.Client, a.Cache, a.Logger)
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewAMQPClient connects to the broker. It returns nil without error when
// AMQP_URL is empty.
func NewAMQPClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
}

// NewMailer returns nil when SMTP is not configured.
func NewMailer(cfg *config.Config, logger *log.Logger) *mail.Sender {
	if !cfg.MailEnabled() {
		logger.Info("Mail delivery disabled - no SMTP_HOST provided")
		return nil
	}
	return mail.NewSender(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
}

// NewSheets returns nil when no spreadsheet is configured.
func NewSheets(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.RowAppender, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
