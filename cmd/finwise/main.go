package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finwise/internal/cache"
	"finwise/internal/cli"
	apphttp "finwise/internal/http"
	"finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/source"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required to verify callers' access tokens")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, report jobs wait for the worker sweep", log.FieldError, err)
	}
	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}
	reports := services.NewReportService(app.Analysis, app.Store, publisher, logger)

	opts := []apphttp.Option{
		apphttp.WithReadinessCheck("store", app.Store.Ping),
	}
	if p, ok := app.Source.(source.Pinger); ok {
		opts = append(opts, apphttp.WithReadinessCheck("source", p.Ping))
	}
	if app.Client != nil {
		opts = append(opts, apphttp.WithAdminReader(app.Client))
	}

	cacheManager := cache.NewManager(logger)
	if app.Cache != nil {
		cacheManager.Register(app.Cache)
		cacheManager.StartCleanup(10 * time.Minute)
	}
	defer cacheManager.Stop()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, app.Analysis, reports, logger, opts...)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting finwise server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldSource, app.Source.Name(),
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
