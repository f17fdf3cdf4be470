package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finwise/internal/cli"
	"finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting finwise-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	var opts []worker.Option
	if mailer := cli.NewMailer(cfg, logger); mailer != nil {
		opts = append(opts, worker.WithMailer(mailer))
	}
	sheetsClient, err := cli.NewSheets(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if sheetsClient != nil {
		opts = append(opts, worker.WithSheets(sheetsClient))
	}
	if cfg.ServiceToken != "" {
		opts = append(opts, worker.WithServiceToken(cfg.ServiceToken))
	}

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, relying on the stale job sweep", log.FieldError, err)
	}
	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	reports := services.NewReportService(app.Analysis, app.Store, publisher, logger)
	reportWorker := worker.NewReportWorker(app.Store, reports, logger, opts...)

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeWithReconnect(ctx, reportWorker.HandleReportRequest); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", log.FieldError, err)
				stop()
			}
		}()
	}

	sweeper := worker.NewSweeper(app.Store, reportWorker.HandleReportRequest, worker.DefaultSweeperConfig(), logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start stale job sweeper", log.FieldError, err)
		os.Exit(1)
	}

	scheduler := worker.NewScheduler(logger)
	if cfg.ReportSchedule != "" {
		monthly := worker.MonthlyReportConfig{
			ServiceToken: cfg.ServiceToken,
			Recipients:   cfg.ReportRecipients,
			ToSheets:     sheetsClient != nil,
		}
		if amqpClient == nil {
			monthly.Deliver = reportWorker.HandleReportRequest
		}
		if err := scheduler.Add(ctx, "monthly-report", cfg.ReportSchedule, worker.MonthlyReport(reports, monthly, time.Now, logger)); err != nil {
			logger.Error("Invalid report schedule", log.FieldError, err)
			os.Exit(1)
		}
	}
	if cfg.SyncSchedule != "" {
		syncer := services.NewSyncService(app.RemoteSource(), app.Store, logger)
		if err := scheduler.Add(ctx, "snapshot-sync", cfg.SyncSchedule, worker.SnapshotSync(syncer, cfg.ServiceToken, time.Now, logger)); err != nil {
			logger.Error("Invalid sync schedule", log.FieldError, err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
	scheduler.Stop(shutdownCtx)
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Warn("Sweeper did not stop cleanly", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
