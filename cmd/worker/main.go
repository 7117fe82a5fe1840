package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/iris-crm/iris/internal/app"
	"github.com/iris-crm/iris/internal/notify"
	"github.com/iris-crm/iris/internal/observability"
	"github.com/iris-crm/iris/internal/platform/db"
	"github.com/iris-crm/iris/jobs"
)

func main() {
	if app.TestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	var mailer notify.Mailer
	if cfg.SendGridKey != "" {
		mailer = notify.NewSendGridMailer(cfg.SendGridKey, cfg.SMTPFrom, cfg.SendGridFrom)
	} else {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	deliverer := notify.NewDeliverer(mailer, notify.NewLogSMSSender(logger))
	deliveryHandler := jobs.NewNotifyDeliveryHandler(logger, deliverer, metrics)

	taskClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()
	dispatcher := notify.NewDispatcher(logger, taskClient)
	dispatcher.SetMetrics(metrics)
	expiryHandler := jobs.NewQuoteExpiryScanHandler(logger, pool, dispatcher)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendNotification, Handler: deliveryHandler},
			{Type: jobs.TaskTypeQuoteExpiryScan, Handler: expiryHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuoteExpiryCron, Task: jobs.NewQuoteExpiryScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
