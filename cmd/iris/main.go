package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/iris-crm/iris/internal/app"
	"github.com/iris-crm/iris/internal/auth"
	"github.com/iris-crm/iris/internal/crm/customers"
	"github.com/iris-crm/iris/internal/crm/enquiries"
	"github.com/iris-crm/iris/internal/crm/inventory"
	crmjobs "github.com/iris-crm/iris/internal/crm/jobs"
	"github.com/iris-crm/iris/internal/crm/quotes"
	"github.com/iris-crm/iris/internal/notify"
	"github.com/iris-crm/iris/internal/observability"
	"github.com/iris-crm/iris/internal/platform/cache"
	"github.com/iris-crm/iris/internal/platform/db"
	"github.com/iris-crm/iris/internal/rbac"
	"github.com/iris-crm/iris/internal/shared"
	bgjobs "github.com/iris-crm/iris/jobs"
)

func main() {
	if app.TestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "iris_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	rbacMiddleware := rbac.Middleware{Logger: logger}

	taskClient := bgjobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()
	dispatcher := notify.NewDispatcher(logger, taskClient)
	dispatcher.SetMetrics(metrics)
	notifyHandler := notify.NewHandler(logger, dispatcher, rbacMiddleware)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(logger, customerService, rbacMiddleware)

	enquiryRepo := enquiries.NewRepository(pool)
	enquiryService := enquiries.NewService(enquiryRepo)
	enquiryHandler := enquiries.NewHandler(logger, enquiryService, rbacMiddleware)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(logger, quoteRepo)
	quoteService.SetEnquiryMarker(enquiryService)
	quoteHandler := quotes.NewHandler(logger, quoteService, rbacMiddleware)

	jobRepo := crmjobs.NewRepository(pool)
	jobService := crmjobs.NewService(logger, jobRepo)
	jobService.SetMetrics(metrics)
	jobService.SetAuditor(auditLogger)
	jobHandler := crmjobs.NewHandler(logger, jobService, rbacMiddleware, idempotencyStore)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(logger, inventoryRepo)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	queueHandler := bgjobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Middlewares: app.MiddlewareStack(cfg, logger, sessionManager, csrfManager, metrics),
		Metrics:     metrics,
		Auth:        authHandler,
		Customers:   customerHandler,
		Enquiries:   enquiryHandler,
		Quotes:      quoteHandler,
		Jobs:        jobHandler,
		Inventory:   inventoryHandler,
		Notify:      notifyHandler,
		Queues:      queueHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
