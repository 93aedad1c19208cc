// Package app wires the payment service together for the serve command.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "getpaid-p24/internal/api/http"
	"getpaid-p24/internal/config"
	"getpaid-p24/internal/database"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/repo"
	"getpaid-p24/internal/repo/processed"
	"getpaid-p24/internal/service"
	"getpaid-p24/internal/shutdown"
	"getpaid-p24/internal/worker"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	shutdown *shutdown.Manager

	db       *sql.DB
	server   *http.Server
	runners  []func(ctx context.Context)
	serveErr chan error
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		shutdown: shutdown.New(cfg.ShutdownTimeout, logger),
		serveErr: make(chan error, 1),
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	dbService := database.New(db, cfg.Database.Database, logger)
	a.shutdown.Add("postgres", shutdown.Closer(dbService))

	if err := db.PingContext(ctx); err != nil {
		a.shutdown.Shutdown()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	payments := repo.NewPaymentRepo(db)
	orders := repo.NewOrderRepo(db)

	store, err := a.processedStore(ctx)
	if err != nil {
		a.shutdown.Shutdown()
		return nil, err
	}

	gateway := przelewy24.NewPaymentGateway(cfg.Gateway, service.OrderCustomerData(), logger)
	reconciler := worker.NewPaymentReconciler(payments, gateway, store, cfg.Redis.ProcessedTTL, logger)
	executor := a.executor(reconciler)

	paymentService := service.NewPaymentService(orders, payments, gateway, cfg.Gateway.Backend, logger)
	notifications := service.NewNotificationService(cfg.Gateway, executor, logger)

	router, err := httpapi.NewRouter(
		httpapi.NewHandler(paymentService, notifications, logger),
		httpapi.RouterConfig{
			CORSOrigins:    cfg.CORSOrigins,
			TrustedProxies: cfg.TrustedProxies,
			Health:         dbService.Health,
			Readiness:      dbService.Ready,
		},
		logger,
	)
	if err != nil {
		a.shutdown.Shutdown()
		return nil, err
	}
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.shutdown.Add("http", shutdown.ShutdownHTTPServer(a.server))

	return a, nil
}

func (a *App) processedStore(ctx context.Context) (processed.Store, error) {
	if a.cfg.Redis.Addr == "" {
		a.logger.Info("REDIS_ADDR not set, tracking processed notifications in memory")
		return processed.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.shutdown.Add("redis", shutdown.Closer(client))
	return processed.NewRedisStore(client, a.logger.Named("processed")), nil
}

func (a *App) executor(reconciler worker.Reconciler) worker.Executor {
	cfg := a.cfg.Executor
	if cfg.Kind == config.ExecutorKafka {
		consumer := worker.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, reconciler, a.logger)
		// Shutdown runs in reverse: the loop stops before the reader closes.
		a.shutdown.Add("kafka-consumer-close", shutdown.Closer(consumer))
		a.background("kafka-consumer", func(ctx context.Context) {
			if err := consumer.Run(ctx); err != nil {
				a.logger.Error("kafka consumer stopped", zap.Error(err))
			}
		})

		executor := worker.NewKafkaExecutor(cfg.KafkaBrokers, cfg.KafkaTopic, a.logger)
		a.shutdown.Add("kafka-producer", shutdown.Closer(executor))
		return executor
	}

	pool := worker.NewPool(reconciler, cfg.Workers, cfg.QueueSize, a.logger)
	a.background("reconciliation-pool", pool.Run)
	return pool
}

// background registers a loop that starts with Run and is stopped, and
// waited for, during shutdown.
func (a *App) background(name string, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.runners = append(a.runners, func(context.Context) {
		go func() {
			defer close(done)
			run(ctx)
		}()
	})
	a.shutdown.Add(name, func(shutdownCtx context.Context) error {
		cancel()
		return shutdown.WaitDone(done)(shutdownCtx)
	})
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	for _, run := range a.runners {
		run(ctx)
	}

	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.shutdown.Wait(ctx)
		return nil
	case err := <-a.serveErr:
		a.logger.Error("http server failed", zap.Error(err))
		a.shutdown.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}
}
