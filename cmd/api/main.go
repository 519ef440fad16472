package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/eventgate/ticket-lifecycle/internal/api/http"
	"github.com/eventgate/ticket-lifecycle/internal/api/http/handlers"
	"github.com/eventgate/ticket-lifecycle/internal/auth"
	"github.com/eventgate/ticket-lifecycle/internal/chain"
	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/notifier"
	"github.com/eventgate/ticket-lifecycle/internal/observability"
	"github.com/eventgate/ticket-lifecycle/internal/persistence"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	"github.com/eventgate/ticket-lifecycle/internal/repository/memstore"
	"github.com/eventgate/ticket-lifecycle/internal/service"
	"github.com/eventgate/ticket-lifecycle/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos, txRunner := openStore(pg)

	policy, err := service.LoadGuardPolicy(cfg.Lifecycle.GuardPolicyPath)
	if err != nil {
		logger.Fatal("failed to load guard policy", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	ledger := service.NewAuditLedger(repos.Audit)
	timeline := service.NewTimelineService(ledger)

	executor := service.NewTransitionExecutor(service.TransitionDependencies{
		Entities:    repos.Lifecycle,
		Tx:          txRunner,
		Guards:      service.NewGuardEvaluator(repos.Events, policy),
		MaxAttempts: cfg.Lifecycle.MaxAttempts,
		Metrics:     metrics,
		Logger:      logger,
	})

	var chains []service.ChainClient
	if cfg.Settlement.RPCURL != "" {
		client, err := chain.DialEVM(ctx, cfg.Settlement.Network, cfg.Settlement.RPCURL, cfg.Settlement.EscrowPrivateKey, logger)
		if err != nil {
			logger.Fatal("failed to connect chain", zap.Error(err))
		}
		defer client.Close()
		chains = append(chains, client)
	} else {
		logger.Warn("SETTLEMENT_RPC_URL not provided; stake verification disabled")
	}

	settlement := service.NewSettlementService(service.SettlementDependencies{
		Chains:     chains,
		Entities:   repos.Lifecycle,
		Tx:         txRunner,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Config:     cfg.Settlement,
		Logger:     logger,
	})

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Repos:      repos,
		Tx:         txRunner,
		Executor:   executor,
		Ledger:     ledger,
		Settlement: settlement,
		Mirror:     persistence.NewStatusMirror(redis, cfg.Redis.MirrorTTL()),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	notify, closeNotifier := newNotifier(cfg.Notification, logger)
	defer closeNotifier()
	notifications := service.NewNotificationService(dispatcher, notify, logger, cfg.Notification)
	worker.StartSubscribers(dispatcher, notifications, settlement)

	if cfg.Worker.Enabled {
		reconciler := worker.NewReconciler(worker.ReconcilerDependencies{
			Timeline:  timeline,
			Lifecycle: lifecycle,
			Entities:  repos.Lifecycle,
			Config:    cfg.Worker,
			Logger:    logger,
		})
		go reconciler.Start(ctx)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(auth.NewIdentityResolver(tokens, cfg.Auth.ServiceKeys))

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Lifecycle:      handlers.NewLifecycleHandler(lifecycle, timeline),
		Audit:          handlers.NewAuditHandler(ledger, timeline),
		Registration:   handlers.NewRegistrationHandler(lifecycle),
		Settlement:     handlers.NewSettlementHandler(lifecycle, settlement),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

// openStore picks Postgres when a pool is available and the in-memory
// store otherwise.
func openStore(pg *persistence.Postgres) (repository.Repositories, repository.TxRunner) {
	if pool := pg.PoolHandle(); pool != nil {
		store := repository.NewStore(pool)
		return store.Repositories, store
	}
	store := memstore.New()
	return store.Repositories, store
}

func newNotifier(cfg config.NotificationConfig, logger *zap.Logger) (notifier.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return notifier.NewLogNotifier(logger), func() {}
	}
	kafka, err := notifier.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		logger.Fatal("failed to init kafka notifier", zap.Error(err))
	}
	return kafka, func() {
		if err := kafka.Close(); err != nil {
			logger.Warn("closing kafka notifier", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
