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

	httptransport "github.com/Dev-Manje/helpdesk/internal/api/http"
	"github.com/Dev-Manje/helpdesk/internal/api/http/handlers"
	"github.com/Dev-Manje/helpdesk/internal/auth"
	"github.com/Dev-Manje/helpdesk/internal/config"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/observability"
	"github.com/Dev-Manje/helpdesk/internal/persistence"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	"github.com/Dev-Manje/helpdesk/internal/service"
	"github.com/Dev-Manje/helpdesk/internal/worker"
)

const (
	notificationStreamMaxLen = 10000
	shutdownTimeout          = 10 * time.Second
)

type repositories struct {
	tickets    repository.TicketRepository
	agents     repository.AgentRepository
	rules      repository.SLARuleRepository
	categories repository.CategoryRepository
	timeline   repository.TimelineRepository
	store      repository.UnitOfWork
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meter, shutdownMetrics, err := observability.SetupMetrics(cfg.Metrics)
	if err != nil {
		logger.Fatal("failed to init metrics", zap.Error(err))
	}
	metrics := observability.NewMetrics(meter)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repositories{
			tickets:    repository.NewTicketRepository(pool),
			agents:     repository.NewAgentRepository(pool),
			rules:      repository.NewSLARuleRepository(pool),
			categories: repository.NewCategoryRepository(pool),
			timeline:   repository.NewTimelineRepository(pool),
			store:      repository.NewUnitOfWork(pool),
		}
	} else {
		repos = repositories{
			tickets:    repository.NewMemoryTicketRepository(),
			agents:     repository.NewMemoryAgentRepository(),
			rules:      repository.NewMemorySLARuleRepository(),
			categories: repository.NewMemoryCategoryRepository(),
			timeline:   repository.NewMemoryTimelineRepository(),
		}
		repos.store = repository.NewMemoryUnitOfWork(repos.tickets, repos.timeline)
		pg = nil
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)

	lifecycle := service.NewLifecycle(service.LifecycleDependencies{
		TicketRepo:   repos.tickets,
		TimelineRepo: repos.timeline,
		Store:        repos.store,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Metrics:      metrics,
		LockWait:     cfg.Engine.LockWait(),
	})
	categories := service.NewCategoryService(repos.categories, nil)
	policy := service.NewSLAPolicyService(repos.rules, nil)
	agents := service.NewAgentService(service.AgentDependencies{
		AgentRepo:  repos.agents,
		Categories: categories,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		Lifecycle:     lifecycle,
		AgentRepo:     repos.agents,
		TicketRepo:    repos.tickets,
		Logger:        logger,
		Metrics:       metrics,
		RetryDebounce: cfg.Engine.RetryDebounce(),
	})
	escalation := service.NewEscalationService(service.EscalationDependencies{
		Lifecycle:  lifecycle,
		Assignment: assignment,
		AgentRepo:  repos.agents,
		Logger:     logger,
		Metrics:    metrics,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Lifecycle:    lifecycle,
		TicketRepo:   repos.tickets,
		TimelineRepo: repos.timeline,
		Policy:       policy,
		Categories:   categories,
		Assignment:   assignment,
		Logger:       logger,
	})

	var leaser service.SweepLeaser
	if redis.Enabled() {
		leaser = redis
	}
	slaClock := service.NewSLAClock(service.SLAClockDependencies{
		Lifecycle:  lifecycle,
		TicketRepo: repos.tickets,
		Escalation: escalation,
		Assignment: assignment,
		Leaser:     leaser,
		Logger:     logger,
		Metrics:    metrics,
		Config: service.SLAClockConfig{
			Interval:     cfg.Engine.SweepInterval(),
			TicketBudget: cfg.Engine.SweepTicketBudget(),
			Concurrency:  cfg.Engine.SweepConcurrency,
			LeaseTTL:     cfg.Engine.SweepLease(),
		},
	})

	assignment.RegisterHandlers(dispatcher)

	var publisher service.EventPublisher
	if redis.Enabled() && cfg.Notification.RedisStream != "" {
		publisher = persistence.NewStreamPublisher(redis, cfg.Notification.RedisStream, notificationStreamMaxLen)
	}
	notifications := service.NewNotificationService(logger, cfg.Notification, publisher)
	notifier := worker.NewNotificationWorker(notifications, logger, cfg.Notification.Workers, cfg.Notification.QueueSize)
	notifier.Subscribe(dispatcher)
	notifier.Start(ctx)

	go assignment.Run(ctx)
	go slaClock.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.agents)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, slaClock),
		Tickets:        handlers.NewTicketsHandler(tickets, assignment, escalation),
		Agents:         handlers.NewAgentsHandler(agents, categories),
		SLA:            handlers.NewSLAHandler(policy, slaClock),
		Events:         handlers.NewEventsHandler(ctx, dispatcher, logger),
		AuthMiddleware: authMiddleware,
		RateLimiter:    httptransport.NewRateLimiter(cfg.Engine.RateLimitPerSecond, cfg.Engine.RateLimitBurst),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Wait()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := shutdownMetrics(flushCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
