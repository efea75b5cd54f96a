package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/claim-bot/internal/api/http"
	"github.com/spec-kit/claim-bot/internal/api/http/handlers"
	"github.com/spec-kit/claim-bot/internal/auth"
	"github.com/spec-kit/claim-bot/internal/bot"
	"github.com/spec-kit/claim-bot/internal/clock"
	"github.com/spec-kit/claim-bot/internal/commerce"
	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/lifecycle"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/observability"
	"github.com/spec-kit/claim-bot/internal/persistence"
	"github.com/spec-kit/claim-bot/internal/platform/discord"
	"github.com/spec-kit/claim-bot/internal/repository"
	"github.com/spec-kit/claim-bot/internal/service"
	"github.com/spec-kit/claim-bot/internal/timeout"
)

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

	servers, err := config.LoadServers(cfg.Servers.Path)
	if err != nil {
		logger.Fatal("failed to load server table", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	orderRepo := repository.NewOrderRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool, orderRepo)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	metrics.RegisterHandlers(dispatcher)

	platformClient, err := discord.NewClient(cfg.Platform, logger)
	if err != nil {
		logger.Fatal("failed to init platform client", zap.Error(err))
	}
	notifier := notify.NewRenderer(platformClient, logger)

	shopify, err := commerce.NewShopifyClient(cfg.Commerce, logger)
	if err != nil {
		logger.Fatal("failed to init commerce client", zap.Error(err))
	}
	commerceService := commerce.NewCachedService(shopify, redis.Client, cfg.Commerce.RiskCacheTTL(), logger)

	registry := timeout.NewRegistry()
	manager := lifecycle.NewManager(lifecycle.ManagerDependencies{
		Platform:   platformClient,
		TicketRepo: ticketRepo,
		Registry:   registry,
		Clock:      clock.Real(),
		Servers:    servers,
		Dispatcher: dispatcher,
		Logger:     logger,
		Pacing:     cfg.Ticket.CleanupPacing(),
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		OrderRepo:  orderRepo,
		Platform:   platformClient,
		Commerce:   commerceService,
		Notifier:   notifier,
		Lifecycle:  manager,
		Registry:   registry,
		Servers:    servers,
		Timing:     cfg.Ticket,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	// Live channel state must agree with the store before any gateway
	// event is handled.
	if _, err := ticketService.Reconcile(ctx); err != nil {
		logger.Fatal("startup reconciliation failed", zap.Error(err))
	}

	router := bot.NewRouter(ticketService, servers, logger)
	gateway := discord.NewGateway(cfg.Platform.BotToken, platformClient, &gatewayAdapter{router: router}, logger)
	go gateway.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, servers),
		Admin:          handlers.NewAdminHandler(cfg.Auth, tokens, ticketRepo, manager, servers, metrics, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
