package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quillpost/quillpost/internal/app"
	"github.com/quillpost/quillpost/internal/auth"
	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/interactions"
	"github.com/quillpost/quillpost/internal/lifecycle"
	"github.com/quillpost/quillpost/internal/observability"
	"github.com/quillpost/quillpost/internal/platform/cache"
	"github.com/quillpost/quillpost/internal/platform/db"
	"github.com/quillpost/quillpost/internal/posts"
	"github.com/quillpost/quillpost/internal/shared"
	"github.com/quillpost/quillpost/internal/users"
	"github.com/quillpost/quillpost/jobs"
)

func main() {
	if app.InTestMode() {
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

	engine, err := authz.NewDefault()
	if err != nil {
		logger.Error("build decision engine", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	engine.SetRecorder(metrics)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	lifecycleStore := lifecycle.NewStore(dbpool)
	coordinator := lifecycle.NewCoordinator(
		lifecycleStore, lifecycleStore, lifecycleStore,
		lifecycle.NewRedisLocker(redisClient), logger)
	coordinator.SetReplayer(jobsClient)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, engine, coordinator, idempotencyStore, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, authz.Middleware{Engine: engine, Logger: logger})

	postsRepo := posts.NewRepository(dbpool)
	postsService := posts.NewService(postsRepo, engine, auditLogger, logger)
	postsHandler := posts.NewHandler(logger, postsService)

	interactionsRepo := interactions.NewRepository(dbpool)
	interactionsService := interactions.NewService(interactionsRepo, postsRepo, engine, auditLogger, logger)
	interactionsHandler := interactions.NewHandler(logger, interactionsService)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	denylist := auth.NewDenylist(redisClient)
	authService := auth.NewService(usersRepo, usersService, coordinator, issuer, denylist,
		auth.Superadmin{Email: cfg.SuperadminEmail, Password: cfg.SuperadminPassword}, logger)
	authHandler := auth.NewHandler(logger, authService)
	actorMiddleware := auth.Middleware{Issuer: issuer, Denylist: denylist, Store: usersRepo, Logger: logger}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		ActorMiddleware:     actorMiddleware.Resolve,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		PostsHandler:        postsHandler,
		InteractionsHandler: interactionsHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
