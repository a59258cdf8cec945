package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stellarc/stellarc/cmd/stellarc/cli"
	"github.com/stellarc/stellarc/internal/app"
	"github.com/stellarc/stellarc/internal/audit"
	audithttp "github.com/stellarc/stellarc/internal/audit/http"
	"github.com/stellarc/stellarc/internal/automation"
	"github.com/stellarc/stellarc/internal/files"
	"github.com/stellarc/stellarc/internal/identity"
	"github.com/stellarc/stellarc/internal/llm"
	"github.com/stellarc/stellarc/internal/observability"
	"github.com/stellarc/stellarc/internal/platform/cache"
	"github.com/stellarc/stellarc/internal/platform/db"
	"github.com/stellarc/stellarc/internal/rbac"
	"github.com/stellarc/stellarc/internal/roles"
	"github.com/stellarc/stellarc/internal/shared"
	"github.com/stellarc/stellarc/jobs"
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}

	root := cli.NewRootCommand(cli.Deps{
		Serve: func(ctx context.Context) error {
			return serve(ctx, cfg, logger)
		},
		Roles: func(ctx context.Context) (cli.RoleStore, func(), error) {
			pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: 2})
			if err != nil {
				return nil, nil, err
			}
			return rbac.NewStore(pool), pool.Close, nil
		},
		Jobs: func() *cli.JobsCLI {
			return cli.NewJobsCLI(redisOpts)
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		logger.Error("stellarc", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	sessions := identity.NewSessionStore(redisClient, cfg.AuthSessionTTL)
	tokens := identity.NewTokens(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, sessions)
	directory := identity.NewDirectory(dbpool)
	authMiddleware := identity.Middleware{Verifier: tokens, Logger: logger}
	authHandler := identity.NewHandler(logger, identity.NewService(directory, sessions, tokens), authMiddleware)

	roleStore := rbac.NewStore(dbpool)
	var (
		checker     rbac.Checker = roleStore
		invalidator roles.CacheInvalidator
	)
	if cfg.RoleCacheTTL > 0 {
		cached := rbac.NewCachedChecker(roleStore, redisClient, cfg.RoleCacheTTL, logger)
		checker = cached
		invalidator = cached
	}
	rbacMiddleware := rbac.Middleware{Checker: checker, Logger: logger}

	auditLogger := shared.NewAuditLogger(dbpool)
	rolesHandler := roles.NewHandler(logger,
		roles.NewService(roleStore, directory, invalidator, auditLogger, logger),
		authMiddleware, rbacMiddleware)
	auditHandler := audithttp.NewHandler(logger,
		audit.NewService(audit.NewRepository(dbpool)), audit.CSVExporter{},
		authMiddleware, rbacMiddleware)

	provider := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	})
	if !provider.Configured() {
		logger.Warn("LLM_API_KEY not set, agent requests will fail")
	}
	agentService := automation.NewService(
		automation.NewRepository(dbpool),
		provider,
		checker,
		automation.Options{RequireAuth: cfg.AgentRequiresAuth(), AllowedRoles: cfg.AgentAllowedRoles},
		logger,
		automation.NewMetrics(metrics.Registerer()),
	)
	agentHandler := automation.NewHandler(logger, agentService, authMiddleware)

	var filesHandler *files.Handler
	objects, err := files.NewS3Store(ctx, files.S3Config{
		Bucket:   cfg.StorageBucket,
		Region:   cfg.StorageRegion,
		Endpoint: cfg.StorageEndpoint,
	})
	if err != nil {
		logger.Warn("object storage unavailable, uploads disabled", slog.Any("error", err))
	} else {
		filesService := files.NewService(objects, files.NewRepository(dbpool), cfg.StorageMaxUploadBytes, logger)
		filesHandler = files.NewHandler(logger, filesService, authMiddleware, rbacMiddleware)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		AgentHandler: agentHandler,
		RolesHandler: rolesHandler,
		FilesHandler: filesHandler,
		AuditHandler: auditHandler,
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("agent_auth", cfg.AgentAuthMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
