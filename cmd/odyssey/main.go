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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-admin/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-admin/internal/app"
	"github.com/odyssey-erp/odyssey-admin/internal/auth"
	"github.com/odyssey-erp/odyssey-admin/internal/observability"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/roles"
	"github.com/odyssey-erp/odyssey-admin/internal/routes"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

const usage = `usage: odyssey <command> [flags]

commands:
  serve     start the admin API (default)
  migrate   apply pending database migrations
  access    show roles, grants and menu for a user
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch command {
	case "serve":
		code = runServe(ctx)
	case "migrate":
		code = runMigrate(ctx)
	case "access":
		code = runAccess(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

// runtime holds the shared infrastructure every command needs.
type runtime struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

func runMigrate(ctx context.Context) int {
	rt, err := bootstrap(ctx)
	if err != nil {
		slog.Default().Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer rt.pool.Close()

	applied, err := db.Migrate(ctx, rt.pool)
	if err != nil {
		rt.logger.Error("migrate", slog.Any("error", err))
		return 1
	}
	rt.logger.Info("migrations applied", slog.Int("count", applied))
	return 0
}

func runAccess(ctx context.Context, args []string) int {
	flags := pflag.NewFlagSet("access", pflag.ContinueOnError)
	var opts cli.AccessOptions
	flags.Int64VarP(&opts.UserID, "user", "u", 0, "user id to inspect")
	flags.StringVarP(&opts.Path, "path", "p", "", "route path to check")
	flags.BoolVar(&opts.JSONOutput, "json", false, "print JSON instead of text")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rt, err := bootstrap(ctx)
	if err != nil {
		slog.Default().Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer rt.pool.Close()

	usersSvc := users.NewService(users.NewRepository(rt.pool))
	routesSvc := routes.NewService(routes.NewRepository(rt.pool), usersSvc)
	access, err := cli.NewAccessCLI(usersSvc, routesSvc)
	if err != nil {
		rt.logger.Error("access cli", slog.Any("error", err))
		return 1
	}
	return access.InspectCommand(ctx, opts)
}

func runServe(ctx context.Context) int {
	rt, err := bootstrap(ctx)
	if err != nil {
		slog.Default().Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer rt.pool.Close()
	cfg, logger := rt.cfg, rt.logger

	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	defer func() { _ = redisClient.Close() }()

	metrics := observability.NewMetrics()

	revocations := auth.NewRevocationStore(redisClient)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, revocations)

	permissionsSvc := rbac.NewService(rbac.NewRepository(rt.pool))
	rolesSvc := roles.NewService(roles.NewRepository(rt.pool))
	usersSvc := users.NewService(users.NewRepository(rt.pool))
	routesSvc := routes.NewService(routes.NewRepository(rt.pool), usersSvc)
	authSvc := auth.NewService(usersSvc, tokens, revocations)

	guard := rbac.Middleware{
		Credentials: tokens,
		Principals:  usersSvc,
		Logger:      logger,
		Recorder:    metrics,
		CookieName:  cfg.AuthCookieName,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authSvc, guard, cfg.AuthCookieName, cfg.IsProduction()),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, permissionsSvc, guard),
		RolesHandler:       roles.NewHandler(logger, rolesSvc, guard),
		UsersHandler:       users.NewHandler(logger, usersSvc, guard),
		RoutesHandler:      routes.NewHandler(logger, routesSvc, guard),
		Metrics:            metrics,
		Health: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return rt.pool.Ping(r.Context()) },
			"redis":    redisPing(redisClient),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	failed := make(chan struct{})
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			close(failed)
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
	case <-failed:
		code = 1
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return code
}

func redisPing(client *redis.Client) app.HealthCheck {
	return func(r *http.Request) error {
		return client.Ping(r.Context()).Err()
	}
}
