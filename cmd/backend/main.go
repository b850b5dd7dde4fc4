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

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/storefront-go/internal/api"
	"github.com/storefront-labs/storefront-go/internal/config"
	"github.com/storefront-labs/storefront-go/internal/export"
	"github.com/storefront-labs/storefront-go/internal/platform/auth"
	"github.com/storefront-labs/storefront-go/internal/platform/httpserver"
	"github.com/storefront-labs/storefront-go/internal/platform/objectstore"
	"github.com/storefront-labs/storefront-go/internal/platform/postgres"
	"github.com/storefront-labs/storefront-go/internal/platform/tracing"
	repopg "github.com/storefront-labs/storefront-go/internal/repo/postgres"
	"github.com/storefront-labs/storefront-go/internal/retry"
	"github.com/storefront-labs/storefront-go/internal/service/catalog"
	"github.com/storefront-labs/storefront-go/internal/service/orders"
	"github.com/storefront-labs/storefront-go/internal/service/simulate"
	"github.com/storefront-labs/storefront-go/internal/service/users"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	tracingCfg, err := tracing.ConfigFromEnv(cfg.App.Name)
	if err != nil {
		logger.Error("invalid tracing config", "error", err)
		os.Exit(2)
	}
	shutdownTracing, err := tracing.Setup(ctx, tracingCfg)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := repopg.EnsureSchema(startupCtx, db); err != nil {
		cancel()
		logger.Error("schema init failed", "error", err)
		os.Exit(1)
	}
	if err := repopg.Seed(startupCtx, db); err != nil {
		cancel()
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	cancel()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	bucketCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBuckets(bucketCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()

	exec, err := retry.New(cfg.RetryPolicy(), repopg.Transient, retry.WithLogger(logger))
	if err != nil {
		logger.Error("retry executor init failed", "error", err)
		os.Exit(2)
	}
	sim := simulate.New(cfg.Simulation)

	userStore := repopg.NewUserStore(db)
	productStore := repopg.NewProductStore(db)
	orderStore := repopg.NewOrderStore(db)

	reportStore, err := objectstore.NewStoreWithClient(storeClient)
	if err != nil {
		logger.Error("report store init failed", "error", err)
		os.Exit(2)
	}

	usersSvc := users.New(userStore, exec, sim)
	catalogSvc := catalog.New(productStore, exec)
	ordersSvc := orders.New(orderStore, productStore, userStore, exec, sim, logger)
	exportSvc := export.New(orderStore, reportStore, storeCfg.BucketReports, exec)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpserver.Healthz(cfg.App.Name))
	mux.HandleFunc(
		"GET /readyz",
		httpserver.ReadyzWithChecks(
			cfg.App.Name,
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)

	api.New(logger, usersSvc, catalogSvc, ordersSvc, exportSvc).Register(mux)

	var handler http.Handler = mux

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := auth.NewAuthenticator(ctx, authCfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(1)
	}
	if authenticator != nil {
		handler = auth.Middleware{
			Logger:        logger,
			Authenticator: authenticator,
			SkipPrefixes:  []string{"/healthz", "/readyz"},
			MutatingOnly:  true,
		}.Wrap(handler)
	}

	handler = httpserver.Wrap(logger, cfg.App.Name, handler)
	handler = otelhttp.NewHandler(handler, "http.server")

	serverCfg := httpserver.Config{
		Service:         cfg.App.Name,
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, serverCfg, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
