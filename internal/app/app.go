package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hanzoai/bootnode/internal/audit"
	"github.com/hanzoai/bootnode/internal/auth"
	"github.com/hanzoai/bootnode/internal/config"
	"github.com/hanzoai/bootnode/internal/httpserver"
	"github.com/hanzoai/bootnode/internal/platform"
	"github.com/hanzoai/bootnode/internal/telemetry"
	"github.com/hanzoai/bootnode/pkg/apikey"
	"github.com/hanzoai/bootnode/pkg/billing"
	"github.com/hanzoai/bootnode/pkg/billing/commerce"
	"github.com/hanzoai/bootnode/pkg/billing/datastore"
	"github.com/hanzoai/bootnode/pkg/billing/subscription"
	"github.com/hanzoai/bootnode/pkg/billing/sync"
	"github.com/hanzoai/bootnode/pkg/billing/usage"
	"github.com/hanzoai/bootnode/pkg/billing/webhook"
	"github.com/hanzoai/bootnode/pkg/deploy"
	"github.com/hanzoai/bootnode/pkg/fleet"
	"github.com/hanzoai/bootnode/pkg/network"
)

// Run is the main application entry point: reads config, connects to
// infrastructure, and starts the requested mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting bootnode",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	ds := connectDatastore(ctx, cfg, logger)
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("closing clickhouse connection", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, ds, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb, ds)
	case "migrate":
		// Migrations were applied above; nothing else runs in this mode.
		return nil
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// connectDatastore dials the columnar analytics store when a DSN is
// configured. A connect failure or an empty DSN both yield a nil *Client —
// the usage tracker treats that as "unavailable" and skips flushing rather
// than failing startup over an analytics-only dependency.
func connectDatastore(ctx context.Context, cfg *config.Config, logger *slog.Logger) *datastore.Client {
	if cfg.ClickHouseDSN == "" {
		logger.Info("clickhouse dsn not configured, usage buffer flush disabled")
		return nil
	}

	ds, err := datastore.Connect(ctx, cfg.ClickHouseDSN)
	if err != nil {
		logger.Error("connecting to clickhouse, usage buffer flush disabled", "error", err)
		return nil
	}
	return ds
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, ds *datastore.Client, metricsReg *prometheus.Registry) error {
	authn := auth.NewAPIKeyAuthenticator(db)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, authn)

	// --- Fleet Orchestrator ---
	fleetDeployer := deploy.New(cfg.ChartPath, cfg.KubeconfigPath, "", cfg.HelmBinary, cfg.KubectlBinary)
	fleetOrch := fleet.NewOrchestrator(fleetDeployer, fleet.NewRegistry(), cfg.DeployTimeout)
	fleetHandler := fleet.NewHandler(logger, auditWriter, fleetOrch)
	srv.APIRouter.Mount("/fleets", fleetHandler.Routes())

	// --- Network Launcher ---
	networkDeployer := deploy.New(cfg.NetworkChart, cfg.KubeconfigPath, "", cfg.HelmBinary, cfg.KubectlBinary)
	networkStore := network.NewStore(db)
	networkLauncher := network.NewLauncher(networkStore, networkDeployer, logger, "letsencrypt-prod", cfg.DeployTimeout)
	networkHandler := network.NewHandler(logger, auditWriter, networkLauncher, cfg.CloudDomains)
	srv.APIRouter.Mount("/networks", networkHandler.Routes())

	// --- Billing Core ---
	subsStore := subscription.NewStore(db)
	usageTracker := usage.NewTracker(rdb, ds, logger)
	commerceClient := commerce.New(cfg.CommerceBaseURL, cfg.CommerceAPIKey, cfg.CommerceTimeout)

	webhookHandler := webhook.NewHandler(cfg.CommerceWebhookSecret, subsStore, rdb, logger)
	webhookHTTP := webhook.NewHTTPHandler(webhookHandler)
	srv.Router.Mount("/webhooks/commerce", webhookHTTP.Routes())

	billingHandler := billing.NewHandler(logger, subsStore, usageTracker, commerceClient)
	srv.APIRouter.Mount("/billing", billingHandler.Routes())

	// --- API keys ---
	apikeyHandler := apikey.NewHandler(logger, auditWriter, db)
	srv.APIRouter.Mount("/api-keys", apikeyHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, ds *datastore.Client) error {
	logger.Info("worker started")

	subsStore := subscription.NewStore(db)
	usageTracker := usage.NewTracker(rdb, ds, logger)
	commerceClient := commerce.New(cfg.CommerceBaseURL, cfg.CommerceAPIKey, cfg.CommerceTimeout)

	worker := sync.NewWorker(rdb, subsStore, usageTracker, commerceClient, logger, cfg.SyncInterval, cfg.SyncLockTTL)
	worker.Start(ctx)

	<-ctx.Done()
	worker.Stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := usageTracker.FlushAll(flushCtx); err != nil {
		logger.Error("flushing usage buffers on shutdown", "error", err)
	}
	return nil
}
