package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/getclave/activity-indexer/internal/chain/evm"
	"github.com/getclave/activity-indexer/internal/config"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/feed"
	"github.com/getclave/activity-indexer/internal/ledger"
	"github.com/getclave/activity-indexer/internal/membership"
	"github.com/getclave/activity-indexer/internal/pools"
	"github.com/getclave/activity-indexer/internal/store/postgres"
	redispkg "github.com/getclave/activity-indexer/internal/store/redis"
	"github.com/getclave/activity-indexer/internal/tracing"
)

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting activity-indexer",
		"chain_rpc", cfg.Chain.RPCURL,
		"event_stream", cfg.Redis.EventStream,
		"event_group", cfg.Redis.EventGroup,
		"aggregator_main", cfg.Ledger.AggregatorMain,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "activity-indexer", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background(), cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	stream, err := redispkg.NewStream(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	chainClient, err := evm.Dial(context.Background(),
		cfg.Chain.RPCURL, float64(cfg.Chain.RateLimitRPS), cfg.Chain.RateBurst, logger)
	if err != nil {
		logger.Error("failed to dial chain rpc", "error", err)
		os.Exit(1)
	}
	defer chainClient.Close()

	accounts := postgres.NewAccountRepo(db)
	idle := postgres.NewIdleBalanceRepo(db)
	earn := postgres.NewEarnBalanceRepo(db)
	lendingPools := postgres.NewLendingPoolRepo(db)
	ammPools := postgres.NewAMMPoolRepo(db)
	aggregatorPools := postgres.NewAggregatorPoolRepo(db)
	registry := postgres.NewPoolRegistryRepo(db)
	adapters := postgres.NewAdapterRepo(db)
	walletRepo := postgres.NewWalletRepo(db)

	wallets := membership.NewWalletCache(walletRepo, membership.WalletCacheConfig{
		NegativeCacheCapacity: cfg.Membership.NegativeCacheSize,
		NegativeCacheTTL:      cfg.Membership.NegativeCacheTTL,
	})
	ammSet := membership.NewPoolSet(model.ProtocolAMM, registry, 4096)
	if err := ammSet.Warm(context.Background()); err != nil {
		logger.Error("failed to warm amm pool set", "error", err)
		os.Exit(1)
	}

	registrar := redispkg.NewRegistrar(stream, cfg.Redis.RegistryStream)
	resolver := pools.NewResolver(chainClient, registrar,
		lendingPools, ammPools, aggregatorPools, registry, adapters, ammSet, logger)

	var opts []ledger.Option
	if cfg.Ledger.TrackAllWallets {
		opts = append(opts, ledger.WithAllWalletsTracked())
	}
	router := ledger.NewRouter(
		accounts, idle, earn, lendingPools, ammPools, aggregatorPools,
		adapters, registry, wallets, ammSet, resolver,
		cfg.Ledger.AggregatorMain, logger, opts...,
	)

	consumer := feed.NewConsumer(stream.Client(), router,
		cfg.Redis.EventStream, cfg.Redis.EventGroup, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer shut down gracefully")
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
