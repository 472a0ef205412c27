package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/evm"
	"github.com/azmshoh/sniper-bot/internal/observability"
	"github.com/azmshoh/sniper-bot/internal/orchestrator"
	"github.com/azmshoh/sniper-bot/internal/rpcpool"
	"github.com/azmshoh/sniper-bot/internal/storage"
	chstore "github.com/azmshoh/sniper-bot/internal/storage/clickhouse"
	"github.com/azmshoh/sniper-bot/internal/storage/memory"
	"github.com/azmshoh/sniper-bot/internal/storage/migrations"
	pgstore "github.com/azmshoh/sniper-bot/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config, empty uses config)")

	flag.Parse()

	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, *useMemory)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) error {
	var (
		positions  storage.PositionStore    = memory.NewPositionStore()
		rejections storage.RejectionStore   = memory.NewRejectionStore()
		endpoints  storage.EndpointStore    = memory.NewEndpointStore()
		samples    storage.PriceSampleStore
	)

	if !useMemory {
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required (use --use-memory for in-memory storage)")
		}
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		positions = pgstore.NewPositionStore(pool)
		rejections = pgstore.NewRejectionStore(pool)
		endpoints = pgstore.NewEndpointStore(pool)
	}

	// The price archive is optional; the bot trades fine without it.
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Printf("ClickHouse unavailable, price archive disabled: %v", err)
		} else {
			defer conn.Close()
			samples = chstore.NewPriceSampleStore(conn)
		}
	}

	pool := rpcpool.New(rpcpool.Options{
		FailureThreshold: cfg.Pool.FailureThreshold,
		CooldownBase:     time.Duration(cfg.Pool.CooldownBaseSecond) * time.Second,
		CooldownMax:      time.Duration(cfg.Pool.CooldownMaxSecond) * time.Second,
		ScoreGain:        cfg.Pool.ScoreGain,
		ScoreDecay:       cfg.Pool.ScoreDecay,
		RatePerSecond:    cfg.Pool.RatePerSecond,
		Store:            endpoints,
		Logger:           logger,
	})
	for network, netCfg := range cfg.Networks {
		working, err := endpoints.WorkingURLs(ctx, network)
		if err != nil {
			logger.Printf("Load working endpoints for %s: %v", network, err)
		}
		pool.AddNetwork(network, netCfg.Endpoints, working)
		logger.Printf("Registered %d endpoints for %s (%d known working)",
			len(netCfg.Endpoints), network, len(working))
	}

	chainClient := evm.NewClient(evm.Options{
		Pool:     pool,
		Networks: cfg.Networks,
		Retry:    cfg.Retry,
		Wallet:   cfg.Trading.WalletAddress,
		Logger:   logger,
	})

	orch := orchestrator.New(orchestrator.Options{
		Config:     cfg,
		Chain:      chainClient,
		Positions:  positions,
		Rejections: rejections,
		Samples:    samples,
		Logger:     logger,
	})

	startPushSources(ctx, logger, cfg, orch)

	return orch.Run(ctx)
}

// startPushSources subscribes to PairCreated logs over websocket where a
// network configures one. Push is an accelerator; the poll loop remains the
// source of truth, so a failed subscription only logs.
func startPushSources(ctx context.Context, logger *log.Logger, cfg *config.Config, orch *orchestrator.Orchestrator) {
	for network, netCfg := range cfg.Networks {
		if netCfg.WSEndpoint == "" {
			continue
		}

		ws, err := evm.NewWSClient(ctx, netCfg.WSEndpoint, nil)
		if err != nil {
			logger.Printf("Websocket connect for %s failed, falling back to polling only: %v", network, err)
			continue
		}
		go func() {
			<-ctx.Done()
			ws.Close()
		}()

		for exchange, exCfg := range netCfg.Exchanges {
			logs, err := ws.SubscribeLogs(ctx, evm.LogsFilter{
				Address: exCfg.Factory,
				Topics:  []string{evm.TopicPairCreated},
			})
			if err != nil {
				logger.Printf("Subscribe PairCreated for %s/%s failed: %v", network, exchange, err)
				continue
			}
			logger.Printf("Websocket push discovery active for %s/%s", network, exchange)

			network, exchange, wrapped := network, exchange, exCfg.WrappedToken
			go func() {
				for lg := range logs {
					for _, ev := range evm.PairEventsFromLogs([]evm.Log{lg}, wrapped) {
						orch.HandlePairEvent(ctx, network, exchange, ev)
					}
				}
			}()
		}
	}
}
