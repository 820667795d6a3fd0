// Package main provides the offer console host. It wires together
// configuration, logging, metrics, Lua predicates, the optional key price
// database and the telnet console.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/config"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/handlers"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/console/telnet"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/scripting"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/server"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/storage/postgres"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/enhancer"
	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/trade/summary"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting offer console",
		zap.String("console_addr", cfg.Console.Addr()),
		zap.Bool("database", cfg.Database.Enabled),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics("offer", registry)
	if err != nil {
		logger.Fatal("registering metrics", zap.Error(err))
	}

	predicates := scripting.NewManager(cfg.Scripting.InstructionLimit, logger)
	defer predicates.Close()
	if cfg.Scripting.PredicateDir != "" {
		if err := predicates.LoadDir(cfg.Scripting.PredicateDir); err != nil {
			logger.Fatal("loading predicates", zap.Error(err))
		}
	}

	ctx := context.Background()
	lifecycle := server.NewLifecycle(logger)

	var keyPrices enhancer.KeyPriceStore = enhancer.NewMemoryKeyPrices()
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		keyPrices = postgres.NewKeyPriceRepository(pool.DB())
		lifecycle.Add("postgres", healthService(ctx, pool, logger))
	}

	if cfg.Metrics.Addr != "" {
		metricsServer := server.NewMetricsServer(cfg.Metrics.Addr, registry, logger)
		lifecycle.Add("metrics", metricsServer)
	}

	console := handlers.NewConsole(handlers.Options{
		Enhancer: enhancer.Options{
			Clock:         clockwork.NewRealClock(),
			ApplyInterval: cfg.Offer.ApplyInterval,
			SummaryPolicy: summary.Policy{
				StaleAfter:      cfg.Offer.SummaryStaleAfter,
				DeferDelay:      cfg.Offer.SummaryDeferDelay,
				SmallOfferLimit: cfg.Offer.SummarySmallOfferLimit,
			},
			Predicates: predicates,
			KeyPrices:  keyPrices,
			Metrics:    metrics,
		},
		SnapshotDir: cfg.Console.SnapshotDir,
		Categories:  predicates.Names,
		Logger:      logger,
	})
	lifecycle.Add("console", telnet.NewAcceptor(cfg.Console, console, logger))

	logger.Info("offer console initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Strings("categories", predicates.Names()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// healthService pings the database every 30 seconds until stopped, then
// closes the pool.
func healthService(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) server.Service {
	quit := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-quit:
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			close(quit)
			pool.Close()
		},
	}
}
