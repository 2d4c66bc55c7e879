package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/api"
	"github.com/seenimoa/stackswap/internal/backend"
	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/bridge"
	"github.com/seenimoa/stackswap/internal/events"
	"github.com/seenimoa/stackswap/internal/flow"
	"github.com/seenimoa/stackswap/internal/infra"
	"github.com/seenimoa/stackswap/internal/liquidity"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/internal/rates"
	"github.com/seenimoa/stackswap/internal/wallet"
	"github.com/seenimoa/stackswap/pkg/models"
)

// app is the fully wired service.
type app struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *infra.Metrics
	client   *backend.Client
	redis    *redis.Client
	kafka    *events.KafkaSink
	ctrl     *flow.Controller
	server   *api.Server
}

// newLogger builds the process logger, honoring --log-level.
func newLogger() *logrus.Logger {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	return infra.NewLogger(level, cfg.Logging.Format)
}

// newClient builds the backend client shared by every command.
func newClient(logger *logrus.Logger, metrics *infra.Metrics) *backend.Client {
	return backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
		Limiter: infra.NewRateLimiter(cfg.Backend.RateLimit, cfg.Backend.Burst),
		Metrics: metrics,
		Logger:  logger,
	})
}

// newRedis connects to the session store when it is configured.
func newRedis() *redis.Client {
	if cfg.Session.Store != "redis" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisAddr,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
}

// flowOptions maps configuration onto controller options.
func flowOptions() flow.Options {
	opts := flow.DefaultOptions()
	if cfg.Asset.Symbol != "" {
		opts.Assets = []models.Asset{models.NormalizeAsset(cfg.Asset.Symbol)}
	}
	opts.MicroUnits = cfg.Asset.MicroUnits
	opts.Precision = quote.Precision{Asset: cfg.Asset.AssetPlaces, Fiat: cfg.Asset.FiatPlaces}
	if cfg.Asset.DefaultAmount != "" {
		opts.DefaultAmount = cfg.Asset.DefaultAmount
	}
	if len(cfg.Asset.QuickAmounts) > 0 {
		opts.QuickAmounts = cfg.Asset.QuickAmounts
	}
	opts.Network = models.Network(cfg.Network.Name)
	if cfg.Network.ExplorerURL != "" {
		opts.ExplorerURL = cfg.Network.ExplorerURL
	}
	if !cfg.Buy.LaunchAt.IsZero() {
		opts.BuyLaunchAt = cfg.Buy.LaunchAt
	}
	opts.VerifyDebounce = cfg.Bank.VerifyDebounce
	opts.RatePoll = cfg.Rates.PollInterval
	return opts
}

// gateConfig maps configuration onto the liquidity policy.
func gateConfig() liquidity.Config {
	gc := liquidity.DefaultConfig()
	gc.FailOpen = cfg.Liquidity.FailOpen
	gc.AssetPlaces = cfg.Asset.AssetPlaces
	if cfg.Asset.Symbol != "" {
		gc.AssetSymbol = string(models.NormalizeAsset(cfg.Asset.Symbol))
	}
	return gc
}

// newApp wires the controller, its collaborators and the API server.
func newApp() *app {
	logger := newLogger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(registry)

	client := newClient(logger, metrics)
	rdb := newRedis()

	var store wallet.Store = wallet.NewMemoryStore()
	if rdb != nil {
		store = wallet.NewRedisStore(rdb, cfg.Session.Key, cfg.Session.TTL)
	}

	hub := api.NewWSHub(logger)
	br := bridge.New(hub, cfg.API.PromptTimeout, logger)

	bus := events.NewBus(logger)
	bus.Subscribe(hub)
	bus.Subscribe(events.LogSink{Logger: logger})
	var kafkaSink *events.KafkaSink
	if len(cfg.Events.Brokers) > 0 {
		kafkaSink = events.NewKafkaSink(events.NewKafkaWriter(cfg.Events.Brokers, cfg.Events.Topic))
		bus.Subscribe(kafkaSink)
	}

	ctrl := flow.New(flowOptions(), flow.Deps{
		Orders:    client,
		Rates:     rates.NewCache(client, logger, metrics),
		Wallet:    wallet.NewManager(br.Wallet(), wallet.NewCapabilityDetector(br.Markers), store, logger),
		Liquidity: liquidity.NewGate(client, gateConfig(), logger, metrics),
		Verifier:  bankverify.NewVerifier(client, logger, metrics),
		Banks:     bankverify.NewDirectory(client, cfg.Bank.BanksTTL),
		Payments:  br.Widget(),
		Events:    bus,
		Logger:    logger,
		Metrics:   metrics,
	})

	server := api.NewServer(api.ServerConfig{
		Config:     cfg,
		Controller: ctrl,
		Bridge:     br,
		Hub:        hub,
		Registry:   registry,
		Logger:     logger,
		Version:    version,
	})

	return &app{
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		client:   client,
		redis:    rdb,
		kafka:    kafkaSink,
		ctrl:     ctrl,
		server:   server,
	}
}

// close releases external connections.
func (a *app) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.WithError(err).Warn("close kafka writer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("close redis client")
		}
	}
}

// pingRedis reports whether the session store answers.
func pingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.Session.RedisAddr, err)
	}
	return nil
}
