package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/alert"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/config"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/exchange/bitfinex"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/infrastructure/metrics"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/journal"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/ladder"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/mock"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/logging"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/telemetry"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		bootstrap, _ := logging.NewZapLogger("INFO")
		bootstrap.Fatal("Failed to load configuration", "file", *configFile, "error", err)
	}

	tel, err := telemetry.Setup("ladderbot")
	if err != nil {
		bootstrap, _ := logging.NewZapLogger("INFO")
		bootstrap.Fatal("Failed to initialize telemetry", "error", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ladder bot",
		"exchange", cfg.App.Exchange, "pair", cfg.App.Pair,
		"count", cfg.Ladder.Count, "step", cfg.Ladder.PriceStepPercent)

	store, err := journal.NewSQLiteStore(cfg.System.DBPath, cfg.App.Pair, cfg.App.Exchange)
	if err != nil {
		logger.Fatal("Failed to open order journal", "path", cfg.System.DBPath, "error", err)
	}
	defer store.Close()

	exch, cleanup, err := buildExchange(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize exchange adapter", "exchange", cfg.App.Exchange, "error", err)
	}
	defer cleanup()

	alerts := alert.NewManager(logger, cfg.App.SilentMode)
	if cfg.Alerts.SlackWebhookURL != "" {
		alerts.AddChannel(alert.NewSlackChannel(cfg.Alerts.SlackWebhookURL, cfg.App.NotifyName))
	}
	if cfg.Alerts.TelegramBotToken != "" {
		alerts.AddChannel(alert.NewTelegramChannel(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID))
	}
	defer alerts.Close()

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsServer.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ladder.ReInit {
		// One-shot: raise the persisted flag so the first iteration rebuilds.
		params, err := store.LoadParams(ctx)
		if err != nil {
			logger.Fatal("Failed to load strategy parameters", "error", err)
		}
		params.ReInit = true
		if err := store.SaveParams(ctx, params); err != nil {
			logger.Fatal("Failed to persist re-init flag", "error", err)
		}
		logger.Info("Ladder re-initialization requested")
	}

	engine := ladder.NewEngine(ladder.FromConfig(cfg), exch, store, store, alerts, logger)
	scheduler := ladder.NewScheduler(engine, exch.Features(),
		func() bool { return cfg.Ladder.IsActive }, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Scheduler exited with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Telemetry shutdown failed", "error", err)
	}

	logger.Info("Ladder bot stopped")
}

func buildExchange(cfg *config.Config, logger core.ILogger) (core.IExchange, func(), error) {
	switch cfg.App.Exchange {
	case "mock":
		logger.Warn("Using the mock exchange, no live trading")
		return mock.NewExchange(), func() {}, nil
	case "bitfinex":
	default:
		return nil, nil, fmt.Errorf("unsupported exchange %q", cfg.App.Exchange)
	}

	creds := cfg.Exchanges[cfg.App.Exchange]
	exch, err := bitfinex.New(bitfinex.Options{
		APIKey:    creds.APIKey,
		SecretKey: creds.SecretKey,
		BaseURL:   creds.BaseURL,
		WSURL:     creds.WSURL,
		UseTicker: creds.UseTicker,
		Pair:      cfg.App.Pair,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return exch, exch.Close, nil
}
