package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"musiclib/internal/api"
	"musiclib/internal/clock"
	"musiclib/internal/config"
	"musiclib/internal/health"
	"musiclib/internal/history"
	"musiclib/internal/metrics"
	"musiclib/internal/playback"
	"musiclib/internal/reconnect"
	"musiclib/internal/roon"
	"musiclib/internal/zones"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"), logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting music library playback service",
		zap.String("bridge_url", cfg.BridgeURL),
		zap.Int("api_port", cfg.APIPort))

	clk := clock.NewRealClock()
	recorder := metrics.NewRecorder()
	bridge := roon.NewClient(cfg.BridgeURL, logger)
	tracker := zones.NewTracker(bridge, clk, logger)
	reconnector := reconnect.NewManager(bridge, tracker, recorder, logger, cfg.RestoreTimeout())

	// Initial connect is best-effort: if the bridge is down at startup
	// the health monitor will repair the session once it comes back
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.RestoreTimeout())
	if err := bridge.Connect(startupCtx); err != nil {
		logger.Warn("Bridge unavailable at startup, will reconnect when reachable", zap.Error(err))
	} else if !tracker.Refresh(startupCtx) {
		logger.Warn("Connected but no zones observed yet")
	}
	cancelStartup()
	defer bridge.Close()

	monitor := health.NewMonitor(bridge, reconnector, recorder, clk, logger, health.Config{
		Interval:         cfg.ProbeInterval(),
		ProbeTimeout:     cfg.ProbeTimeout(),
		FailureThreshold: cfg.Health.FailureThreshold,
	})

	engine := playback.NewEngine(bridge, recorder, logger, cfg.CallTimeout())
	controller := playback.NewTransportController(bridge, tracker, recorder, clk, logger, playback.TransportConfig{
		MaxRetries:   cfg.Playback.MaxRetries,
		SettleDelay:  cfg.SettleDelay(),
		RetryBackoff: cfg.RetryBackoff(),
		CallTimeout:  cfg.CallTimeout(),
	})

	recent, err := history.NewPoller(tracker, monitor, logger, cfg.HistoryPollInterval(), cfg.History.MaxEntries)
	if err != nil {
		logger.Fatal("Failed to create history poller", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tracker.Run(ctx)
	go monitor.Run(ctx)
	recent.Start()

	server := api.NewServer(engine, controller, tracker, monitor, recent, recorder.Handler(), logger, cfg.APIPort)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown failed", zap.Error(err))
	}
	if err := recent.Stop(); err != nil {
		logger.Warn("History poller shutdown failed", zap.Error(err))
	}
}
