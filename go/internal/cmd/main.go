package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/internal/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	// Load configuration, falling back to defaults without a file
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("could not load config file, using defaults")
		cfg = defaultConfig()
	}

	log.Info().
		Str("port", cfg.Server.Port).
		Int("sweep_interval_sec", cfg.Rooms.SweepIntervalSec).
		Str("catalog_base_url", cfg.Catalog.BaseURL).
		Msg("starting listenroom server")

	// Create gateway service
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.SweepInterval = time.Duration(cfg.Rooms.SweepIntervalSec) * time.Second
	gatewayConfig.SyncPolicy.ReportIntervalSec = cfg.Sync.ReportIntervalSec
	gatewayConfig.SyncPolicy.DriftThresholdSec = cfg.Sync.DriftThresholdSec
	gatewayConfig.CatalogBaseURL = cfg.Catalog.BaseURL

	gatewayService := gateway.NewService(gatewayConfig, clockwork.NewRealClock())

	// Setup HTTP server
	server := setupServer(cfg, gatewayService)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start gateway service (broadcast loop and eviction sweeper)
	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancel service context to stop the gateway service
	cancel()

	log.Info().Msg("listenroom shutdown complete")
}
