package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/config"
	"github.com/pliefoog/helmwatch/internal/detection"
	"github.com/pliefoog/helmwatch/internal/eventbus"
	"github.com/pliefoog/helmwatch/internal/gateway"
	"github.com/pliefoog/helmwatch/internal/health"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/metrics"
	"github.com/pliefoog/helmwatch/internal/pipeline"
	"github.com/pliefoog/helmwatch/internal/settings"
)

const serviceName = "helmwatchd"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", serviceName).Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel) // validated by config
	logger = logger.Level(level)

	if cfg.EnvFile != "" {
		logger.Info().Str("path", cfg.EnvFile).Msg("Loaded .env file")
	}
	logger.Info().
		Str("nats_url", cfg.NatsURL).
		Str("redis_addr", cfg.RedisAddr).
		Str("health_port", cfg.HealthPort).
		Msg("Helmwatch daemon starting")

	// Widget registrations: file override or the built-in set.
	var registrations []detection.Registration
	if cfg.EquipmentFile != "" {
		registrations, err = detection.LoadFile(cfg.EquipmentFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.EquipmentFile).Msg("Failed to load equipment registrations")
		}
		logger.Info().Int("count", len(registrations)).Str("path", cfg.EquipmentFile).Msg("Loaded equipment registrations")
	}

	met := metrics.New()
	pipe := pipeline.New(pipeline.Config{
		AlarmInterval:     cfg.AlarmInterval,
		PruneInterval:     cfg.PruneInterval,
		ScanInterval:      cfg.ScanInterval,
		ReassemblyTimeout: cfg.ReassemblyTimeout,
		QueueSize:         cfg.QueueSize,
		History: history.Config{
			RecentWindow:  cfg.HistoryRecentWindow,
			RecentCap:     cfg.HistoryRecentCap,
			DownsampleCap: cfg.HistoryDownsampleCap,
			Horizon:       cfg.HistoryHorizon,
		},
	}, registrations, met, logger)

	// Settings persistence is optional: without redis the daemon runs on
	// compiled-in defaults.
	store, err := settings.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running on default preferences")
		store = nil
	} else {
		defer store.Close()
		prefs, err := store.Load(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load persisted preferences")
		} else {
			settings.ApplyPreferences(prefs, pipe, logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe.Start(ctx)
	defer pipe.Stop()

	// Event fan-out to NATS. Subscribing also arms the periodic schedules.
	publisher, err := eventbus.NewPublisher(cfg.NatsURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect event publisher")
	}
	defer publisher.Close()

	sub := pipe.Subscribe()
	defer sub.Close()
	go func() {
		for ev := range sub.Events() {
			if err := publisher.PublishEvent(ev); err != nil {
				logger.Warn().Err(err).Msg("Failed to publish event")
			}
		}
	}()

	rawSub, err := eventbus.NewRawSubscriber(cfg.NatsURL, pipe, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect raw subscriber")
	}
	defer rawSub.Close()
	if err := rawSub.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe raw subjects")
	}

	gw, err := gateway.New(cfg.NatsURL, pipe.Cache(), pipe.Detector(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect query gateway")
	}
	defer gw.Close()
	if err := gw.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start query gateway")
	}

	listener, err := settings.NewListener(cfg.NatsURL, pipe, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect settings listener")
	}
	defer listener.Close()
	if err := listener.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start settings listener")
	}

	healthServer := health.NewServer(serviceName, cfg.HealthPort, pipe, met.Registry(), logger)
	healthServer.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Health server shutdown failed")
		}
	}()

	logger.Info().Msg("Helmwatch daemon running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received")
}
