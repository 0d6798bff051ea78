package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/api"
	"github.com/fleet-server/fleet-server-pro/internal/config"
	"github.com/fleet-server/fleet-server-pro/internal/entitlement"
	"github.com/fleet-server/fleet-server-pro/internal/events"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

func main() {
	var configPath = flag.String("config", "config/fleet-server.yml", "path to config file")
	var validateOnly = flag.Bool("validate", false, "validate config and exit")
	var memoryStore = flag.Bool("memory", false, "run with the in-memory store (development only)")
	flag.Parse()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *validateOnly {
		fmt.Println("config OK")
		return
	}

	log.Info().
		Str("config_path", *configPath).
		Str("name", cfg.Server.Name).
		Str("version", cfg.Server.Version).
		Msg("Fleet server starting")

	// Storage
	var store storage.Store
	if *memoryStore {
		log.Warn().Msg("Using in-memory store, data will not survive a restart")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = pg
	}
	defer store.Close()

	// NATS, optional. An empty URL disables eventing.
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
	} else {
		log.Warn().Msg("NATS URL not set, events will not be published")
	}

	// Entitlement engine
	engine := entitlement.NewEngine(store, events.NewPublisher(nc),
		entitlement.WithConflictRetries(cfg.Engine.ConflictRetries))

	if err := engine.EnsureSystemRoles(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed system roles")
	}

	// REST API
	server := api.NewRESTServer(cfg, store, engine)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Fleet server stopped")
}
