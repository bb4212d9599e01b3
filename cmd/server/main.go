/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the herbal inventory engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and HERB_* environment variables
  2. Initialize SQLite-backed document store
  3. Wire the inventory system and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION (environment, HERB_ prefix):
  HERB_ADDR       Listen address (default: :8080)
  HERB_DB_PATH    SQLite database path (default: herbcabinet.db,
                  ":memory:" for an in-memory database)
  HERB_LOG_LEVEL  zerolog level (default: info)
  HERB_LOG_CONSOLE  Human-readable log output (default: false)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store (drains the operation queue)
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Store implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/herbcabinet/inventory-engine/api"
	"github.com/herbcabinet/inventory-engine/inventory"
	"github.com/herbcabinet/inventory-engine/logging"
	"github.com/herbcabinet/inventory-engine/store/sqlite"
)

// Config holds all server settings, read from HERB_* variables.
type Config struct {
	Addr       string `envconfig:"ADDR" default:":8080"`
	DBPath     string `envconfig:"DB_PATH" default:"herbcabinet.db"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogConsole bool   `envconfig:"LOG_CONSOLE" default:"false"`
}

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("herb", &cfg); err != nil {
		panic(err)
	}

	log := logging.New(logging.Options{
		Service: "inventory-engine",
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
	})

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer store.Close()

	system := inventory.NewSystem(store, log)
	handler := api.NewHandler(system, store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
