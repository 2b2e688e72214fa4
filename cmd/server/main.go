/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the clinic ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize the configured store (sqlite or memory)
  3. Create API handler with dependencies
  4. Configure HTTP router and start the integrity monitor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080, env PORT)
  -db       SQLite database path (default: clinic.db, env DB_PATH)
            Use ":memory:" for an in-memory database
  -store    Backend: "sqlite" or "memory" (default: sqlite, env STORE)
  -monitor  Enable the background integrity monitor (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the integrity monitor and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/clinic.db"

  # Run fully in memory (demo mode, nothing persists)
  ./server -store=memory

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  PORT, DB_PATH, STORE, LOG_LEVEL. A .env file in the working directory
  is loaded when present; flags win over environment.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Nikise23/odontologia-app-sub001/api"
	"github.com/Nikise23/odontologia-app-sub001/clinic"
	memstore "github.com/Nikise23/odontologia-app-sub001/clinic/store"
	"github.com/Nikise23/odontologia-app-sub001/store/sqlite"
)

func main() {
	// .env is optional; flags override environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "clinic.db"), "SQLite database path")
	storeKind := flag.String("store", envStr("STORE", "sqlite"), "storage backend: sqlite or memory")
	monitorOn := flag.Bool("monitor", true, "enable background integrity monitor")
	flag.Parse()

	log := newLogger()

	// Initialize store
	var (
		store  clinic.TxStore
		closer func() error
	)
	switch *storeKind {
	case "memory":
		store = memstore.NewMemory()
		closer = func() error { return nil }
		log.Warn().Msg("using in-memory store; nothing will persist")
	case "sqlite":
		st, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		store = st
		closer = st.Close
	default:
		log.Fatal().Str("store", *storeKind).Msg("unknown storage backend")
	}
	defer closer()

	// Initialize handler and router
	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	// Background integrity monitor (shared with /api/admin/integrity)
	handler.Monitor.Enabled = *monitorOn
	handler.Monitor.Start()
	defer handler.Monitor.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Str("store", *storeKind).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(envStr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
