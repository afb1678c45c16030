// Package main runs the training control surface: HTTP lifecycle
// commands, session status, single-event prediction, a websocket
// progress stream, Prometheus metrics, and a health probe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/progress"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/server"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	chstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/clickhouse"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/migrations"
	pgstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/postgres"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// progressQueueSize bounds each websocket subscriber's update queue.
const progressQueueSize = 256

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	port := flag.Int("port", 0, "HTTP port (overrides config when positive)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (enables decision telemetry)")
	useMemory := flag.Bool("memory", false, "Use in-memory storage instead of PostgreSQL")
	seedEvents := flag.Int("seed-events", 0, "Pre-load N synthetic events (memory mode only)")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations on startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *port, *postgresDSN, *clickhouseDSN)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, cleanup, err := buildStores(startCtx, cfg, *useMemory, *migrate)
	if err != nil {
		log.Fatal("storage setup failed", logger.Error(err))
	}
	defer cleanup()

	if *useMemory && *seedEvents > 0 {
		events := ingestion.NewGenerator(ingestion.DefaultGeneratorConfig()).Events(*seedEvents)
		if err := st.events.InsertBulk(startCtx, events); err != nil {
			log.Fatal("seed synthetic events", logger.Error(err))
		}
		log.Info("seeded synthetic events",
			logger.Int("events", len(events)),
			logger.Int64("window_start_ms", events[0].KickoffMs),
			logger.Int64("window_end_ms", events[len(events)-1].KickoffMs))
	}
	startCancel()

	broker := progress.NewBroker(progressQueueSize)
	manager := training.NewManager(cfg, training.Deps{
		Events:      ingestion.NewStoreProvider(st.events),
		Checkpoints: st.checkpoints,
		Decisions:   st.decisions,
		Broker:      broker,
		Logger:      log,
	})

	srv, err := server.New(cfg, server.Deps{
		Manager:     manager,
		Checkpoints: st.checkpoints,
		Broker:      broker,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("server setup failed", logger.Error(err))
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", logger.String("signal", sig.String()))

		// A second signal, or a stuck drain, forces the exit.
		go func() {
			select {
			case sig := <-sigCh:
				log.Warn("second signal received, forcing exit", logger.String("signal", sig.String()))
				os.Exit(1)
			case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
				log.Warn("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			case <-done:
			}
		}()

		shCtx, shCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("http shutdown", logger.Error(err))
		}
		if err := manager.Shutdown(shCtx); err != nil {
			log.Warn("training shutdown", logger.Error(err))
		}
		broker.Close()
		close(done)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server failed", logger.Error(err))
	}
	<-done
	log.Info("shutdown complete")
}

// stores groups the storage backends the server wires together.
type stores struct {
	events      storage.EventStore
	checkpoints storage.CheckpointStore
	decisions   storage.DecisionLogStore // nil disables telemetry
}

// buildStores connects the configured backends. The cleanup function
// closes whatever was opened.
func buildStores(ctx context.Context, cfg *config.Config, useMemory, migrate bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			events:      memory.NewEventStore(),
			checkpoints: memory.NewCheckpointStore(),
			decisions:   memory.NewDecisionLogStore(),
		}, func() {}, nil
	}

	if cfg.Postgres.DSN == "" {
		return nil, nil, fmt.Errorf("postgres dsn is required (set --postgres-dsn or use --memory)")
	}
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	st := &stores{
		events:      pgstore.NewEventStore(pool),
		checkpoints: pgstore.NewCheckpointStore(pool),
	}
	cleanup := func() { pool.Close() }

	if cfg.ClickHouse.Enabled {
		var conn *chstore.Conn
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		}
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		st.decisions = chstore.NewDecisionLogStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return st, cleanup, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadWithEnv(path)
}

// applyOverrides layers non-empty flag values over the loaded config.
func applyOverrides(cfg *config.Config, port int, postgresDSN, clickhouseDSN string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if postgresDSN != "" {
		cfg.Postgres.DSN = postgresDSN
	}
	if clickhouseDSN != "" {
		cfg.ClickHouse.DSN = clickhouseDSN
		cfg.ClickHouse.Enabled = true
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
