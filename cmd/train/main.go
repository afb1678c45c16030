// Package main runs a training session from the command line: pick a
// window, train to completion, checkpoint along the way. --selfcheck
// trains the window twice and verifies both runs are bit-identical.
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
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	chstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/clickhouse"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/migrations"
	pgstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/postgres"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/verification"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (enables decision telemetry)")
	useMemory := flag.Bool("memory", false, "Use in-memory storage with synthetic events")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations on startup")
	eventCount := flag.Int("events", 2000, "Synthetic events to generate (memory mode only)")
	start := flag.String("start", "", "Window start, RFC3339 or YYYY-MM-DD (required with postgres)")
	end := flag.String("end", "", "Window end, RFC3339 or YYYY-MM-DD (required with postgres)")
	episodes := flag.Int("episodes", 0, "Episode count (overrides config when positive)")
	saveInterval := flag.Int("save-interval", 0, "Checkpoint every N episodes (overrides config when positive)")
	resume := flag.String("resume", "", "Checkpoint to resume from: 'latest' or a checkpoint id")
	selfcheck := flag.Bool("selfcheck", false, "Train the window twice and verify the runs are identical")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics and /health on this address (disabled when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *postgresDSN, *clickhouseDSN)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := buildStores(ctx, cfg, *useMemory, *migrate)
	if err != nil {
		log.Fatal("storage setup failed", logger.Error(err))
	}
	defer cleanup()

	window, err := resolveWindow(ctx, st.events, *useMemory, *eventCount, *start, *end)
	if err != nil {
		log.Fatal("window setup failed", logger.Error(err))
	}

	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	if *selfcheck {
		os.Exit(runSelfcheck(ctx, cfg, log, st.events, window))
	}

	resumeCp, err := resolveResume(ctx, st.checkpoints, *resume)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatal("resume checkpoint not found", logger.String("resume", *resume))
		}
		log.Fatal("resolve resume checkpoint", logger.Error(err))
	}

	session, err := training.NewSession(cfg, training.Params{
		Window:       window,
		Episodes:     *episodes,
		SaveInterval: *saveInterval,
		Resume:       resumeCp,
	}, training.Deps{
		Events:      ingestion.NewStoreProvider(st.events),
		Checkpoints: st.checkpoints,
		Decisions:   st.decisions,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("create session", logger.Error(err))
	}

	// First signal asks the loop to stop after the current episode and
	// write a final checkpoint; a second one cancels the run outright.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("stop requested, finishing current episode", logger.String("signal", sig.String()))
		if err := session.Stop(); err != nil {
			cancel()
			return
		}
		sig = <-sigCh
		log.Warn("second signal received, cancelling run", logger.String("signal", sig.String()))
		cancel()
	}()

	result, err := session.Run(ctx)
	if err != nil {
		log.Fatal("training run failed",
			logger.String("session_id", session.SessionID()),
			logger.Error(err))
	}

	log.Info("training finished",
		logger.String("session_id", result.SessionID),
		logger.String("state", string(result.State)),
		logger.Int("episodes", result.Episodes),
		logger.Int64("steps", result.Steps),
		logger.Float64("epsilon", result.Epsilon),
		logger.String("last_checkpoint_id", result.LastCheckpointID))
}

// runSelfcheck loads the window's events and hands them to the
// determinism verifier. Returns the process exit code.
func runSelfcheck(ctx context.Context, cfg *config.Config, log *logger.Logger, events storage.EventStore, window training.Window) int {
	batch, err := ingestion.NewStoreProvider(events).EventsByRange(ctx, window.StartMs, window.EndMs)
	if err != nil {
		log.Error("load events for selfcheck", logger.Error(err))
		return 1
	}

	res, err := verification.NewVerifier(cfg, log).Run(ctx, batch)
	if err != nil {
		log.Error("selfcheck failed", logger.Error(err))
		return 1
	}
	if !res.Match {
		for i, d := range res.Divergences {
			if i == 10 {
				log.Error("further divergences omitted",
					logger.Int("total", len(res.Divergences)))
				break
			}
			log.Error("divergence",
				logger.String("field", d.Field),
				logger.Any("expected", d.Expected),
				logger.Any("actual", d.Actual))
		}
		return 1
	}

	log.Info("selfcheck passed",
		logger.String("session_id", res.SessionID),
		logger.String("checkpoint_id", res.CheckpointID),
		logger.Int("episodes", res.Episodes),
		logger.Int64("steps", res.Steps))
	return 0
}

// resolveWindow establishes the training window. Memory mode generates
// a synthetic calendar and trains over all of it; postgres mode trains
// over the flag-specified range.
func resolveWindow(ctx context.Context, events storage.EventStore, useMemory bool, eventCount int, start, end string) (training.Window, error) {
	if useMemory {
		if eventCount <= 0 {
			return training.Window{}, fmt.Errorf("--events must be positive in memory mode")
		}
		batch := ingestion.NewGenerator(ingestion.DefaultGeneratorConfig()).Events(eventCount)
		if err := events.InsertBulk(ctx, batch); err != nil {
			return training.Window{}, fmt.Errorf("seed synthetic events: %w", err)
		}
		return training.Window{
			StartMs: batch[0].KickoffMs,
			EndMs:   batch[len(batch)-1].KickoffMs,
		}, nil
	}

	if start == "" || end == "" {
		return training.Window{}, fmt.Errorf("--start and --end are required with postgres storage")
	}
	startMs, err := parseTimeFlag(start)
	if err != nil {
		return training.Window{}, err
	}
	endMs, err := parseTimeFlag(end)
	if err != nil {
		return training.Window{}, err
	}
	if endMs < startMs {
		return training.Window{}, fmt.Errorf("--end precedes --start")
	}
	return training.Window{StartMs: startMs, EndMs: endMs}, nil
}

func resolveResume(ctx context.Context, checkpoints storage.CheckpointStore, ref string) (*domain.Checkpoint, error) {
	switch ref {
	case "":
		return nil, nil
	case "latest":
		return checkpoints.GetLatestAny(ctx)
	default:
		return checkpoints.GetByID(ctx, ref)
	}
}

// serveMetrics exposes Prometheus metrics next to a long CLI run.
func serveMetrics(log *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	log.Info("metrics server listening", logger.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics server failed", logger.Error(err))
	}
}

// stores groups the storage backends a training run needs.
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
func applyOverrides(cfg *config.Config, postgresDSN, clickhouseDSN string) {
	if postgresDSN != "" {
		cfg.Postgres.DSN = postgresDSN
	}
	if clickhouseDSN != "" {
		cfg.ClickHouse.DSN = clickhouseDSN
		cfg.ClickHouse.Enabled = true
	}
}

// parseTimeFlag accepts RFC3339 timestamps or bare dates (UTC midnight).
func parseTimeFlag(value string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", value)
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
