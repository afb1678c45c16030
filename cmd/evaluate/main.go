// Package main replays a trained checkpoint over a holdout window and
// renders the evaluation report plus the GO/NO-GO deployment verdict.
// Exit code 0 means GO, 2 means NO-GO, 1 means the run itself failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/decision"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/reporting"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	chstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/clickhouse"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/migrations"
	pgstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/postgres"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (enables decision telemetry)")
	useMemory := flag.Bool("memory", false, "Self-contained dry run: train on synthetic events, evaluate the holdout")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations on startup")
	checkpoint := flag.String("checkpoint", "latest", "Checkpoint to evaluate: 'latest' or a checkpoint id")
	start := flag.String("start", "", "Holdout window start, RFC3339 or YYYY-MM-DD (required with postgres)")
	end := flag.String("end", "", "Holdout window end, RFC3339 or YYYY-MM-DD (required with postgres)")
	eventCount := flag.Int("events", 2000, "Synthetic events to generate (memory mode only)")
	holdout := flag.Float64("holdout", 0.2, "Fraction of synthetic events held out for evaluation (memory mode only)")
	episodes := flag.Int("episodes", 20, "Training episodes before evaluating (memory mode only)")
	outputDir := flag.String("output-dir", "output", "Directory for report artifacts")
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

	var (
		cp     *domain.Checkpoint
		events []*domain.MatchEvent
	)
	if *useMemory {
		cp, events, err = dryRun(ctx, cfg, log, st, *eventCount, *holdout, *episodes)
	} else {
		cp, events, err = loadHoldout(ctx, st, *checkpoint, *start, *end)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatal("checkpoint not found", logger.String("checkpoint", *checkpoint))
		}
		log.Fatal("evaluation setup failed", logger.Error(err))
	}

	harness, err := evaluation.NewHarness(cfg, evaluation.Deps{
		Decisions: st.decisions,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("create harness", logger.Error(err))
	}
	report, err := harness.Evaluate(ctx, cp, events)
	if err != nil {
		log.Fatal("evaluation failed", logger.Error(err))
	}

	verdict := decision.NewEvaluator(decision.DefaultThresholds()).Evaluate(report)

	manifest, err := reporting.NewGenerator(*outputDir).Write(report, verdict)
	if err != nil {
		log.Fatal("write report artifacts", logger.Error(err))
	}

	fmt.Printf("Checkpoint:   %s (session %s)\n", report.CheckpointID, report.SessionID)
	fmt.Printf("Holdout:      %d events, %d entries (%.1f%% entry rate)\n",
		report.Events, report.Entries, report.EntryRate*100)
	fmt.Printf("Win rate:     %.4f\n", report.WinRate)
	fmt.Printf("Net profit:   %.4f (ROI %.4f)\n", report.NetProfit, report.ROI)
	fmt.Printf("Max drawdown: %.4f\n", report.MaxDrawdown)
	fmt.Printf("Decision:     %s\n", verdict.Decision)
	fmt.Printf("\nArtifacts written to %s:\n", *outputDir)
	for _, name := range manifest.Files {
		fmt.Printf("  - %s\n", name)
	}

	if verdict.Decision != decision.DecisionGO {
		os.Exit(2)
	}
}

// dryRun trains a fresh model on the older share of a synthetic
// calendar and returns its final checkpoint plus the held-out tail.
func dryRun(ctx context.Context, cfg *config.Config, log *logger.Logger, st *stores, eventCount int, holdout float64, episodes int) (*domain.Checkpoint, []*domain.MatchEvent, error) {
	if eventCount <= 0 {
		return nil, nil, fmt.Errorf("--events must be positive in memory mode")
	}
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("--holdout must be in (0, 1)")
	}

	all := ingestion.NewGenerator(ingestion.DefaultGeneratorConfig()).Events(eventCount)
	train, held := ingestion.SplitHoldout(all, holdout)
	if len(train) == 0 || len(held) == 0 {
		return nil, nil, fmt.Errorf("holdout split left an empty partition (events=%d, holdout=%.2f)", eventCount, holdout)
	}
	if err := st.events.InsertBulk(ctx, train); err != nil {
		return nil, nil, fmt.Errorf("seed training events: %w", err)
	}

	session, err := training.NewSession(cfg, training.Params{
		Window: training.Window{
			StartMs: train[0].KickoffMs,
			EndMs:   train[len(train)-1].KickoffMs,
		},
		Episodes: episodes,
	}, training.Deps{
		Events:      ingestion.NewStoreProvider(st.events),
		Checkpoints: st.checkpoints,
		Logger:      log,
	})
	if err != nil {
		return nil, nil, err
	}
	result, err := session.Run(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dry-run training: %w", err)
	}
	log.Info("dry-run training finished",
		logger.String("session_id", result.SessionID),
		logger.Int("episodes", result.Episodes),
		logger.String("checkpoint_id", result.LastCheckpointID))

	cp, err := st.checkpoints.GetLatestAny(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load dry-run checkpoint: %w", err)
	}
	return cp, held, nil
}

// loadHoldout resolves the checkpoint reference and pulls the holdout
// window's settled events from storage.
func loadHoldout(ctx context.Context, st *stores, ref, start, end string) (*domain.Checkpoint, []*domain.MatchEvent, error) {
	if start == "" || end == "" {
		return nil, nil, fmt.Errorf("--start and --end are required with postgres storage")
	}
	startMs, err := parseTimeFlag(start)
	if err != nil {
		return nil, nil, err
	}
	endMs, err := parseTimeFlag(end)
	if err != nil {
		return nil, nil, err
	}
	if endMs < startMs {
		return nil, nil, fmt.Errorf("--end precedes --start")
	}

	var cp *domain.Checkpoint
	if ref == "latest" {
		cp, err = st.checkpoints.GetLatestAny(ctx)
	} else {
		cp, err = st.checkpoints.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, nil, err
	}

	events, err := ingestion.NewStoreProvider(st.events).EventsByRange(ctx, startMs, endMs)
	if err != nil {
		return nil, nil, err
	}
	return cp, events, nil
}

// stores groups the storage backends an evaluation needs.
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
