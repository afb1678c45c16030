// Package main seeds PostgreSQL with a deterministic synthetic virtual
// football calendar. The same seed, league, teams, and start always
// produce the same events, so seeding is repeatable across machines.
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
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/migrations"
	pgstore "github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/postgres"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations on startup")
	eventCount := flag.Int("events", 5000, "Number of synthetic events to generate")
	seed := flag.Int64("seed", 1, "Generator seed")
	league := flag.String("league", "virtual-premier", "League name stamped on every event")
	teams := flag.String("teams", "", "Comma-separated team names (empty uses the built-in sixteen)")
	start := flag.String("start", "2024-01-01", "Kickoff of the first event, RFC3339 or YYYY-MM-DD")
	interval := flag.Duration("interval", 3*time.Minute, "Spacing between kickoffs")
	batchSize := flag.Int("batch-size", 500, "Events per insert batch")
	dryRun := flag.Bool("dry-run", false, "Print what would be seeded without touching the database")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if *eventCount <= 0 {
		log.Fatal("--events must be positive")
	}
	if *batchSize <= 0 {
		log.Fatal("--batch-size must be positive")
	}
	startMs, err := parseTimeFlag(*start)
	if err != nil {
		log.Fatal("invalid --start", logger.Error(err))
	}

	gcfg := ingestion.GeneratorConfig{
		Seed:       *seed,
		League:     *league,
		StartMs:    startMs,
		IntervalMs: interval.Milliseconds(),
	}
	if *teams != "" {
		gcfg.Teams = splitTeams(*teams)
	}

	events := ingestion.NewGenerator(gcfg).Events(*eventCount)

	if *dryRun {
		printPlan(events, *seed, *league)
		return
	}

	ctx := context.Background()
	startedAt := time.Now()

	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres dsn is required (set --postgres-dsn or POSTGRES_DSN)")
	}
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("connect postgres", logger.Error(err))
	}
	defer pool.Close()

	if *migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatal("postgres migrations", logger.Error(err))
		}
	}

	store := pgstore.NewEventStore(pool)
	inserted := 0
	for offset := 0; offset < len(events); offset += *batchSize {
		endIdx := offset + *batchSize
		if endIdx > len(events) {
			endIdx = len(events)
		}
		batch := events[offset:endIdx]
		if err := store.InsertBulk(ctx, batch); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				log.Fatal("window already seeded: identical seed, league, teams, and start produce identical event ids",
					logger.Int("inserted", inserted))
			}
			log.Fatal("insert batch", logger.Int("offset", offset), logger.Error(err))
		}
		inserted += len(batch)
		log.Debug("batch inserted",
			logger.Int("inserted", inserted),
			logger.Int("total", len(events)))
	}

	log.Info("seeding complete",
		logger.Int("events", inserted),
		logger.String("league", *league),
		logger.Int64("window_start_ms", events[0].KickoffMs),
		logger.Int64("window_end_ms", events[len(events)-1].KickoffMs),
		logger.Duration("elapsed", time.Since(startedAt)))
}

// printPlan describes the generated calendar without writing anything.
func printPlan(events []*domain.MatchEvent, seed int64, league string) {
	first, last := events[0], events[len(events)-1]
	fmt.Printf("Would seed %d events (seed %d, league %q)\n", len(events), seed, league)
	fmt.Printf("Window: %s to %s\n",
		time.UnixMilli(first.KickoffMs).UTC().Format(time.RFC3339),
		time.UnixMilli(last.KickoffMs).UTC().Format(time.RFC3339))

	n := 3
	if len(events) < n {
		n = len(events)
	}
	fmt.Println("Sample:")
	for _, ev := range events[:n] {
		fmt.Printf("  %s  %s vs %s  home=%.2f draw=%.2f away=%.2f\n",
			time.UnixMilli(ev.KickoffMs).UTC().Format("2006-01-02 15:04"),
			ev.HomeTeam, ev.AwayTeam,
			ev.Odds[domain.MarketHome], ev.Odds[domain.MarketDraw], ev.Odds[domain.MarketAway])
	}
}

func splitTeams(raw string) []string {
	parts := strings.Split(raw, ",")
	teams := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			teams = append(teams, p)
		}
	}
	return teams
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadWithEnv(path)
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
