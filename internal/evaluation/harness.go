package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/idhash"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/network"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/policy"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/reward"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// Evaluation errors.
var (
	// ErrIncompatibleCheckpoint is returned when a checkpoint's shape or
	// feature schema disagrees with the configured extractor.
	ErrIncompatibleCheckpoint = errors.New("evaluation: checkpoint does not fit the configured feature schema")

	// ErrNoEvents is returned when the holdout window is empty.
	ErrNoEvents = errors.New("evaluation: no events to evaluate")
)

// Deps wires optional collaborators. Decisions, when set, receives one
// telemetry row per evaluated event.
type Deps struct {
	Decisions storage.DecisionLogStore
	Logger    *logger.Logger
	Now       func() time.Time
}

// Harness replays a checkpoint over settled events the way serving
// would: frozen normalization, greedy selection, gate active, no
// learning and no exploration. The same checkpoint over the same
// events always yields the same report.
type Harness struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

// NewHarness creates an evaluation harness.
func NewHarness(cfg *config.Config, deps Deps) (*Harness, error) {
	if cfg == nil {
		return nil, fmt.Errorf("evaluation: config is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Harness{cfg: cfg, deps: deps, log: deps.Logger, now: deps.Now}, nil
}

// Evaluate replays the events in order against the checkpoint's online
// parameters and aggregates the outcome.
func (h *Harness) Evaluate(ctx context.Context, cp *domain.Checkpoint, events []*domain.MatchEvent) (*Report, error) {
	if cp == nil {
		return nil, fmt.Errorf("evaluation: checkpoint is required")
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	tracker := blocks.NewTracker(h.cfg.Blocks)
	extractor, err := feature.NewExtractor(h.cfg.Features, tracker)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	// The hidden layout travels with the checkpoint; only the edges
	// must agree with the configured schema and action set.
	if cp.InputWidth != extractor.Width() || cp.OutputWidth != domain.ActionCount {
		return nil, fmt.Errorf("checkpoint %s: input %d output %d, want %d/%d: %w",
			cp.CheckpointID, cp.InputWidth, cp.OutputWidth,
			extractor.Width(), domain.ActionCount, ErrIncompatibleCheckpoint)
	}
	if !sameNames(cp.FeatureNames, extractor.Names()) {
		return nil, fmt.Errorf("checkpoint %s: feature schema differs: %w",
			cp.CheckpointID, ErrIncompatibleCheckpoint)
	}
	if err := extractor.Normalizer().Restore(cp.NormMean, cp.NormVar, cp.NormObservations); err != nil {
		return nil, fmt.Errorf("restore normalizer: %w", err)
	}

	ncfg := h.cfg.Network
	ncfg.Inputs = cp.InputWidth
	ncfg.Hidden = append([]int(nil), cp.HiddenLayout...)
	ncfg.Outputs = cp.OutputWidth
	net, err := network.New(ncfg, rand.New(rand.NewSource(h.cfg.Training.Seed)))
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	if err := net.RestoreWeights(cp.OnlineWeights); err != nil {
		return nil, fmt.Errorf("restore online weights: %w", err)
	}

	pol := policy.New(net, policy.Config{MinConfidence: h.cfg.Training.MinConfidence},
		rand.New(rand.NewSource(h.cfg.Training.Seed)))

	// The eval- prefix keeps holdout replays distinguishable from
	// training sessions in the shared telemetry log.
	sessionID := "eval-" + idhash.ComputeSessionID(h.now().UnixMilli(), h.cfg.Training.Seed)
	market := h.cfg.Training.TargetMarket

	stats := domain.NewEpisodeStats(h.cfg.Training.InitialBankroll)
	var history []feature.Outcome
	var profits []float64
	buckets := newConfidenceBuckets(h.cfg.Reward)
	actions := newActionLines()
	records := make([]*domain.DecisionRecord, 0, len(events))
	gated := 0

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state := extractor.ExtractFrozen(ev, &feature.History{
			Outcomes:      history,
			BankrollRatio: stats.NormalizedBankroll(),
		})

		started := time.Now()
		d := pol.Greedy(state)
		observability.RecordInference(time.Since(started).Seconds())

		won, _ := ev.Result(market)
		price := ev.Price(market)

		if d.Gated {
			gated++
		}
		if d.Action.IsEntry() {
			stake := d.Action.StakeUnits()
			profit := -stake
			if won {
				profit = stake * (price - 1)
			}
			profits = append(profits, profit)
			stats.RecordEntry(stake, price, won)
			tracker.Record(ev.KickoffMs, won)
			history = appendHistory(history, feature.Outcome{Entered: true, Won: won}, h.cfg.Training.HistoryWindow)
			buckets.add(d.Confidence, won)
			actions[d.Action].Decisions++
			actions[d.Action].Staked += stake
			actions[d.Action].Profit += profit
			if won {
				actions[d.Action].Greens++
			} else {
				actions[d.Action].Reds++
			}
		} else {
			stats.RecordSkip()
			history = appendHistory(history, feature.Outcome{Entered: false}, h.cfg.Training.HistoryWindow)
			actions[d.Action].Decisions++
		}

		records = append(records, &domain.DecisionRecord{
			SessionID:   sessionID,
			EventID:     ev.EventID,
			DecidedAtMs: h.now().UnixMilli(),
			MatchIndex:  i,
			Action:      d.Action.Name(),
			Confidence:  d.Confidence,
			Gated:       d.Gated,
			Price:       price,
			Outcome:     outcomeClass(d.Action, won),
		})
	}

	h.flushTelemetry(records, sessionID)

	sorted := append([]float64(nil), profits...)
	sort.Float64s(sorted)
	mean := computeMean(profits)

	report := &Report{
		SessionID:            sessionID,
		CheckpointID:         cp.CheckpointID,
		GeneratedAtMs:        h.now().UnixMilli(),
		WindowStartMs:        events[0].KickoffMs,
		WindowEndMs:          events[len(events)-1].KickoffMs,
		Events:               len(events),
		Skips:                stats.Skips,
		Entries:              stats.Entries,
		Greens:               stats.Greens,
		Reds:                 stats.Reds,
		Gated:                gated,
		WinRate:              stats.WinRate(),
		EntryRate:            stats.EntryRate(),
		TotalStaked:          stats.TotalStaked,
		NetProfit:            stats.NetProfit(),
		ROI:                  stats.ROI(),
		FinalBankroll:        stats.Bankroll,
		MaxDrawdown:          computeMaxDrawdown(profits),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(profits),
		ProfitMean:           mean,
		ProfitMedian:         computePercentile(sorted, 0.50),
		ProfitP10:            computePercentile(sorted, 0.10),
		ProfitP90:            computePercentile(sorted, 0.90),
		ProfitStddev:         computeStddev(profits, mean),
		ConfidenceBuckets:    buckets.finish(),
		Actions:              actions[:],
	}

	h.log.Info("evaluation finished",
		logger.String("session_id", sessionID),
		logger.String("checkpoint_id", cp.CheckpointID),
		logger.Int("events", report.Events),
		logger.Int("entries", report.Entries),
		logger.Float64("win_rate", report.WinRate),
		logger.Float64("roi", report.ROI))
	return report, nil
}

func (h *Harness) flushTelemetry(records []*domain.DecisionRecord, sessionID string) {
	if h.deps.Decisions == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.deps.Decisions.InsertBulk(ctx, records); err != nil {
		h.log.Warn("evaluation decision log write failed",
			logger.String("session_id", sessionID),
			logger.Int("records", len(records)),
			logger.Error(err))
	}
}

// bucketSet tallies entries into the three confidence bands the reward
// shaping distinguishes. Out-of-range confidences land in the edge
// bands; the printed bounds are nominal.
type bucketSet []ConfidenceBucket

func newConfidenceBuckets(rcfg reward.Config) bucketSet {
	return bucketSet{
		{Label: "speculative", Low: 0, High: rcfg.LowConfidence},
		{Label: "moderate", Low: rcfg.LowConfidence, High: rcfg.HighConfidence},
		{Label: "confident", Low: rcfg.HighConfidence, High: 1},
	}
}

func (b bucketSet) add(confidence float64, won bool) {
	idx := 0
	switch {
	case confidence >= b[2].Low:
		idx = 2
	case confidence >= b[1].Low:
		idx = 1
	}
	b[idx].Entries++
	if won {
		b[idx].Greens++
	}
}

func (b bucketSet) finish() []ConfidenceBucket {
	for i := range b {
		if b[i].Entries > 0 {
			b[i].WinRate = float64(b[i].Greens) / float64(b[i].Entries)
		}
	}
	return b
}

func newActionLines() []ActionLine {
	lines := make([]ActionLine, domain.ActionCount)
	for i := range lines {
		lines[i].Action = domain.Action(i).Name()
	}
	return lines
}

func appendHistory(history []feature.Outcome, o feature.Outcome, window int) []feature.Outcome {
	history = append(history, o)
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return history
}

func outcomeClass(a domain.Action, won bool) string {
	switch {
	case !a.IsEntry():
		return domain.OutcomeSkip
	case won:
		return domain.OutcomeGreen
	default:
		return domain.OutcomeRed
	}
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
