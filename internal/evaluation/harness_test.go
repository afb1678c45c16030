package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default failed: %v", err)
	}
	cfg.Training.MinConfidence = 0 // gate off unless a test turns it on
	return cfg
}

// constantActionCheckpoint crafts parameters that always pick one
// action with confidence 0.5: the single hidden neuron sees only zero
// weights, so it emits sigmoid(0) = 0.5, and the output layer routes
// that to the chosen action alone.
func constantActionCheckpoint(t *testing.T, cfg *config.Config, action domain.Action) *domain.Checkpoint {
	t.Helper()
	extractor, err := feature.NewExtractor(cfg.Features, blocks.NewTracker(cfg.Blocks))
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	width := extractor.Width()

	// Weight rows carry the bias synapse after the inputs, so the
	// hidden neuron's row is one longer than the feature width.
	hidden := [][]float64{make([]float64, width+1)}
	output := make([][]float64, domain.ActionCount)
	for i := range output {
		output[i] = []float64{0}
	}
	output[action] = []float64{1}
	weights := [][][]float64{hidden, output}

	return &domain.Checkpoint{
		CheckpointID:     "cp-const-" + action.Name(),
		SessionID:        "sess-fixture",
		CreatedAtMs:      1,
		InputWidth:       width,
		HiddenLayout:     []int{1},
		OutputWidth:      domain.ActionCount,
		FeatureNames:     extractor.Names(),
		OnlineWeights:    weights,
		TargetWeights:    weights,
		NormMean:         make([]float64, width),
		NormVar:          make([]float64, width),
		NormObservations: 0,
	}
}

func evalEvent(id string, kickoffMs int64, price float64, won bool) *domain.MatchEvent {
	return &domain.MatchEvent{
		EventID:   id,
		League:    "virtual-premier",
		HomeTeam:  "Ashford City",
		AwayTeam:  "Bexley Rovers",
		KickoffMs: kickoffMs,
		Odds:      map[string]float64{domain.MarketOver25: price},
		Results:   map[string]bool{domain.MarketOver25: won},
	}
}

func newHarness(t *testing.T, cfg *config.Config, deps Deps) *Harness {
	t.Helper()
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.UnixMilli(1704067200000) }
	}
	h, err := NewHarness(cfg, deps)
	if err != nil {
		t.Fatalf("NewHarness failed: %v", err)
	}
	return h
}

func TestEvaluateAllGreenAtEvens(t *testing.T) {
	cfg := testConfig(t)
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	events := []*domain.MatchEvent{
		evalEvent("ev-1", 1000, 2.0, true),
		evalEvent("ev-2", 2000, 2.0, true),
		evalEvent("ev-3", 3000, 2.0, true),
	}

	report, err := newHarness(t, cfg, Deps{}).Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if report.Entries != 3 || report.Greens != 3 || report.Reds != 0 {
		t.Errorf("entries/greens/reds = %d/%d/%d, want 3/3/0",
			report.Entries, report.Greens, report.Reds)
	}
	if report.WinRate != 1.0 {
		t.Errorf("win rate = %v, want 1.0", report.WinRate)
	}
	if report.EntryRate != 1.0 {
		t.Errorf("entry rate = %v, want 1.0", report.EntryRate)
	}
	// Three one-unit bets at evens, all green: stake 3, return 6.
	if report.TotalStaked != 3 {
		t.Errorf("total staked = %v, want 3", report.TotalStaked)
	}
	if report.NetProfit != 3 {
		t.Errorf("net profit = %v, want 3", report.NetProfit)
	}
	if report.ROI != 1.0 {
		t.Errorf("roi = %v, want 1.0", report.ROI)
	}
	if report.FinalBankroll != cfg.Training.InitialBankroll+3 {
		t.Errorf("final bankroll = %v, want %v", report.FinalBankroll, cfg.Training.InitialBankroll+3)
	}
	if report.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0", report.MaxDrawdown)
	}
	if report.MaxConsecutiveLosses != 0 {
		t.Errorf("max consecutive losses = %d, want 0", report.MaxConsecutiveLosses)
	}

	// Confidence 0.5 sits in the moderate band.
	var moderate *ConfidenceBucket
	for i := range report.ConfidenceBuckets {
		if report.ConfidenceBuckets[i].Label == "moderate" {
			moderate = &report.ConfidenceBuckets[i]
		}
	}
	if moderate == nil || moderate.Entries != 3 || moderate.WinRate != 1.0 {
		t.Errorf("moderate bucket = %+v, want 3 entries at win rate 1.0", moderate)
	}

	for _, line := range report.Actions {
		switch line.Action {
		case domain.ActionStake1.Name():
			if line.Decisions != 3 || line.Profit != 3 {
				t.Errorf("STAKE_1 line = %+v, want 3 decisions, profit 3", line)
			}
		default:
			if line.Decisions != 0 {
				t.Errorf("%s line has %d decisions, want 0", line.Action, line.Decisions)
			}
		}
	}
}

func TestEvaluateAllRedAmplifiesRisk(t *testing.T) {
	cfg := testConfig(t)
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	events := []*domain.MatchEvent{
		evalEvent("ev-1", 1000, 2.0, false),
		evalEvent("ev-2", 2000, 2.0, false),
		evalEvent("ev-3", 3000, 2.0, false),
	}

	report, err := newHarness(t, cfg, Deps{}).Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if report.WinRate != 0 {
		t.Errorf("win rate = %v, want 0", report.WinRate)
	}
	if report.NetProfit != -3 {
		t.Errorf("net profit = %v, want -3", report.NetProfit)
	}
	if report.ROI != -1.0 {
		t.Errorf("roi = %v, want -1.0", report.ROI)
	}
	if report.MaxDrawdown != 3 {
		t.Errorf("max drawdown = %v, want 3", report.MaxDrawdown)
	}
	if report.MaxConsecutiveLosses != 3 {
		t.Errorf("max consecutive losses = %d, want 3", report.MaxConsecutiveLosses)
	}
}

func TestEvaluateMixedRunRisk(t *testing.T) {
	cfg := testConfig(t)
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	events := []*domain.MatchEvent{
		evalEvent("ev-1", 1000, 2.0, true),
		evalEvent("ev-2", 2000, 2.0, true),
		evalEvent("ev-3", 3000, 2.0, false),
	}

	report, err := newHarness(t, cfg, Deps{}).Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if got, want := report.WinRate, 2.0/3.0; got != want {
		t.Errorf("win rate = %v, want %v", got, want)
	}
	if report.NetProfit != 1 {
		t.Errorf("net profit = %v, want 1", report.NetProfit)
	}
	if report.MaxDrawdown != 1 {
		t.Errorf("max drawdown = %v, want 1", report.MaxDrawdown)
	}
	if report.MaxConsecutiveLosses != 1 {
		t.Errorf("max consecutive losses = %d, want 1", report.MaxConsecutiveLosses)
	}
}

func TestEvaluateGateOverridesLowConfidence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.MinConfidence = 0.7 // above the constant 0.5
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake2)
	events := []*domain.MatchEvent{
		evalEvent("ev-1", 1000, 2.0, true),
		evalEvent("ev-2", 2000, 2.0, true),
	}

	decisions := memory.NewDecisionLogStore()
	report, err := newHarness(t, cfg, Deps{Decisions: decisions}).Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if report.Entries != 0 || report.Skips != 2 || report.Gated != 2 {
		t.Errorf("entries/skips/gated = %d/%d/%d, want 0/2/2",
			report.Entries, report.Skips, report.Gated)
	}
	if report.TotalStaked != 0 || report.ROI != 0 {
		t.Errorf("staked/roi = %v/%v, want 0/0", report.TotalStaked, report.ROI)
	}

	recs, err := decisions.GetBySession(context.Background(), report.SessionID)
	if err != nil {
		t.Fatalf("GetBySession failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("telemetry rows = %d, want 2", len(recs))
	}
	for i, r := range recs {
		if r.Action != domain.ActionSkip.Name() || !r.Gated {
			t.Errorf("record %d: action %s gated %v, want gated SKIP", i, r.Action, r.Gated)
		}
		// The gate keeps the rejected pick's confidence visible.
		if r.Confidence != 0.5 {
			t.Errorf("record %d: confidence %v, want 0.5", i, r.Confidence)
		}
	}
}

func TestEvaluateRejectsIncompatibleCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	events := []*domain.MatchEvent{evalEvent("ev-1", 1000, 2.0, true)}
	h := newHarness(t, cfg, Deps{})

	narrow := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	narrow.InputWidth = 3
	if _, err := h.Evaluate(context.Background(), narrow, events); !errors.Is(err, ErrIncompatibleCheckpoint) {
		t.Errorf("wrong input width: err = %v, want ErrIncompatibleCheckpoint", err)
	}

	renamed := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	renamed.FeatureNames[0] = "something_else"
	if _, err := h.Evaluate(context.Background(), renamed, events); !errors.Is(err, ErrIncompatibleCheckpoint) {
		t.Errorf("renamed feature: err = %v, want ErrIncompatibleCheckpoint", err)
	}
}

func TestEvaluateEmptyWindow(t *testing.T) {
	cfg := testConfig(t)
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	if _, err := newHarness(t, cfg, Deps{}).Evaluate(context.Background(), cp, nil); !errors.Is(err, ErrNoEvents) {
		t.Errorf("empty window: err = %v, want ErrNoEvents", err)
	}
}

func TestEvaluateIsRepeatable(t *testing.T) {
	cfg := testConfig(t)
	cp := constantActionCheckpoint(t, cfg, domain.ActionStake1)
	events := []*domain.MatchEvent{
		evalEvent("ev-1", 1000, 1.8, true),
		evalEvent("ev-2", 2000, 2.4, false),
		evalEvent("ev-3", 3000, 2.1, true),
		evalEvent("ev-4", 4000, 1.6, false),
	}
	h := newHarness(t, cfg, Deps{})

	a, err := h.Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	b, err := h.Evaluate(context.Background(), cp, events)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}

	if a.Entries != b.Entries || a.NetProfit != b.NetProfit || a.ROI != b.ROI ||
		a.MaxDrawdown != b.MaxDrawdown || a.WinRate != b.WinRate {
		t.Errorf("repeated evaluation diverged: %+v vs %+v", a, b)
	}
}
