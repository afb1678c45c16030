// Package verification checks that training is reproducible: the same
// configuration over the same event window must yield identical
// parameters, counters, and identifiers on every run.
package verification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// StatsTolerance bounds the allowed drift in normalization statistics.
// Weights and counters get no tolerance at all: the arithmetic is
// identical on both runs, so any difference is a real divergence.
const StatsTolerance = 1e-9

// FieldDivergence represents one mismatch between the two runs.
type FieldDivergence struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

// VerificationResult summarizes a double-run comparison.
type VerificationResult struct {
	Match        bool              `json:"match"`
	SessionID    string            `json:"session_id"`
	CheckpointID string            `json:"checkpoint_id"`
	Episodes     int               `json:"episodes"`
	Steps        int64             `json:"steps"`
	Divergences  []FieldDivergence `json:"divergences,omitempty"`
}

// Verifier trains the same configuration twice on isolated in-memory
// stores and compares the final checkpoints field by field.
type Verifier struct {
	cfg *config.Config
	log *logger.Logger
}

// NewVerifier creates a verifier for the given configuration.
func NewVerifier(cfg *config.Config, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Verifier{cfg: cfg, log: log}
}

// Run executes both training passes over the given events and compares
// the results. Both passes share one fixed clock, so identifiers must
// come out identical too.
func (v *Verifier) Run(ctx context.Context, events []*domain.MatchEvent) (*VerificationResult, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("verification: no events to train on")
	}

	clock := time.Now()
	now := func() time.Time { return clock }

	first, err := v.trainOnce(ctx, events, now)
	if err != nil {
		return nil, fmt.Errorf("first pass: %w", err)
	}
	second, err := v.trainOnce(ctx, events, now)
	if err != nil {
		return nil, fmt.Errorf("second pass: %w", err)
	}

	divergences := CompareCheckpoints(first, second)
	result := &VerificationResult{
		Match:        len(divergences) == 0,
		SessionID:    first.SessionID,
		CheckpointID: first.CheckpointID,
		Episodes:     first.Episode,
		Steps:        first.Step,
		Divergences:  divergences,
	}

	if result.Match {
		v.log.Info("determinism verified",
			logger.String("checkpoint_id", first.CheckpointID),
			logger.Int("episodes", first.Episode),
			logger.Int64("steps", first.Step))
	} else {
		v.log.Error("training runs diverged",
			logger.Int("divergences", len(divergences)),
			logger.Any("first", divergences[0]))
	}
	return result, nil
}

// trainOnce runs a fresh session over its own stores and returns the
// final checkpoint.
func (v *Verifier) trainOnce(ctx context.Context, events []*domain.MatchEvent, now func() time.Time) (*domain.Checkpoint, error) {
	eventStore := memory.NewEventStore()
	if err := eventStore.InsertBulk(ctx, events); err != nil {
		return nil, fmt.Errorf("seed events: %w", err)
	}
	checkpoints := memory.NewCheckpointStore()

	ordered := append([]*domain.MatchEvent(nil), events...)
	ingestion.SortEvents(ordered)
	window := training.Window{
		StartMs: ordered[0].KickoffMs,
		EndMs:   ordered[len(ordered)-1].KickoffMs,
	}

	session, err := training.NewSession(v.cfg, training.Params{Window: window}, training.Deps{
		Events:      ingestion.NewStoreProvider(eventStore),
		Checkpoints: checkpoints,
		Logger:      logger.Nop(),
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	if _, err := session.Run(ctx); err != nil {
		return nil, err
	}

	cp, err := checkpoints.GetLatest(ctx, session.SessionID())
	if err != nil {
		return nil, fmt.Errorf("load final checkpoint: %w", err)
	}
	return cp, nil
}

// CompareCheckpoints field-compares two checkpoints. Identifiers,
// shapes, counters, and weight tensors must match exactly;
// normalization statistics may drift within StatsTolerance.
func CompareCheckpoints(expected, actual *domain.Checkpoint) []FieldDivergence {
	var divergences []FieldDivergence
	diverge := func(field string, exp, act interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: exp, Actual: act})
	}

	if expected.CheckpointID != actual.CheckpointID {
		diverge("CheckpointID", expected.CheckpointID, actual.CheckpointID)
	}
	if expected.SessionID != actual.SessionID {
		diverge("SessionID", expected.SessionID, actual.SessionID)
	}
	if expected.CreatedAtMs != actual.CreatedAtMs {
		diverge("CreatedAtMs", expected.CreatedAtMs, actual.CreatedAtMs)
	}
	if expected.Step != actual.Step {
		diverge("Step", expected.Step, actual.Step)
	}
	if expected.Episode != actual.Episode {
		diverge("Episode", expected.Episode, actual.Episode)
	}
	if expected.Epsilon != actual.Epsilon {
		diverge("Epsilon", expected.Epsilon, actual.Epsilon)
	}

	if expected.InputWidth != actual.InputWidth {
		diverge("InputWidth", expected.InputWidth, actual.InputWidth)
	}
	if expected.OutputWidth != actual.OutputWidth {
		diverge("OutputWidth", expected.OutputWidth, actual.OutputWidth)
	}
	divergences = append(divergences, compareInts("HiddenLayout", expected.HiddenLayout, actual.HiddenLayout)...)
	divergences = append(divergences, compareStrings("FeatureNames", expected.FeatureNames, actual.FeatureNames)...)

	divergences = append(divergences, compareWeights("OnlineWeights", expected.OnlineWeights, actual.OnlineWeights)...)
	divergences = append(divergences, compareWeights("TargetWeights", expected.TargetWeights, actual.TargetWeights)...)

	divergences = append(divergences, compareStats("NormMean", expected.NormMean, actual.NormMean)...)
	divergences = append(divergences, compareStats("NormVar", expected.NormVar, actual.NormVar)...)
	if expected.NormObservations != actual.NormObservations {
		diverge("NormObservations", expected.NormObservations, actual.NormObservations)
	}

	return divergences
}

// compareWeights demands exact equality per element.
func compareWeights(field string, expected, actual [][][]float64) []FieldDivergence {
	if len(expected) != len(actual) {
		return []FieldDivergence{{Field: field + ".layers", Expected: len(expected), Actual: len(actual)}}
	}
	var divergences []FieldDivergence
	for l := range expected {
		if len(expected[l]) != len(actual[l]) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("%s[%d].neurons", field, l),
				Expected: len(expected[l]),
				Actual:   len(actual[l]),
			})
			continue
		}
		for n := range expected[l] {
			if len(expected[l][n]) != len(actual[l][n]) {
				divergences = append(divergences, FieldDivergence{
					Field:    fmt.Sprintf("%s[%d][%d].weights", field, l, n),
					Expected: len(expected[l][n]),
					Actual:   len(actual[l][n]),
				})
				continue
			}
			for w := range expected[l][n] {
				if expected[l][n][w] != actual[l][n][w] {
					divergences = append(divergences, FieldDivergence{
						Field:    fmt.Sprintf("%s[%d][%d][%d]", field, l, n, w),
						Expected: expected[l][n][w],
						Actual:   actual[l][n][w],
					})
				}
			}
		}
	}
	return divergences
}

// compareStats allows StatsTolerance per element.
func compareStats(field string, expected, actual []float64) []FieldDivergence {
	if len(expected) != len(actual) {
		return []FieldDivergence{{Field: field + ".len", Expected: len(expected), Actual: len(actual)}}
	}
	var divergences []FieldDivergence
	for i := range expected {
		if math.Abs(expected[i]-actual[i]) > StatsTolerance {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("%s[%d]", field, i),
				Expected: expected[i],
				Actual:   actual[i],
			})
		}
	}
	return divergences
}

func compareInts(field string, expected, actual []int) []FieldDivergence {
	if len(expected) != len(actual) {
		return []FieldDivergence{{Field: field + ".len", Expected: len(expected), Actual: len(actual)}}
	}
	var divergences []FieldDivergence
	for i := range expected {
		if expected[i] != actual[i] {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("%s[%d]", field, i),
				Expected: expected[i],
				Actual:   actual[i],
			})
		}
	}
	return divergences
}

func compareStrings(field string, expected, actual []string) []FieldDivergence {
	if len(expected) != len(actual) {
		return []FieldDivergence{{Field: field + ".len", Expected: len(expected), Actual: len(actual)}}
	}
	var divergences []FieldDivergence
	for i := range expected {
		if expected[i] != actual[i] {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("%s[%d]", field, i),
				Expected: expected[i],
				Actual:   actual[i],
			})
		}
	}
	return divergences
}
