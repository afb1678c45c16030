// Package inference serves single-event predictions from checkpointed
// parameters. A predictor is a frozen snapshot: extraction does not
// update normalization statistics and nothing here learns.
package inference

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/network"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/policy"
)

// ErrIncompatibleCheckpoint is returned when a checkpoint's shape or
// feature schema disagrees with the configured extractor.
var ErrIncompatibleCheckpoint = errors.New("inference: checkpoint does not fit the configured feature schema")

// Prediction is the serving response for one event.
type Prediction struct {
	EventID      string    `json:"event_id"`
	Action       string    `json:"action"`
	Confidence   float64   `json:"confidence"`
	Values       []float64 `json:"values"`
	Gated        bool      `json:"gated"`
	CheckpointID string    `json:"checkpoint_id"`
}

// Predictor evaluates events against one checkpoint. Serving is
// stateless per event: no decision history accumulates, so the
// self-referential features sit at their neutral defaults. Safe for
// concurrent use; evaluations are serialized internally.
type Predictor struct {
	mu           sync.Mutex
	extractor    *feature.Extractor
	pol          *policy.Policy
	checkpointID string
	loadedAtMs   int64
}

// FromCheckpoint builds a predictor over the checkpoint's online
// parameters. The checkpoint must match the configured feature schema.
func FromCheckpoint(cfg *config.Config, cp *domain.Checkpoint) (*Predictor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("inference: config is required")
	}
	if cp == nil {
		return nil, fmt.Errorf("inference: checkpoint is required")
	}

	extractor, err := feature.NewExtractor(cfg.Features, blocks.NewTracker(cfg.Blocks))
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
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

	ncfg := cfg.Network
	ncfg.Inputs = cp.InputWidth
	ncfg.Hidden = append([]int(nil), cp.HiddenLayout...)
	ncfg.Outputs = cp.OutputWidth
	net, err := network.New(ncfg, rand.New(rand.NewSource(cfg.Training.Seed)))
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	if err := net.RestoreWeights(cp.OnlineWeights); err != nil {
		return nil, fmt.Errorf("restore online weights: %w", err)
	}

	pol := policy.New(net, policy.Config{MinConfidence: cfg.Training.MinConfidence},
		rand.New(rand.NewSource(cfg.Training.Seed)))

	return &Predictor{
		extractor:    extractor,
		pol:          pol,
		checkpointID: cp.CheckpointID,
		loadedAtMs:   time.Now().UnixMilli(),
	}, nil
}

// CheckpointID returns the identity of the loaded parameters.
func (p *Predictor) CheckpointID() string {
	return p.checkpointID
}

// Predict scores one event greedily, gate applied, exploration off.
func (p *Predictor) Predict(ev *domain.MatchEvent) Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	state := p.extractor.ExtractFrozen(ev, nil)
	d := p.pol.Greedy(state)
	observability.RecordInference(time.Since(started).Seconds())

	return Prediction{
		EventID:      ev.EventID,
		Action:       d.Action.Name(),
		Confidence:   d.Confidence,
		Values:       d.Values,
		Gated:        d.Gated,
		CheckpointID: p.checkpointID,
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
