package policy

import (
	"math/rand"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// Evaluator scores a state: one estimated value per action.
type Evaluator interface {
	Evaluate(state []float64) []float64
}

// Config holds the decision parameters.
type Config struct {
	// MinConfidence gates greedy entries: a non-skip pick valued below
	// it is overridden to skip. Zero disables the gate for any state
	// with non-negative values.
	MinConfidence float64 `yaml:"min_confidence" default:"0.0"`
}

// Decision is the outcome of one action selection.
type Decision struct {
	Action     domain.Action
	Confidence float64   // value of the greedy pick, 0 when explored
	Values     []float64 // per-action values, nil when explored
	Explored   bool      // action came from the random branch
	Gated      bool      // entry was overridden to skip by the gate
}

// Stats counts decisions and what the gate did to them.
type Stats struct {
	Decisions        int64
	EntriesAttempted int64 // decisions whose pre-gate action was an entry
	EntriesApproved  int64
	GateRejected     int64
}

// Policy selects actions epsilon-greedily and applies the confidence
// gate to greedy entries. Explored actions carry zero confidence and
// bypass the gate. Not safe for concurrent use.
type Policy struct {
	eval          Evaluator
	minConfidence float64
	epsilon       float64
	rng           *rand.Rand
	stats         Stats
}

// New creates a policy over the given evaluator. The random source
// drives exploration; a seeded source makes selection repeatable.
func New(eval Evaluator, cfg Config, rng *rand.Rand) *Policy {
	return &Policy{
		eval:          eval,
		minConfidence: cfg.MinConfidence,
		rng:           rng,
	}
}

// SetEpsilon sets the exploration rate, clamped to [0,1].
func (p *Policy) SetEpsilon(epsilon float64) {
	if epsilon < 0 {
		epsilon = 0
	} else if epsilon > 1 {
		epsilon = 1
	}
	p.epsilon = epsilon
}

// Epsilon returns the current exploration rate.
func (p *Policy) Epsilon() float64 {
	return p.epsilon
}

// MinConfidence returns the gate threshold.
func (p *Policy) MinConfidence() float64 {
	return p.minConfidence
}

// Stats returns the decision counters.
func (p *Policy) Stats() Stats {
	return p.stats
}

// Decide picks an action for the state, exploring with probability
// epsilon, and updates the counters.
func (p *Policy) Decide(state []float64) Decision {
	p.stats.Decisions++

	if p.rng.Float64() < p.epsilon {
		action := domain.Action(p.rng.Intn(domain.ActionCount))
		if action.IsEntry() {
			p.stats.EntriesAttempted++
			p.stats.EntriesApproved++
		}
		return Decision{Action: action, Explored: true}
	}

	d := p.Greedy(state)
	if d.Gated || d.Action.IsEntry() {
		p.stats.EntriesAttempted++
		if d.Gated {
			p.stats.GateRejected++
		} else {
			p.stats.EntriesApproved++
		}
	}
	return d
}

// Greedy picks the highest-valued action and applies the gate, without
// consuming randomness or touching the counters. Ties go to the lowest
// action index.
func (p *Policy) Greedy(state []float64) Decision {
	values := p.eval.Evaluate(state)
	if len(values) == 0 {
		return Decision{Action: domain.ActionSkip}
	}

	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}

	d := Decision{
		Action:     domain.Action(best),
		Confidence: values[best],
		Values:     values,
	}
	if d.Action.IsEntry() && d.Confidence < p.minConfidence {
		// Keep the original confidence visible: callers see how close
		// the rejected entry came.
		d.Action = domain.ActionSkip
		d.Gated = true
	}
	return d
}
