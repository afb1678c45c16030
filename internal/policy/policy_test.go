package policy

import (
	"math/rand"
	"testing"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// stubEvaluator returns a fixed value slice for every state.
type stubEvaluator struct {
	values []float64
}

func (s stubEvaluator) Evaluate(_ []float64) []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

func TestGreedyPicksArgmax(t *testing.T) {
	p := New(stubEvaluator{values: []float64{0.1, 0.9, 0.4, 0.2}}, Config{}, rand.New(rand.NewSource(1)))

	d := p.Greedy(nil)
	if d.Action != domain.ActionStake1 {
		t.Errorf("Action = %s, want STAKE_1", d.Action.Name())
	}
	if d.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", d.Confidence)
	}
	if d.Explored || d.Gated {
		t.Errorf("greedy pick flagged explored=%v gated=%v", d.Explored, d.Gated)
	}
	if len(d.Values) != 4 {
		t.Errorf("Values length = %d, want 4", len(d.Values))
	}
}

func TestGreedyTieBreaksToLowestIndex(t *testing.T) {
	p := New(stubEvaluator{values: []float64{0.5, 0.5, 0.5, 0.5}}, Config{}, rand.New(rand.NewSource(1)))

	d := p.Greedy(nil)
	if d.Action != domain.ActionSkip {
		t.Errorf("Action = %s on a tie, want SKIP (index 0)", d.Action.Name())
	}
}

func TestGateOverridesSubThresholdEntry(t *testing.T) {
	// Argmax is an entry valued 1.0; the gate needs 2.0.
	p := New(
		stubEvaluator{values: []float64{0.2, 1.0, 0.5, 0.1}},
		Config{MinConfidence: 2.0},
		rand.New(rand.NewSource(1)),
	)

	d := p.Greedy(nil)
	if d.Action != domain.ActionSkip {
		t.Errorf("Action = %s, want SKIP after gate override", d.Action.Name())
	}
	if !d.Gated {
		t.Error("Gated = false, want true")
	}
	if d.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want the original 1.0", d.Confidence)
	}
}

func TestGateNeverBlocksSkip(t *testing.T) {
	// Skip itself is the argmax: the gate has nothing to override.
	p := New(
		stubEvaluator{values: []float64{3.0, 1.0, 0.5, 0.1}},
		Config{MinConfidence: 5.0},
		rand.New(rand.NewSource(1)),
	)

	d := p.Greedy(nil)
	if d.Action != domain.ActionSkip || d.Gated {
		t.Errorf("Action = %s gated=%v, want an ungated SKIP", d.Action.Name(), d.Gated)
	}
}

func TestGateMonotonicity(t *testing.T) {
	// Raising the threshold must never approve more entries.
	valueSets := [][]float64{
		{0.1, 0.9, 0.4, 0.2},
		{0.5, 0.3, 0.2, 0.1},
		{0.0, 1.5, 2.5, 0.4},
		{0.2, 0.6, 0.61, 0.59},
		{1.0, 0.2, 0.1, 3.0},
	}

	approvals := func(minConf float64) int {
		count := 0
		for _, vs := range valueSets {
			p := New(stubEvaluator{values: vs}, Config{MinConfidence: minConf}, rand.New(rand.NewSource(1)))
			if d := p.Greedy(nil); d.Action.IsEntry() {
				count++
			}
		}
		return count
	}

	prev := approvals(0)
	for _, threshold := range []float64{0.5, 1.0, 2.0, 4.0} {
		cur := approvals(threshold)
		if cur > prev {
			t.Errorf("threshold %v approved %d entries, more than %d at the looser setting",
				threshold, cur, prev)
		}
		prev = cur
	}
}

func TestExplorationBypassesGate(t *testing.T) {
	// Epsilon 1: every decision explores. With an impossible gate, only
	// the exploration branch can ever produce an entry.
	p := New(
		stubEvaluator{values: []float64{0.1, 0.2, 0.3, 0.4}},
		Config{MinConfidence: 100},
		rand.New(rand.NewSource(42)),
	)
	p.SetEpsilon(1.0)

	sawEntry := false
	for i := 0; i < 100; i++ {
		d := p.Decide(nil)
		if !d.Explored {
			t.Fatal("epsilon 1.0 produced a greedy decision")
		}
		if d.Confidence != 0 {
			t.Errorf("explored decision carries confidence %v, want 0", d.Confidence)
		}
		if d.Gated {
			t.Error("explored decision was gated")
		}
		if d.Action.IsEntry() {
			sawEntry = true
		}
		if !d.Action.IsValid() {
			t.Errorf("explored action %d out of range", d.Action)
		}
	}
	if !sawEntry {
		t.Error("100 random draws never produced an entry")
	}
}

func TestDecideIsSeedRepeatable(t *testing.T) {
	run := func() []domain.Action {
		p := New(stubEvaluator{values: []float64{0.1, 0.2, 0.3, 0.4}}, Config{}, rand.New(rand.NewSource(7)))
		p.SetEpsilon(0.5)
		actions := make([]domain.Action, 50)
		for i := range actions {
			actions[i] = p.Decide(nil).Action
		}
		return actions
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("decision %d diverged under equal seeds: %s != %s",
				i, first[i].Name(), second[i].Name())
		}
	}
}

func TestColdStartProducesValidAction(t *testing.T) {
	// Near-zero values straight out of initialization still resolve.
	p := New(stubEvaluator{values: []float64{0.001, -0.002, 0.0005, -0.001}}, Config{}, rand.New(rand.NewSource(1)))
	p.SetEpsilon(1.0)

	d := p.Decide(nil)
	if !d.Action.IsValid() {
		t.Errorf("cold-start action %d invalid", d.Action)
	}

	p.SetEpsilon(0)
	d = p.Decide(nil)
	if !d.Action.IsValid() {
		t.Errorf("cold-start greedy action %d invalid", d.Action)
	}
}

func TestStatsCounters(t *testing.T) {
	// Gate at 0.7: argmax entry valued 0.9 passes, 0.5 gets rejected.
	pass := stubEvaluator{values: []float64{0.1, 0.9, 0.4, 0.2}}
	reject := stubEvaluator{values: []float64{0.1, 0.5, 0.4, 0.2}}

	p := New(pass, Config{MinConfidence: 0.7}, rand.New(rand.NewSource(1)))
	for i := 0; i < 3; i++ {
		p.Decide(nil)
	}

	p.eval = reject
	for i := 0; i < 2; i++ {
		p.Decide(nil)
	}

	st := p.Stats()
	if st.Decisions != 5 {
		t.Errorf("Decisions = %d, want 5", st.Decisions)
	}
	if st.EntriesAttempted != 5 {
		t.Errorf("EntriesAttempted = %d, want 5", st.EntriesAttempted)
	}
	if st.EntriesApproved != 3 {
		t.Errorf("EntriesApproved = %d, want 3", st.EntriesApproved)
	}
	if st.GateRejected != 2 {
		t.Errorf("GateRejected = %d, want 2", st.GateRejected)
	}
}

func TestSetEpsilonClamps(t *testing.T) {
	p := New(stubEvaluator{values: []float64{1, 0, 0, 0}}, Config{}, rand.New(rand.NewSource(1)))

	p.SetEpsilon(1.7)
	if p.Epsilon() != 1 {
		t.Errorf("Epsilon = %v, want clamp to 1", p.Epsilon())
	}
	p.SetEpsilon(-0.3)
	if p.Epsilon() != 0 {
		t.Errorf("Epsilon = %v, want clamp to 0", p.Epsilon())
	}
}
