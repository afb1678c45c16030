package reward

import (
	"testing"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

func TestAdaptivePhaseProgression(t *testing.T) {
	a := NewAdaptiveShaper(DefaultConfig(), DefaultAdaptiveConfig())

	tests := []struct {
		fraction float64
		want     Phase
	}{
		{0.0, PhaseLenient},
		{0.2, PhaseLenient},
		{0.34, PhaseStandard},
		{0.5, PhaseStandard},
		{0.67, PhaseStrict},
		{0.99, PhaseStrict},
		{1.0, PhaseStrict},
	}

	for _, tt := range tests {
		a.SetProgress(tt.fraction)
		if a.Phase() != tt.want {
			t.Errorf("progress %v: phase = %s, want %s", tt.fraction, a.Phase(), tt.want)
		}
	}
}

func TestAdaptiveRedPenaltyGrowsWithProgress(t *testing.T) {
	a := NewAdaptiveShaper(DefaultConfig(), DefaultAdaptiveConfig())
	red := Outcome{Action: domain.ActionStake1, Confidence: 0.5, Price: 2.0, Won: false}

	a.SetProgress(0.1)
	lenient := shape(a, red, nil)

	a.SetProgress(0.5)
	standard := shape(a, red, nil)

	a.SetProgress(0.9)
	strict := shape(a, red, nil)

	if !(lenient > standard && standard > strict) {
		t.Errorf("red penalty should deepen with progress: lenient %v, standard %v, strict %v",
			lenient, standard, strict)
	}
	if lenient != -1.5 {
		t.Errorf("lenient red = %v, want -1.5 (-3.0 * 0.5)", lenient)
	}
	if strict != -4.5 {
		t.Errorf("strict red = %v, want -4.5 (-3.0 * 1.5)", strict)
	}
}

func TestAdaptiveEntryRateTightens(t *testing.T) {
	a := NewAdaptiveShaper(DefaultConfig(), DefaultAdaptiveConfig())
	green := Outcome{Action: domain.ActionStake1, Confidence: 0.5, Price: 2.0, Won: true}

	// 20 entries, no skips: entry rate 1.0 in every phase.
	stats := domain.NewEpisodeStats(100)
	for i := 0; i < 10; i++ {
		stats.RecordEntry(1, 2.0, true)
		stats.RecordEntry(1, 2.0, false)
	}

	a.SetProgress(0.1)
	lenient := shape(a, green, stats)

	a.SetProgress(0.9)
	strict := shape(a, green, stats)

	// Tighter target entry rate means a harsher selectivity discount.
	if strict >= lenient {
		t.Errorf("strict-phase green %v should pay less than lenient-phase %v when over-entering",
			strict, lenient)
	}
}

func TestAdaptiveKeepsSkipAndGreenShapingIntact(t *testing.T) {
	base := DefaultConfig()
	a := NewAdaptiveShaper(base, DefaultAdaptiveConfig())
	plain := NewShaper(base)

	a.SetProgress(0.5) // standard phase: red scale 1.0

	green := Outcome{Action: domain.ActionStake2, Confidence: 0.9, Price: 2.0, Won: true}
	if got, want := shape(a, green, nil), shape(plain, green, nil); got != want {
		t.Errorf("standard-phase green = %v, want baseline %v", got, want)
	}

	skip := Outcome{Action: domain.ActionSkip, Price: 2.0, Won: false}
	if got, want := shape(a, skip, nil), shape(plain, skip, nil); got != want {
		t.Errorf("standard-phase skip = %v, want baseline %v", got, want)
	}
}
