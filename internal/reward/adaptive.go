package reward

import (
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// Phase names the curriculum stage of an adaptive shaper.
type Phase string

const (
	PhaseLenient  Phase = "LENIENT"  // first third: soft losses, free exploration
	PhaseStandard Phase = "STANDARD" // middle third: baseline constants
	PhaseStrict   Phase = "STRICT"   // final third: expensive losses, tight entries
)

// AdaptiveConfig scales the red penalty and retargets the entry rate
// per phase.
type AdaptiveConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`

	LenientRedScale  float64 `yaml:"lenient_red_scale" default:"0.5" validate:"gt=0"`
	StandardRedScale float64 `yaml:"standard_red_scale" default:"1.0" validate:"gt=0"`
	StrictRedScale   float64 `yaml:"strict_red_scale" default:"1.5" validate:"gt=0"`

	LenientEntryRate  float64 `yaml:"lenient_entry_rate" default:"0.5" validate:"gt=0,lte=1"`
	StandardEntryRate float64 `yaml:"standard_entry_rate" default:"0.3" validate:"gt=0,lte=1"`
	StrictEntryRate   float64 `yaml:"strict_entry_rate" default:"0.2" validate:"gt=0,lte=1"`
}

// DefaultAdaptiveConfig returns the standard curriculum.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Enabled:           true,
		LenientRedScale:   0.5,
		StandardRedScale:  1.0,
		StrictRedScale:    1.5,
		LenientEntryRate:  0.5,
		StandardEntryRate: 0.3,
		StrictEntryRate:   0.2,
	}
}

// AdaptiveShaper wraps a Shaper and re-tunes its constants as training
// advances: losses start cheap while the policy explores, then grow
// expensive as it should be converging, while the tolerated entry rate
// tightens. SetProgress drives the phase from the episodes completed.
type AdaptiveShaper struct {
	base    Config
	acfg    AdaptiveConfig
	phase   Phase
	current *Shaper
}

// NewAdaptiveShaper starts a curriculum in the lenient phase.
func NewAdaptiveShaper(base Config, acfg AdaptiveConfig) *AdaptiveShaper {
	a := &AdaptiveShaper{base: base, acfg: acfg}
	a.setPhase(PhaseLenient)
	return a
}

// Phase returns the active curriculum stage.
func (a *AdaptiveShaper) Phase() Phase {
	return a.phase
}

// Config returns the constants of the active stage.
func (a *AdaptiveShaper) Config() Config {
	return a.current.Config()
}

// SetProgress positions the curriculum from the completed fraction of
// training, clamped to [0,1): under a third lenient, under two thirds
// standard, strict after that.
func (a *AdaptiveShaper) SetProgress(fraction float64) {
	switch {
	case fraction < 1.0/3.0:
		a.setPhase(PhaseLenient)
	case fraction < 2.0/3.0:
		a.setPhase(PhaseStandard)
	default:
		a.setPhase(PhaseStrict)
	}
}

func (a *AdaptiveShaper) setPhase(p Phase) {
	if a.current != nil && a.phase == p {
		return
	}

	cfg := a.base
	switch p {
	case PhaseLenient:
		cfg.RedBase = a.base.RedBase * a.acfg.LenientRedScale
		cfg.TargetEntryRate = a.acfg.LenientEntryRate
	case PhaseStandard:
		cfg.RedBase = a.base.RedBase * a.acfg.StandardRedScale
		cfg.TargetEntryRate = a.acfg.StandardEntryRate
	case PhaseStrict:
		cfg.RedBase = a.base.RedBase * a.acfg.StrictRedScale
		cfg.TargetEntryRate = a.acfg.StrictEntryRate
	}

	a.phase = p
	a.current = NewShaper(cfg)
}

// Shape delegates to the shaper tuned for the active phase.
func (a *AdaptiveShaper) Shape(o Outcome, stats *domain.EpisodeStats) (float64, Breakdown) {
	return a.current.Shape(o, stats)
}
