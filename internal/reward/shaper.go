package reward

import (
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// Config holds every shaping constant. All of them are tunable; the
// defaults encode the hit-rate-first philosophy: wrong entries cost far
// more than missed ones.
type Config struct {
	// Skip shaping. Sitting out earns a small base either way, a bonus
	// when the skipped market missed, a penalty when it hit.
	SkipBase        float64 `yaml:"skip_base" default:"0.1"`
	SkipAvoidBonus  float64 `yaml:"skip_avoid_bonus" default:"0.3" validate:"gte=0"`
	SkipMissPenalty float64 `yaml:"skip_miss_penalty" default:"0.3" validate:"gte=0"`

	// Green shaping.
	GreenBase           float64 `yaml:"green_base" default:"1.0" validate:"gt=0"`
	GreenScale          float64 `yaml:"green_scale" default:"2.0" validate:"gt=0"`
	IdealPriceMin       float64 `yaml:"ideal_price_min" default:"1.5" validate:"gte=1"`
	IdealPriceMax       float64 `yaml:"ideal_price_max" default:"2.5" validate:"gtefield=IdealPriceMin"`
	IdealRangeBonus     float64 `yaml:"ideal_range_bonus" default:"0.5" validate:"gte=0"`
	HighConfidence      float64 `yaml:"high_confidence" default:"0.7"`
	HighConfidenceBoost float64 `yaml:"high_confidence_boost" default:"1.3" validate:"gte=1"`
	LongPrice           float64 `yaml:"long_price" default:"2.5" validate:"gte=1"`
	MaxStakeLongBoost   float64 `yaml:"max_stake_long_boost" default:"1.4" validate:"gte=1"`

	// Red shaping. Multipliers amplify the base loss; the max-stake
	// amplifier is deliberately larger than its green counterpart.
	RedBase              float64 `yaml:"red_base" default:"-3.0" validate:"lt=0"`
	OutOfRangePenalty    float64 `yaml:"out_of_range_penalty" default:"1.3" validate:"gte=1"`
	LowConfidence        float64 `yaml:"low_confidence" default:"0.3"`
	LowConfidencePenalty float64 `yaml:"low_confidence_penalty" default:"1.2" validate:"gte=1"`
	MaxStakePenalty      float64 `yaml:"max_stake_penalty" default:"1.8" validate:"gte=1"`

	// Performance overlay, active once the episode has enough bets.
	PhaseMinBets    int     `yaml:"phase_min_bets" default:"10" validate:"gte=0"`
	TargetEntryRate float64 `yaml:"target_entry_rate" default:"0.25" validate:"gt=0,lte=1"`
	BandElite       float64 `yaml:"band_elite" default:"1.3" validate:"gt=0"`
	BandStrong      float64 `yaml:"band_strong" default:"1.15" validate:"gt=0"`
	BandSteady      float64 `yaml:"band_steady" default:"1.0" validate:"gt=0"`
	BandWeak        float64 `yaml:"band_weak" default:"0.85" validate:"gt=0"`
}

// DefaultConfig returns the standard shaping constants.
func DefaultConfig() Config {
	return Config{
		SkipBase:             0.1,
		SkipAvoidBonus:       0.3,
		SkipMissPenalty:      0.3,
		GreenBase:            1.0,
		GreenScale:           2.0,
		IdealPriceMin:        1.5,
		IdealPriceMax:        2.5,
		IdealRangeBonus:      0.5,
		HighConfidence:       0.7,
		HighConfidenceBoost:  1.3,
		LongPrice:            2.5,
		MaxStakeLongBoost:    1.4,
		RedBase:              -3.0,
		OutOfRangePenalty:    1.3,
		LowConfidence:        0.3,
		LowConfidencePenalty: 1.2,
		MaxStakePenalty:      1.8,
		PhaseMinBets:         10,
		TargetEntryRate:      0.25,
		BandElite:            1.3,
		BandStrong:           1.15,
		BandSteady:           1.0,
		BandWeak:             0.85,
	}
}

// Outcome is one settled decision handed to the shaper: what was done,
// at what price and confidence, and whether the market hit.
type Outcome struct {
	Action     domain.Action
	Confidence float64
	Price      float64 // decimal odds of the bet market
	Won        bool    // market hit, also meaningful for skips
}

// Breakdown itemizes one shaped reward so a consumer can see which
// rules fired and what each contributed. The parts always compose as
// Final = (Base+Bonus) * Multiplier * Overlay.
type Breakdown struct {
	Base       float64 // class base: skip, green, or red
	Bonus      float64 // additive adjustment, applied before amplification
	Multiplier float64 // product of the class amplifiers, 1 when none fired
	Overlay    float64 // effective performance overlay factor, 1 when inactive
	Final      float64
}

// Shaper turns settled decisions into training rewards. Shape is a pure
// function of the outcome, the constants, and the episode stats.
type Shaper struct {
	cfg Config
}

// NewShaper creates a shaper with the given constants.
func NewShaper(cfg Config) *Shaper {
	return &Shaper{cfg: cfg}
}

// Config returns the active shaping constants.
func (s *Shaper) Config() Config {
	return s.cfg
}

// Shape computes the reward for one settled decision, itemized in the
// returned breakdown. A nil stats or too few bets leaves the
// performance overlay inactive.
func (s *Shaper) Shape(o Outcome, stats *domain.EpisodeStats) (float64, Breakdown) {
	var bd Breakdown
	switch {
	case !o.Action.IsEntry():
		bd = s.shapeSkip(o)
	case o.Won:
		bd = s.shapeGreen(o)
	default:
		bd = s.shapeRed(o)
	}
	bd.Overlay = s.overlay(bd.Final, stats)
	bd.Final *= bd.Overlay
	return bd.Final, bd
}

func (s *Shaper) shapeSkip(o Outcome) Breakdown {
	bd := Breakdown{Base: s.cfg.SkipBase, Multiplier: 1}
	if o.Won {
		bd.Bonus = -s.cfg.SkipMissPenalty // stayed out of a winner
	} else {
		bd.Bonus = s.cfg.SkipAvoidBonus // dodged a loser
	}
	bd.Final = (bd.Base + bd.Bonus) * bd.Multiplier
	return bd
}

func (s *Shaper) shapeGreen(o Outcome) Breakdown {
	bd := Breakdown{Base: s.cfg.GreenBase * s.cfg.GreenScale, Multiplier: 1}
	if o.Price >= s.cfg.IdealPriceMin && o.Price <= s.cfg.IdealPriceMax {
		bd.Bonus = s.cfg.IdealRangeBonus
	}
	if o.Confidence >= s.cfg.HighConfidence {
		bd.Multiplier *= s.cfg.HighConfidenceBoost
	}
	if o.Action == domain.ActionStake3 && o.Price >= s.cfg.LongPrice {
		bd.Multiplier *= s.cfg.MaxStakeLongBoost
	}
	bd.Final = (bd.Base + bd.Bonus) * bd.Multiplier
	return bd
}

func (s *Shaper) shapeRed(o Outcome) Breakdown {
	bd := Breakdown{Base: s.cfg.RedBase, Multiplier: 1}
	if o.Price < s.cfg.IdealPriceMin || o.Price > s.cfg.IdealPriceMax {
		bd.Multiplier *= s.cfg.OutOfRangePenalty
	}
	if o.Confidence <= s.cfg.LowConfidence {
		bd.Multiplier *= s.cfg.LowConfidencePenalty
	}
	if o.Action == domain.ActionStake3 {
		bd.Multiplier *= s.cfg.MaxStakePenalty
	}
	bd.Final = (bd.Base + bd.Bonus) * bd.Multiplier
	return bd
}

// overlay returns the factor the episode's performance band and entry
// selectivity apply to the reward. Gains multiply, losses divide, so
// the sign never flips: a strong win rate amplifies gains and softens
// losses, a weak one does the opposite.
func (s *Shaper) overlay(r float64, stats *domain.EpisodeStats) float64 {
	if stats == nil || stats.Entries < s.cfg.PhaseMinBets {
		return 1
	}

	m := s.band(stats.WinRate()) * s.selectivity(stats.EntryRate())
	if r >= 0 {
		return m
	}
	return 1 / m
}

func (s *Shaper) band(winRate float64) float64 {
	switch {
	case winRate >= 0.70:
		return s.cfg.BandElite
	case winRate >= 0.60:
		return s.cfg.BandStrong
	case winRate >= 0.50:
		return s.cfg.BandSteady
	case winRate >= 0.40:
		return 1.0
	default:
		return s.cfg.BandWeak
	}
}

// selectivity discounts rewards once the entry rate overshoots its
// target, in proportion to the overshoot.
func (s *Shaper) selectivity(entryRate float64) float64 {
	if entryRate <= s.cfg.TargetEntryRate {
		return 1.0
	}
	return s.cfg.TargetEntryRate / entryRate
}
