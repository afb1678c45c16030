package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// Config holds the extraction and normalization parameters.
type Config struct {
	// Markets fixes which odds enter the vector and in what order.
	// Empty means domain.DefaultMarkets.
	Markets   []string `yaml:"markets"`
	NormDecay float64  `yaml:"norm_decay" default:"0.01" validate:"gt=0,lt=1"`
	ClipSigma float64  `yaml:"clip_sigma" default:"3" validate:"gt=0"`
	MinStd    float64  `yaml:"min_std" default:"0.000001" validate:"gt=0"`
}

// DefaultConfig returns the standard extraction parameters.
func DefaultConfig() Config {
	return Config{
		Markets:   nil,
		NormDecay: 0.01,
		ClipSigma: 3,
		MinStd:    1e-6,
	}
}

// Outcome is one resolved past decision, used for the self-referential
// signals. Newest last.
type Outcome struct {
	Entered bool
	Won     bool
}

// History carries the recent decision context into extraction.
type History struct {
	Outcomes      []Outcome
	BankrollRatio float64 // current bankroll over starting bankroll
}

const (
	defaultWinRate   = 0.5
	historyStreakCap = 10
	hoursPerBucket   = 4
)

// Extractor turns match events into fixed-width normalized vectors.
// The schema - component names, order, and width - is fixed at
// construction and never changes afterwards. Four signal families:
//
//	(a) per market: decimal odds and implied probability (1/odds)
//	(b) per adjacent market pair: odds ratio and odds product
//	(c) temporal: kickoff hour bucket, weekday flag, block tracker signals
//	(d) self-referential: rolling win rate, decision streak, bankroll ratio
//
// Malformed odds (missing, non-positive, below 1.0, NaN, infinite)
// coerce to zero; extraction never fails.
type Extractor struct {
	markets []string
	pairs   [][2]string
	names   []string
	norm    *Normalizer
	tracker *blocks.Tracker
}

// NewExtractor builds an extractor over the given block tracker.
func NewExtractor(cfg Config, tracker *blocks.Tracker) (*Extractor, error) {
	if tracker == nil {
		return nil, fmt.Errorf("block tracker is required")
	}
	markets := cfg.Markets
	if len(markets) == 0 {
		markets = domain.DefaultMarkets
	}

	e := &Extractor{
		markets: append([]string(nil), markets...),
		tracker: tracker,
	}
	for i := 0; i+1 < len(e.markets); i++ {
		e.pairs = append(e.pairs, [2]string{e.markets[i], e.markets[i+1]})
	}

	for _, m := range e.markets {
		e.names = append(e.names, "price_"+m, "implied_prob_"+m)
	}
	for _, p := range e.pairs {
		e.names = append(e.names, "price_ratio_"+p[0]+"_"+p[1], "price_product_"+p[0]+"_"+p[1])
	}
	e.names = append(e.names, "kickoff_hour_bucket", "kickoff_weekday")
	e.names = append(e.names, blocks.Names()...)
	e.names = append(e.names, "rolling_win_rate", "decision_streak", "bankroll_ratio")

	e.norm = NewNormalizer(len(e.names), cfg.NormDecay, cfg.ClipSigma, cfg.MinStd)
	return e, nil
}

// Names returns the schema in emission order.
func (e *Extractor) Names() []string {
	return append([]string(nil), e.names...)
}

// Width returns the vector width.
func (e *Extractor) Width() int {
	return len(e.names)
}

// Normalizer exposes the running statistics for checkpointing.
func (e *Extractor) Normalizer() *Normalizer {
	return e.norm
}

// Extract derives the raw vector, folds it into the running statistics,
// and returns its normalized form. A nil history uses neutral defaults.
func (e *Extractor) Extract(event *domain.MatchEvent, hist *History) []float64 {
	raw := e.rawVector(event, hist)
	e.norm.Observe(raw)
	return e.norm.Apply(raw)
}

// ExtractFrozen normalizes against the current statistics without
// updating them. Inference uses this so serving never mutates state.
func (e *Extractor) ExtractFrozen(event *domain.MatchEvent, hist *History) []float64 {
	return e.norm.Apply(e.rawVector(event, hist))
}

func (e *Extractor) rawVector(event *domain.MatchEvent, hist *History) []float64 {
	raw := make([]float64, 0, len(e.names))

	for _, m := range e.markets {
		price := sanitizePrice(event.Price(m))
		raw = append(raw, price)
		if price > 0 {
			raw = append(raw, 1/price)
		} else {
			raw = append(raw, 0)
		}
	}

	for _, p := range e.pairs {
		a := sanitizePrice(event.Price(p[0]))
		b := sanitizePrice(event.Price(p[1]))
		if b > 0 {
			raw = append(raw, a/b)
		} else {
			raw = append(raw, 0)
		}
		raw = append(raw, a*b)
	}

	kickoff := time.UnixMilli(event.KickoffMs).UTC()
	raw = append(raw, float64(kickoff.Hour()/hoursPerBucket))
	weekday := kickoff.Weekday()
	if weekday >= time.Monday && weekday <= time.Friday {
		raw = append(raw, 1)
	} else {
		raw = append(raw, 0)
	}

	raw = append(raw, e.tracker.FeaturesAt(event.KickoffMs).Vector()...)

	winRate, streak, bankroll := historySignals(hist)
	raw = append(raw, winRate, streak, bankroll)

	return raw
}

// historySignals reduces the recent decision history to the three
// self-referential components. With no history: win rate 0.5, streak 0,
// bankroll ratio 1.
func historySignals(hist *History) (winRate, streak, bankroll float64) {
	if hist == nil {
		return defaultWinRate, 0, 1
	}

	entries, wins := 0, 0
	for _, o := range hist.Outcomes {
		if !o.Entered {
			continue
		}
		entries++
		if o.Won {
			wins++
		}
	}
	winRate = defaultWinRate
	if entries > 0 {
		winRate = float64(wins) / float64(entries)
	}

	// Consecutive same-result entries from the newest backwards; skips
	// do not break the run.
	var run int
	for i := len(hist.Outcomes) - 1; i >= 0; i-- {
		o := hist.Outcomes[i]
		if !o.Entered {
			continue
		}
		if run == 0 {
			if o.Won {
				run = 1
			} else {
				run = -1
			}
			continue
		}
		if o.Won == (run > 0) {
			if run > 0 {
				run++
			} else {
				run--
			}
			if run >= historyStreakCap || run <= -historyStreakCap {
				break
			}
			continue
		}
		break
	}
	if run > historyStreakCap {
		run = historyStreakCap
	} else if run < -historyStreakCap {
		run = -historyStreakCap
	}
	streak = float64(run)

	bankroll = hist.BankrollRatio
	return winRate, streak, bankroll
}

// sanitizePrice coerces malformed odds to zero. Well-formed decimal
// odds are finite and at least 1.0.
func sanitizePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 1.0 {
		return 0
	}
	return p
}
