package ingestion

import (
	"math"
	"math/rand"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/idhash"
)

// GeneratorConfig parameterizes the synthetic event generator.
type GeneratorConfig struct {
	Seed       int64
	League     string
	Teams      []string
	StartMs    int64 // kickoff of the first event
	IntervalMs int64 // spacing between kickoffs
}

// DefaultGeneratorConfig returns a round-the-clock virtual league: one
// match every three minutes starting at 2024-01-01 00:00:00 UTC.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       1,
		League:     "virtual-premier",
		Teams:      defaultTeams,
		StartMs:    1704067200000,
		IntervalMs: 3 * 60 * 1000,
	}
}

var defaultTeams = []string{
	"Ashford City", "Bexley Rovers", "Calder United", "Danbury Town",
	"Eastgate FC", "Ferrybridge", "Granton Athletic", "Harwick Wanderers",
	"Ironvale", "Juniper Park", "Kelsall County", "Larchmont FC",
	"Millbrook United", "Northolt Albion", "Oakhurst Town", "Pembury FC",
}

// Settlement lands two minutes after kickoff, well inside the match
// interval.
const settleDelayMs = 2 * 60 * 1000

// House margin applied when converting probabilities to board prices.
const overround = 1.05

// Generator produces deterministic synthetic match events: seeded odds
// correlated with seeded outcomes, so a policy trained on them has real
// structure to find. Local seeding and tests use it in place of a feed.
type Generator struct {
	cfg       GeneratorConfig
	rng       *rand.Rand
	generated int64 // events emitted so far, advances the kickoff clock
}

// NewGenerator creates a generator. Equal configs generate identical
// event sequences.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.League == "" {
		cfg.League = "virtual-premier"
	}
	if len(cfg.Teams) < 2 {
		cfg.Teams = defaultTeams
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 3 * 60 * 1000
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Events generates the next n settled events in replay order.
func (g *Generator) Events(n int) []*domain.MatchEvent {
	events := make([]*domain.MatchEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, g.next(g.generated))
		g.generated++
	}
	return events
}

func (g *Generator) next(seq int64) *domain.MatchEvent {
	kickoff := g.cfg.StartMs + seq*g.cfg.IntervalMs

	hi := g.rng.Intn(len(g.cfg.Teams))
	aj := g.rng.Intn(len(g.cfg.Teams) - 1)
	if aj >= hi {
		aj++
	}
	home, away := g.cfg.Teams[hi], g.cfg.Teams[aj]

	// Latent scoring rates drive both the quoted odds and the settled
	// score, so prices carry genuine signal about outcomes.
	homeRate := 0.8 + 1.2*g.rng.Float64()
	awayRate := 0.6 + 1.0*g.rng.Float64()

	hg := poisson(g.rng, homeRate)
	ag := poisson(g.rng, awayRate)

	pHome, pDraw, pAway := matchProbabilities(homeRate, awayRate)
	pOver := overProbability(homeRate + awayRate)
	pBTTS := bttsProbability(homeRate, awayRate)

	odds := map[string]float64{
		domain.MarketHome:    quote(g.jitter(pHome)),
		domain.MarketDraw:    quote(g.jitter(pDraw)),
		domain.MarketAway:    quote(g.jitter(pAway)),
		domain.MarketOver25:  quote(g.jitter(pOver)),
		domain.MarketUnder25: quote(g.jitter(1 - pOver)),
		domain.MarketBTTSYes: quote(g.jitter(pBTTS)),
		domain.MarketBTTSNo:  quote(g.jitter(1 - pBTTS)),
	}

	results := map[string]bool{
		domain.MarketHome:    hg > ag,
		domain.MarketDraw:    hg == ag,
		domain.MarketAway:    ag > hg,
		domain.MarketOver25:  hg+ag >= 3,
		domain.MarketUnder25: hg+ag <= 2,
		domain.MarketBTTSYes: hg > 0 && ag > 0,
		domain.MarketBTTSNo:  hg == 0 || ag == 0,
	}

	return &domain.MatchEvent{
		EventID:     idhash.ComputeEventID(g.cfg.League, home, away, kickoff),
		League:      g.cfg.League,
		HomeTeam:    home,
		AwayTeam:    away,
		KickoffMs:   kickoff,
		Odds:        odds,
		Results:     results,
		CreatedAtMs: kickoff + settleDelayMs,
	}
}

// jitter perturbs a probability so quoted prices are noisy estimates,
// not oracles.
func (g *Generator) jitter(p float64) float64 {
	return p + (g.rng.Float64()-0.5)*0.06
}

// quote converts a hit probability to decimal odds with the house
// margin, rounded to board precision.
func quote(p float64) float64 {
	if p < 0.05 {
		p = 0.05
	} else if p > 0.95 {
		p = 0.95
	}
	return math.Round(100/(p*overround)) / 100
}

// matchProbabilities approximates 1X2 probabilities from the scoring
// rates. The draw share shrinks as the rate gap widens.
func matchProbabilities(homeRate, awayRate float64) (pHome, pDraw, pAway float64) {
	gap := math.Abs(homeRate - awayRate)
	pDraw = 0.28 - 0.08*gap
	if pDraw < 0.12 {
		pDraw = 0.12
	}
	rest := 1 - pDraw
	pHome = rest * homeRate / (homeRate + awayRate)
	pAway = rest - pHome
	return pHome, pDraw, pAway
}

// overProbability maps total expected goals to P(3+ goals) via the
// Poisson tail.
func overProbability(totalRate float64) float64 {
	// 1 - P(0) - P(1) - P(2) for Poisson(totalRate).
	p0 := math.Exp(-totalRate)
	p1 := p0 * totalRate
	p2 := p1 * totalRate / 2
	return 1 - p0 - p1 - p2
}

// bttsProbability is P(both sides score) for independent Poisson sides.
func bttsProbability(homeRate, awayRate float64) float64 {
	return (1 - math.Exp(-homeRate)) * (1 - math.Exp(-awayRate))
}

// poisson draws from Poisson(rate) by Knuth's product method. Rates
// here are small, so the loop is short.
func poisson(rng *rand.Rand, rate float64) int {
	limit := math.Exp(-rate)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}
