package domain

// MatchEvent represents one settled virtual football match with its
// pre-match odds and per-market results.
// Corresponds to match_events table in PostgreSQL.
type MatchEvent struct {
	EventID     string             // PRIMARY KEY, deterministic hash
	League      string             // virtual league identifier
	HomeTeam    string             // home side
	AwayTeam    string             // away side
	KickoffMs   int64              // kickoff timestamp, Unix ms
	Odds        map[string]float64 // decimal odds per market, >= 1.0 when well-formed
	Results     map[string]bool    // per-market settlement, true = market hit
	CreatedAtMs int64              // record creation timestamp (ms)
}

// Market identifiers as they appear in Odds and Results keys.
const (
	MarketHome    = "home"
	MarketDraw    = "draw"
	MarketAway    = "away"
	MarketOver25  = "over_2_5"
	MarketUnder25 = "under_2_5"
	MarketBTTSYes = "btts_yes"
	MarketBTTSNo  = "btts_no"
)

// DefaultMarkets is the canonical market ordering used when no explicit
// schema is configured. Order matters: feature positions derive from it.
var DefaultMarkets = []string{
	MarketHome,
	MarketDraw,
	MarketAway,
	MarketOver25,
	MarketUnder25,
	MarketBTTSYes,
	MarketBTTSNo,
}

// ValidMarket reports whether a market identifier is one of the known
// markets.
func ValidMarket(market string) bool {
	for _, m := range DefaultMarkets {
		if m == market {
			return true
		}
	}
	return false
}

// Price returns the decimal odds for a market, or 0 when the market is
// absent from the event.
func (e *MatchEvent) Price(market string) float64 {
	if e.Odds == nil {
		return 0
	}
	return e.Odds[market]
}

// Result reports whether the market settled green. The second return is
// false when the event carries no settlement for the market.
func (e *MatchEvent) Result(market string) (won bool, ok bool) {
	if e.Results == nil {
		return false, false
	}
	won, ok = e.Results[market]
	return won, ok
}

// Outcome classes for a settled bet.
const (
	OutcomeGreen = "GREEN" // bet market hit
	OutcomeRed   = "RED"   // bet market missed
	OutcomeSkip  = "SKIP"  // no bet placed
)
