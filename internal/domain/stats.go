package domain

// EpisodeStats accumulates decision outcomes over one training episode.
// It backs the reward shaper's performance bands and the progress feed.
type EpisodeStats struct {
	Decisions int // all decisions, entries and skips
	Skips     int
	Entries   int // bets placed
	Greens    int // winning bets
	Reds      int // losing bets

	TotalStaked float64 // sum of stakes across entries
	TotalReturn float64 // stake * price summed over greens

	Streak          int     // >0 consecutive greens, <0 consecutive reds
	Bankroll        float64 // running balance in stake units
	InitialBankroll float64
}

// NewEpisodeStats returns stats with the given starting bankroll.
func NewEpisodeStats(bankroll float64) *EpisodeStats {
	return &EpisodeStats{Bankroll: bankroll, InitialBankroll: bankroll}
}

// RecordSkip counts a decision that placed no bet.
func (s *EpisodeStats) RecordSkip() {
	s.Decisions++
	s.Skips++
}

// RecordEntry counts a settled bet at the given stake and decimal price.
func (s *EpisodeStats) RecordEntry(stake, price float64, won bool) {
	s.Decisions++
	s.Entries++
	s.TotalStaked += stake
	if won {
		s.Greens++
		s.TotalReturn += stake * price
		s.Bankroll += stake * (price - 1)
		if s.Streak > 0 {
			s.Streak++
		} else {
			s.Streak = 1
		}
		return
	}
	s.Reds++
	s.Bankroll -= stake
	if s.Streak < 0 {
		s.Streak--
	} else {
		s.Streak = -1
	}
}

// WinRate returns greens / entries, or 0 when nothing was bet.
func (s *EpisodeStats) WinRate() float64 {
	if s.Entries == 0 {
		return 0
	}
	return float64(s.Greens) / float64(s.Entries)
}

// EntryRate returns entries / decisions, or 0 when nothing was decided.
func (s *EpisodeStats) EntryRate() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Entries) / float64(s.Decisions)
}

// NetProfit returns total return minus total staked.
func (s *EpisodeStats) NetProfit() float64 {
	return s.TotalReturn - s.TotalStaked
}

// ROI returns net profit over total staked, or 0 when nothing was staked.
func (s *EpisodeStats) ROI() float64 {
	if s.TotalStaked == 0 {
		return 0
	}
	return s.NetProfit() / s.TotalStaked
}

// NormalizedBankroll returns the bankroll as a fraction of its starting
// value, or 1 when no starting value was set.
func (s *EpisodeStats) NormalizedBankroll() float64 {
	if s.InitialBankroll == 0 {
		return 1
	}
	return s.Bankroll / s.InitialBankroll
}

// Reset clears all counters and restores the starting bankroll.
func (s *EpisodeStats) Reset() {
	bankroll := s.InitialBankroll
	*s = EpisodeStats{Bankroll: bankroll, InitialBankroll: bankroll}
}
