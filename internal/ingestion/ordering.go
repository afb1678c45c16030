package ingestion

import (
	"errors"
	"sort"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortEvents orders events by (kickoff_ms ASC, event_id ASC). This is the
// replay order: training must see the same sequence on every run.
func SortEvents(events []*domain.MatchEvent) {
	sort.Slice(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// ValidateEventOrdering checks that events are strictly increasing in
// (kickoff_ms, event_id). Returns ErrInvalidOrdering if not.
func ValidateEventOrdering(events []*domain.MatchEvent) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (kickoff_ms ASC, event_id ASC)
func compareEvents(a, b *domain.MatchEvent) int {
	if a.KickoffMs != b.KickoffMs {
		if a.KickoffMs < b.KickoffMs {
			return -1
		}
		return 1
	}
	if a.EventID != b.EventID {
		if a.EventID < b.EventID {
			return -1
		}
		return 1
	}
	return 0
}
