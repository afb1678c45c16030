package ingestion

import (
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// MergeEvents combines event batches into one deduplicated dataset in
// replay order. When the same event_id appears more than once, the copy
// with the newest created_at_ms wins. Input slices are not modified.
func MergeEvents(batches ...[]*domain.MatchEvent) []*domain.MatchEvent {
	byID := make(map[string]*domain.MatchEvent)
	for _, batch := range batches {
		for _, e := range batch {
			if e == nil {
				continue
			}
			prev, ok := byID[e.EventID]
			if !ok || e.CreatedAtMs > prev.CreatedAtMs {
				byID[e.EventID] = e
			}
		}
	}

	merged := make([]*domain.MatchEvent, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e)
	}
	SortEvents(merged)
	return merged
}

// SplitHoldout partitions ordered events into a training prefix and an
// evaluation suffix. The suffix holds the newest fraction of events, so
// evaluation always runs on data the policy never trained on. The
// fraction is clamped to [0, 1]; both returned slices view the input.
func SplitHoldout(events []*domain.MatchEvent, fraction float64) (train, holdout []*domain.MatchEvent) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	n := int(float64(len(events)) * fraction)
	cut := len(events) - n
	return events[:cut], events[cut:]
}
