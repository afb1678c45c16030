package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MatchEvent // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.MatchEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.MatchEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.EventID] = cloneEvent(e)
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate everything before touching the map.
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if seen[e.EventID] {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = true
	}

	// Second pass: insert copies.
	for _, e := range events {
		s.data[e.EventID] = cloneEvent(e)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(_ context.Context, eventID string) (*domain.MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneEvent(e), nil
}

// GetByTimeRange retrieves events with kickoff within [start, end] (inclusive),
// ordered by kickoff_ms ASC.
func (s *EventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MatchEvent
	for _, e := range s.data {
		if e.KickoffMs >= start && e.KickoffMs <= end {
			result = append(result, cloneEvent(e))
		}
	}
	sortEvents(result)
	return result, nil
}

// GetByLeague retrieves one league's events with kickoff within [start, end]
// (inclusive), ordered by kickoff_ms ASC.
func (s *EventStore) GetByLeague(_ context.Context, league string, start, end int64) ([]*domain.MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MatchEvent
	for _, e := range s.data {
		if e.League == league && e.KickoffMs >= start && e.KickoffMs <= end {
			result = append(result, cloneEvent(e))
		}
	}
	sortEvents(result)
	return result, nil
}

// CountByTimeRange returns how many events have kickoff within [start, end].
func (s *EventStore) CountByTimeRange(_ context.Context, start, end int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.data {
		if e.KickoffMs >= start && e.KickoffMs <= end {
			count++
		}
	}
	return count, nil
}

// sortEvents orders by kickoff_ms ASC with event_id as tie-breaker, so
// replays see a stable order.
func sortEvents(events []*domain.MatchEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].KickoffMs != events[j].KickoffMs {
			return events[i].KickoffMs < events[j].KickoffMs
		}
		return events[i].EventID < events[j].EventID
	})
}

// cloneEvent copies an event including its odds and results maps.
func cloneEvent(e *domain.MatchEvent) *domain.MatchEvent {
	eventCopy := *e
	if e.Odds != nil {
		eventCopy.Odds = make(map[string]float64, len(e.Odds))
		for k, v := range e.Odds {
			eventCopy.Odds[k] = v
		}
	}
	if e.Results != nil {
		eventCopy.Results = make(map[string]bool, len(e.Results))
		for k, v := range e.Results {
			eventCopy.Results[k] = v
		}
	}
	return &eventCopy
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
