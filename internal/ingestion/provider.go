package ingestion

import (
	"context"
	"fmt"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// Provider supplies settled match events in deterministic replay order.
type Provider interface {
	// EventsByRange returns events with kickoff within [start, end]
	// (inclusive), ordered by (kickoff_ms, event_id) ASC. An empty range
	// yields zero events and no error.
	EventsByRange(ctx context.Context, start, end int64) ([]*domain.MatchEvent, error)
}

// StoreProvider reads events from an EventStore, optionally filtered to a
// single league.
type StoreProvider struct {
	store  storage.EventStore
	league string
}

// NewStoreProvider creates a provider over all leagues.
func NewStoreProvider(store storage.EventStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// NewLeagueProvider creates a provider restricted to one league.
func NewLeagueProvider(store storage.EventStore, league string) *StoreProvider {
	return &StoreProvider{store: store, league: league}
}

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// EventsByRange fetches events and verifies the store honored the
// ordering contract.
func (p *StoreProvider) EventsByRange(ctx context.Context, start, end int64) ([]*domain.MatchEvent, error) {
	if start > end {
		return nil, nil
	}

	var (
		events []*domain.MatchEvent
		err    error
	)
	if p.league != "" {
		events, err = p.store.GetByLeague(ctx, p.league, start, end)
	} else {
		events, err = p.store.GetByTimeRange(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	if err := ValidateEventOrdering(events); err != nil {
		return nil, fmt.Errorf("event store returned unordered events: %w", err)
	}

	return events, nil
}
