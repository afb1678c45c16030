package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.MatchEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO match_events (
			event_id, league, home_team, away_team, kickoff_ms, odds, results
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EventID,
		e.League,
		e.HomeTeam,
		e.AwayTeam,
		e.KickoffMs,
		e.Odds,
		e.Results,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO match_events (
			event_id, league, home_team, away_team, kickoff_ms, odds, results
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.EventID,
			e.League,
			e.HomeTeam,
			e.AwayTeam,
			e.KickoffMs,
			e.Odds,
			e.Results,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.MatchEvent, error) {
	query := `
		SELECT event_id, league, home_team, away_team, kickoff_ms, odds, results, created_at_ms
		FROM match_events
		WHERE event_id = $1
	`

	row := s.pool.QueryRow(ctx, query, eventID)
	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return e, nil
}

// GetByTimeRange retrieves events with kickoff within [start, end] (inclusive),
// ordered by kickoff_ms ASC.
func (s *EventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MatchEvent, error) {
	query := `
		SELECT event_id, league, home_team, away_team, kickoff_ms, odds, results, created_at_ms
		FROM match_events
		WHERE kickoff_ms >= $1 AND kickoff_ms <= $2
		ORDER BY kickoff_ms ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByLeague retrieves one league's events with kickoff within [start, end]
// (inclusive), ordered by kickoff_ms ASC.
func (s *EventStore) GetByLeague(ctx context.Context, league string, start, end int64) ([]*domain.MatchEvent, error) {
	query := `
		SELECT event_id, league, home_team, away_team, kickoff_ms, odds, results, created_at_ms
		FROM match_events
		WHERE league = $1 AND kickoff_ms >= $2 AND kickoff_ms <= $3
		ORDER BY kickoff_ms ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, league, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by league: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByTimeRange returns how many events have kickoff within [start, end].
func (s *EventStore) CountByTimeRange(ctx context.Context, start, end int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM match_events
		WHERE kickoff_ms >= $1 AND kickoff_ms <= $2
	`

	var count int64
	err := s.pool.QueryRow(ctx, query, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events by time range: %w", err)
	}
	return count, nil
}

// scanEvent scans a single row into a MatchEvent.
func scanEvent(row pgx.Row) (*domain.MatchEvent, error) {
	var e domain.MatchEvent

	err := row.Scan(
		&e.EventID,
		&e.League,
		&e.HomeTeam,
		&e.AwayTeam,
		&e.KickoffMs,
		&e.Odds,
		&e.Results,
		&e.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// scanEvents scans multiple rows into a slice of MatchEvent.
func scanEvents(rows pgx.Rows) ([]*domain.MatchEvent, error) {
	var events []*domain.MatchEvent

	for rows.Next() {
		var e domain.MatchEvent

		err := rows.Scan(
			&e.EventID,
			&e.League,
			&e.HomeTeam,
			&e.AwayTeam,
			&e.KickoffMs,
			&e.Odds,
			&e.Results,
			&e.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
