package storage

import (
	"context"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// EventStore provides access to match_events storage.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.MatchEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.MatchEvent) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.MatchEvent, error)

	// GetByTimeRange retrieves events with kickoff within [start, end] (inclusive),
	// ordered by kickoff_ms ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MatchEvent, error)

	// GetByLeague retrieves one league's events with kickoff within [start, end]
	// (inclusive), ordered by kickoff_ms ASC.
	GetByLeague(ctx context.Context, league string, start, end int64) ([]*domain.MatchEvent, error)

	// CountByTimeRange returns how many events have kickoff within [start, end].
	CountByTimeRange(ctx context.Context, start, end int64) (int64, error)
}

// CheckpointStore provides access to checkpoints storage.
type CheckpointStore interface {
	// Insert adds a new checkpoint. Returns ErrDuplicateKey if checkpoint_id exists.
	Insert(ctx context.Context, cp *domain.Checkpoint) error

	// GetByID retrieves a checkpoint by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, checkpointID string) (*domain.Checkpoint, error)

	// GetLatest retrieves the newest checkpoint of a session.
	// Returns ErrNotFound when the session has none.
	GetLatest(ctx context.Context, sessionID string) (*domain.Checkpoint, error)

	// GetLatestAny retrieves the newest checkpoint across all sessions.
	// Returns ErrNotFound when the store is empty.
	GetLatestAny(ctx context.Context) (*domain.Checkpoint, error)
}

// DecisionLogStore provides access to decision_log telemetry storage.
type DecisionLogStore interface {
	// InsertBulk appends a batch of decision records.
	InsertBulk(ctx context.Context, records []*domain.DecisionRecord) error

	// GetBySession retrieves a session's records ordered by decided_at_ms ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.DecisionRecord, error)

	// CountBySession returns how many records a session has.
	CountBySession(ctx context.Context, sessionID string) (uint64, error)
}
