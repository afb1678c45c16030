package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
//
// The full checkpoint (weight tensors, normalization state, feature names)
// is stored as a JSONB payload; the columns used for lookups are kept flat.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Insert adds a new checkpoint. Returns ErrDuplicateKey if checkpoint_id exists.
func (s *CheckpointStore) Insert(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.CheckpointID == "" || cp.SessionID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint payload: %w", err)
	}

	query := `
		INSERT INTO checkpoints (
			checkpoint_id, session_id, step, episode, created_at_ms, payload
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		cp.CheckpointID,
		cp.SessionID,
		cp.Step,
		cp.Episode,
		cp.CreatedAtMs,
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetByID retrieves a checkpoint by its ID. Returns ErrNotFound if not exists.
func (s *CheckpointStore) GetByID(ctx context.Context, checkpointID string) (*domain.Checkpoint, error) {
	query := `
		SELECT payload
		FROM checkpoints
		WHERE checkpoint_id = $1
	`

	row := s.pool.QueryRow(ctx, query, checkpointID)
	cp, err := scanCheckpoint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint by id: %w", err)
	}
	return cp, nil
}

// GetLatest retrieves the newest checkpoint of a session, by created_at_ms
// with step as tie-breaker. Returns ErrNotFound when the session has none.
func (s *CheckpointStore) GetLatest(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	query := `
		SELECT payload
		FROM checkpoints
		WHERE session_id = $1
		ORDER BY created_at_ms DESC, step DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, sessionID)
	cp, err := scanCheckpoint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest checkpoint: %w", err)
	}
	return cp, nil
}

// GetLatestAny retrieves the newest checkpoint across all sessions.
// Returns ErrNotFound when the store is empty.
func (s *CheckpointStore) GetLatestAny(ctx context.Context) (*domain.Checkpoint, error) {
	query := `
		SELECT payload
		FROM checkpoints
		ORDER BY created_at_ms DESC, step DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query)
	cp, err := scanCheckpoint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest checkpoint any: %w", err)
	}
	return cp, nil
}

// scanCheckpoint scans a payload row and decodes it.
//
// A row that exists but fails to decode is a corruption error, deliberately
// distinct from ErrNotFound so callers can refuse to resume from it.
func scanCheckpoint(row pgx.Row) (*domain.Checkpoint, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint payload: %w", err)
	}
	return &cp, nil
}
