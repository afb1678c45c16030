package clickhouse

import (
	"context"
	"fmt"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// DecisionLogStore implements storage.DecisionLogStore using ClickHouse.
//
// The decision log is append-only telemetry. MergeTree enforces no
// uniqueness, and the writer (one training session per session_id) never
// re-emits a decision, so no duplicate checks run on the insert path.
type DecisionLogStore struct {
	conn *Conn
}

// NewDecisionLogStore creates a new DecisionLogStore.
func NewDecisionLogStore(conn *Conn) *DecisionLogStore {
	return &DecisionLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)

// InsertBulk appends a batch of decision records.
func (s *DecisionLogStore) InsertBulk(ctx context.Context, records []*domain.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.SessionID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_log (
			session_id, event_id, decided_at_ms, episode, match_index,
			action, confidence, explored, gated, price, outcome, reward, epsilon
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.SessionID, r.EventID, uint64(r.DecidedAtMs),
			uint32(r.Episode), uint32(r.MatchIndex),
			r.Action, r.Confidence, r.Explored, r.Gated,
			r.Price, r.Outcome, r.Reward, r.Epsilon,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySession retrieves a session's records ordered by decided_at_ms ASC.
func (s *DecisionLogStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.DecisionRecord, error) {
	query := `
		SELECT session_id, event_id, decided_at_ms, episode, match_index,
		       action, confidence, explored, gated, price, outcome, reward, epsilon
		FROM decision_log
		WHERE session_id = ?
		ORDER BY decided_at_ms ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session: %w", err)
	}
	defer rows.Close()

	return scanDecisionRecords(rows)
}

// CountBySession returns how many records a session has.
func (s *DecisionLogStore) CountBySession(ctx context.Context, sessionID string) (uint64, error) {
	query := `
		SELECT count(*) FROM decision_log
		WHERE session_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by session: %w", err)
	}
	return count, nil
}

// chRows abstracts driver.Rows for scanning helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDecisionRecords scans multiple rows into a slice.
func scanDecisionRecords(rows chRows) ([]*domain.DecisionRecord, error) {
	var records []*domain.DecisionRecord

	for rows.Next() {
		var r domain.DecisionRecord
		var decidedAtMs uint64
		var episode, matchIndex uint32

		err := rows.Scan(
			&r.SessionID, &r.EventID, &decidedAtMs, &episode, &matchIndex,
			&r.Action, &r.Confidence, &r.Explored, &r.Gated,
			&r.Price, &r.Outcome, &r.Reward, &r.Epsilon,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision record row: %w", err)
		}

		r.DecidedAtMs = int64(decidedAtMs)
		r.Episode = int(episode)
		r.MatchIndex = int(matchIndex)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision record rows: %w", err)
	}

	return records, nil
}
