package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// DecisionLogStore is an in-memory implementation of storage.DecisionLogStore.
type DecisionLogStore struct {
	mu   sync.RWMutex
	data []*domain.DecisionRecord
}

// NewDecisionLogStore creates a new in-memory decision log store.
func NewDecisionLogStore() *DecisionLogStore {
	return &DecisionLogStore{}
}

// InsertBulk appends a batch of decision records.
func (s *DecisionLogStore) InsertBulk(_ context.Context, records []*domain.DecisionRecord) error {
	for _, r := range records {
		if r == nil || r.SessionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		s.data = append(s.data, &recordCopy)
	}
	return nil
}

// GetBySession retrieves a session's records ordered by decided_at_ms ASC.
func (s *DecisionLogStore) GetBySession(_ context.Context, sessionID string) ([]*domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecisionRecord
	for _, r := range s.data {
		if r.SessionID == sessionID {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DecidedAtMs != result[j].DecidedAtMs {
			return result[i].DecidedAtMs < result[j].DecidedAtMs
		}
		return result[i].EventID < result[j].EventID
	})
	return result, nil
}

// CountBySession returns how many records a session has.
func (s *DecisionLogStore) CountBySession(_ context.Context, sessionID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, r := range s.data {
		if r.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

// Verify interface compliance at compile time.
var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)
