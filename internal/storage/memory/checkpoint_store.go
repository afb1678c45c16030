package memory

import (
	"context"
	"sync"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Checkpoint // keyed by checkpoint_id
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]*domain.Checkpoint),
	}
}

// Insert adds a new checkpoint. Returns ErrDuplicateKey if checkpoint_id exists.
func (s *CheckpointStore) Insert(_ context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.CheckpointID == "" || cp.SessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[cp.CheckpointID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[cp.CheckpointID] = cloneCheckpoint(cp)
	return nil
}

// GetByID retrieves a checkpoint by its ID. Returns ErrNotFound if not exists.
func (s *CheckpointStore) GetByID(_ context.Context, checkpointID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, exists := s.data[checkpointID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneCheckpoint(cp), nil
}

// GetLatest retrieves the most recent checkpoint for a session, by
// created_at_ms with step as tie-breaker. Returns ErrNotFound if the
// session has no checkpoints.
func (s *CheckpointStore) GetLatest(_ context.Context, sessionID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Checkpoint
	for _, cp := range s.data {
		if cp.SessionID != sessionID {
			continue
		}
		if latest == nil || newerCheckpoint(cp, latest) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return cloneCheckpoint(latest), nil
}

// GetLatestAny retrieves the most recent checkpoint across all sessions.
// Returns ErrNotFound if the store is empty.
func (s *CheckpointStore) GetLatestAny(_ context.Context) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Checkpoint
	for _, cp := range s.data {
		if latest == nil || newerCheckpoint(cp, latest) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return cloneCheckpoint(latest), nil
}

// newerCheckpoint reports whether a should replace b as the latest.
func newerCheckpoint(a, b *domain.Checkpoint) bool {
	if a.CreatedAtMs != b.CreatedAtMs {
		return a.CreatedAtMs > b.CreatedAtMs
	}
	return a.Step > b.Step
}

// cloneCheckpoint copies a checkpoint including its weight tensors and
// normalization slices.
func cloneCheckpoint(cp *domain.Checkpoint) *domain.Checkpoint {
	cpCopy := *cp
	cpCopy.HiddenLayout = cloneInts(cp.HiddenLayout)
	cpCopy.FeatureNames = cloneStrings(cp.FeatureNames)
	cpCopy.OnlineWeights = cloneWeights(cp.OnlineWeights)
	cpCopy.TargetWeights = cloneWeights(cp.TargetWeights)
	cpCopy.NormMean = cloneFloats(cp.NormMean)
	cpCopy.NormVar = cloneFloats(cp.NormVar)
	return &cpCopy
}

func cloneInts(src []int) []int {
	if src == nil {
		return nil
	}
	dst := make([]int, len(src))
	copy(dst, src)
	return dst
}

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}

func cloneWeights(src [][][]float64) [][][]float64 {
	if src == nil {
		return nil
	}
	dst := make([][][]float64, len(src))
	for i, layer := range src {
		dst[i] = make([][]float64, len(layer))
		for j, neuron := range layer {
			dst[i][j] = make([]float64, len(neuron))
			copy(dst[i][j], neuron)
		}
	}
	return dst
}

// Verify interface compliance at compile time.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
