package training

import (
	"context"
	"fmt"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/idhash"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// buildCheckpoint snapshots everything a resume needs: both parameter
// sets, counters, exploration state, the feature schema, and the
// normalizer statistics.
func (s *Session) buildCheckpoint() *domain.Checkpoint {
	mean, variance, observations := s.extractor.Normalizer().Snapshot()
	createdAt := s.now().UnixMilli()

	cp := &domain.Checkpoint{
		SessionID:        s.sessionID,
		CreatedAtMs:      createdAt,
		Step:             s.step,
		Episode:          s.episode,
		Epsilon:          s.epsilon,
		InputWidth:       s.online.Inputs(),
		HiddenLayout:     s.online.HiddenLayout(),
		OutputWidth:      s.online.Outputs(),
		FeatureNames:     s.extractor.Names(),
		OnlineWeights:    s.online.SnapshotWeights(),
		TargetWeights:    s.target.SnapshotWeights(),
		NormMean:         mean,
		NormVar:          variance,
		NormObservations: observations,
	}
	cp.CheckpointID = idhash.ComputeCheckpointID(s.sessionID, s.step, createdAt)
	return cp
}

// saveCheckpoint persists a snapshot. Failures are logged, counted, and
// swallowed: losing one periodic checkpoint must not kill a run that
// took hours to get here.
func (s *Session) saveCheckpoint(ctx context.Context) {
	cp := s.buildCheckpoint()

	start := time.Now()
	err := s.deps.Checkpoints.Insert(ctx, cp)
	observability.RecordCheckpointWrite(time.Since(start).Seconds(), cp.CreatedAtMs, err)
	if err != nil {
		s.log.Error("checkpoint write failed",
			logger.String("session_id", s.sessionID),
			logger.String("checkpoint_id", cp.CheckpointID),
			logger.Int("episode", cp.Episode),
			logger.Error(err))
		return
	}

	s.mu.Lock()
	s.lastCheckpointID = cp.CheckpointID
	s.snap.LastCheckpointID = cp.CheckpointID
	s.mu.Unlock()

	s.log.Info("checkpoint saved",
		logger.String("session_id", s.sessionID),
		logger.String("checkpoint_id", cp.CheckpointID),
		logger.Int("episode", cp.Episode),
		logger.Int64("step", cp.Step))
}

// restore loads a checkpoint into a freshly built session. The
// checkpoint must have been produced by a network of the same shape
// over the same feature schema; anything else is ErrShapeMismatch.
func (s *Session) restore(cp *domain.Checkpoint) error {
	if !cp.SameShape(s.online.Inputs(), s.online.HiddenLayout(), s.online.Outputs()) {
		return fmt.Errorf("checkpoint %s: shape %dx%vx%d, network %dx%vx%d: %w",
			cp.CheckpointID,
			cp.InputWidth, cp.HiddenLayout, cp.OutputWidth,
			s.online.Inputs(), s.online.HiddenLayout(), s.online.Outputs(),
			ErrShapeMismatch)
	}
	if !sameNames(cp.FeatureNames, s.extractor.Names()) {
		return fmt.Errorf("checkpoint %s: feature schema differs: %w",
			cp.CheckpointID, ErrShapeMismatch)
	}

	if err := s.online.RestoreWeights(cp.OnlineWeights); err != nil {
		return fmt.Errorf("restore online weights: %w", err)
	}
	if err := s.target.RestoreWeights(cp.TargetWeights); err != nil {
		return fmt.Errorf("restore target weights: %w", err)
	}
	if err := s.extractor.Normalizer().Restore(cp.NormMean, cp.NormVar, cp.NormObservations); err != nil {
		return fmt.Errorf("restore normalizer: %w", err)
	}

	s.step = cp.Step
	s.episode = cp.Episode
	s.epsilon = cp.Epsilon
	s.lastCheckpointID = cp.CheckpointID

	s.log.Info("session restored from checkpoint",
		logger.String("session_id", s.sessionID),
		logger.String("checkpoint_id", cp.CheckpointID),
		logger.String("source_session_id", cp.SessionID),
		logger.Int("episode", cp.Episode),
		logger.Int64("step", cp.Step),
		logger.Float64("epsilon", cp.Epsilon))
	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
