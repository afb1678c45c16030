package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/policy"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/replay"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/reward"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// pending is a transition waiting for its next state. A decision on
// event i cannot be stored until event i+1 is extracted; the last
// decision of an episode closes with a terminal zero vector.
type pending struct {
	state  []float64
	action domain.Action
	reward float64
}

// runEpisode replays the full event sequence once. It returns
// halted=true when a stop or cancellation interrupted the episode;
// an interrupted episode does not count as completed.
func (s *Session) runEpisode(ctx context.Context, ep int, events []*domain.MatchEvent) (halted bool, err error) {
	if s.adaptive != nil {
		before := s.adaptive.Phase()
		s.adaptive.SetProgress(float64(ep) / float64(s.totalEpisodes))
		if phase := s.adaptive.Phase(); phase != before {
			s.log.Info("reward curriculum advanced",
				logger.String("session_id", s.sessionID),
				logger.String("phase", string(phase)),
				logger.Int("episode", ep+1))
		}
	}

	// Episodes replay the same events, so per-episode state starts
	// clean each pass; only the networks, the normalizer, and the
	// replay buffer persist across episodes.
	s.tracker.Reset()
	s.stats.Reset()
	s.history = s.history[:0]
	s.pol.SetEpsilon(s.epsilon)

	var open *pending
	records := make([]*domain.DecisionRecord, 0, len(events))

	for i, ev := range events {
		if s.gate(ctx, i) {
			s.flushTelemetry(records)
			return true, nil
		}

		state := s.extractor.Extract(ev, s.historyContext())

		if open != nil {
			s.buffer.Push(replay.Transition{
				State:     open.state,
				Action:    int(open.action),
				Reward:    open.reward,
				NextState: state,
			})
			if err := s.learn(); err != nil {
				return false, err
			}
		}

		d := s.pol.Decide(state)
		outcome := s.settle(ev, d)
		r, _ := s.rewards.Shape(outcome, s.stats)

		open = &pending{state: state, action: d.Action, reward: r}
		records = append(records, s.decisionRecord(ev, ep, i, d, outcome, r))
		observability.RecordDecision(d.Action.Name(), outcomeClass(d.Action, outcome.Won),
			d.Explored, d.Gated, d.Confidence, r)

		if (i+1)%s.cfg.Training.ProgressEvery == 0 {
			s.publish(ep, i+1)
		}
	}

	if open != nil {
		s.buffer.Push(replay.Transition{
			State:     open.state,
			Action:    int(open.action),
			Reward:    open.reward,
			NextState: make([]float64, s.extractor.Width()),
			Terminal:  true,
		})
		if err := s.learn(); err != nil {
			return false, err
		}
	}

	s.flushTelemetry(records)
	s.publish(ep, len(events))

	s.log.Debug("episode finished",
		logger.String("session_id", s.sessionID),
		logger.Int("episode", ep+1),
		logger.Float64("win_rate", s.stats.WinRate()),
		logger.Float64("roi", s.stats.ROI()),
		logger.Float64("entry_rate", s.stats.EntryRate()),
		logger.Float64("bankroll", s.stats.Bankroll))
	return false, nil
}

// settle applies the decision to the event's recorded settlement and
// folds the result into the episode state: stats, block tracker, and
// the rolling decision history.
func (s *Session) settle(ev *domain.MatchEvent, d policy.Decision) reward.Outcome {
	market := s.cfg.Training.TargetMarket
	won, _ := ev.Result(market) // missing settlement counts as a miss
	price := ev.Price(market)

	if d.Action.IsEntry() {
		s.stats.RecordEntry(d.Action.StakeUnits(), price, won)
		s.tracker.Record(ev.KickoffMs, won)
		s.pushHistory(feature.Outcome{Entered: true, Won: won})
	} else {
		s.stats.RecordSkip()
		s.pushHistory(feature.Outcome{Entered: false})
	}

	return reward.Outcome{
		Action:     d.Action,
		Confidence: d.Confidence,
		Price:      price,
		Won:        won,
	}
}

func (s *Session) pushHistory(o feature.Outcome) {
	s.history = append(s.history, o)
	if w := s.cfg.Training.HistoryWindow; len(s.history) > w {
		s.history = s.history[len(s.history)-w:]
	}
}

func (s *Session) historyContext() *feature.History {
	return &feature.History{
		Outcomes:      s.history,
		BankrollRatio: s.stats.NormalizedBankroll(),
	}
}

// learn draws one batch and applies a Double-Q update: the online
// network picks the best next action, the target network prices it.
// Too few stored transitions is not an error; the step is skipped.
func (s *Session) learn() error {
	batch, err := s.buffer.Sample(s.rng, s.cfg.Training.BatchSize)
	if errors.Is(err, replay.ErrInsufficientData) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sample replay buffer: %w", err)
	}

	inputs := make([][]float64, len(batch))
	responses := make([][]float64, len(batch))
	for i, tr := range batch {
		response := append([]float64(nil), s.online.Evaluate(tr.State)...)

		y := tr.Reward
		if !tr.Terminal {
			next := s.online.Evaluate(tr.NextState)
			y += s.cfg.Training.Gamma * s.target.Evaluate(tr.NextState)[argmax(next)]
		}
		response[tr.Action] = y

		inputs[i] = tr.State
		responses[i] = response
	}

	if err := s.online.FitBatch(inputs, responses); err != nil {
		return fmt.Errorf("fit batch: %w", err)
	}
	s.step++
	observability.RecordGradientStep()

	if s.step%int64(s.cfg.Training.TargetSyncInterval) == 0 {
		if err := s.target.SyncFrom(s.online); err != nil {
			return fmt.Errorf("sync target network: %w", err)
		}
		observability.RecordTargetSync()
		s.log.Debug("target network synced",
			logger.String("session_id", s.sessionID),
			logger.Int64("step", s.step))
	}

	observability.UpdateTrainingGauges(s.epsilon, s.buffer.Len())
	return nil
}

func (s *Session) decisionRecord(ev *domain.MatchEvent, ep, idx int, d policy.Decision, o reward.Outcome, r float64) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		SessionID:   s.sessionID,
		EventID:     ev.EventID,
		DecidedAtMs: s.now().UnixMilli(),
		Episode:     ep,
		MatchIndex:  idx,
		Action:      d.Action.Name(),
		Confidence:  d.Confidence,
		Explored:    d.Explored,
		Gated:       d.Gated,
		Price:       o.Price,
		Outcome:     outcomeClass(d.Action, o.Won),
		Reward:      r,
		Epsilon:     s.epsilon,
	}
}

// flushTelemetry writes the episode's decision log. Telemetry is best
// effort: a failed write is logged and training continues.
func (s *Session) flushTelemetry(records []*domain.DecisionRecord) {
	if s.deps.Decisions == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.deps.Decisions.InsertBulk(ctx, records); err != nil {
		s.log.Warn("decision log write failed",
			logger.String("session_id", s.sessionID),
			logger.Int("records", len(records)),
			logger.Error(err))
	}
}

func (s *Session) publish(ep, matchIndex int) {
	if s.deps.Broker == nil {
		return
	}
	s.deps.Broker.Publish(domain.ProgressUpdate{
		SessionID:   s.sessionID,
		Episode:     ep,
		MatchIndex:  matchIndex,
		Epsilon:     s.epsilon,
		WinRate:     s.stats.WinRate(),
		ROI:         s.stats.ROI(),
		EntryRate:   s.stats.EntryRate(),
		TimestampMs: s.now().UnixMilli(),
	})
	observability.RecordProgressPublished()

	if d := s.deps.Broker.Dropped(); d > s.droppedSeen {
		observability.RecordProgressDropped(d - s.droppedSeen)
		s.droppedSeen = d
	}
}

func outcomeClass(a domain.Action, won bool) string {
	switch {
	case !a.IsEntry():
		return domain.OutcomeSkip
	case won:
		return domain.OutcomeGreen
	default:
		return domain.OutcomeRed
	}
}

// argmax returns the index of the largest value, ties to the lowest
// index.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
