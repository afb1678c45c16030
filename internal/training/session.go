package training

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/idhash"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/network"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/policy"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/progress"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/replay"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/reward"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// Window bounds the training dataset: events with kickoff inside
// [StartMs, EndMs] inclusive.
type Window struct {
	StartMs int64
	EndMs   int64
}

// Params configures one session run.
type Params struct {
	Window Window

	// Episodes and SaveInterval override the configured values when
	// positive; zero keeps the configuration.
	Episodes     int
	SaveInterval int

	// Resume seeds the session from a prior checkpoint. Nil starts
	// fresh. The checkpoint must match the configured network shape
	// and feature schema.
	Resume *domain.Checkpoint
}

// Deps wires the session to the outside world. Events and Checkpoints
// are required; the rest degrade to no-ops when nil.
type Deps struct {
	Events      ingestion.Provider
	Checkpoints storage.CheckpointStore
	Decisions   storage.DecisionLogStore // telemetry, best effort
	Broker      *progress.Broker         // live progress feed
	Logger      *logger.Logger
	Now         func() time.Time
}

// shaper is the reward surface the loop sees; satisfied by both the
// fixed and the adaptive shaper.
type shaper interface {
	Shape(o reward.Outcome, stats *domain.EpisodeStats) (float64, reward.Breakdown)
}

// Status is a point-in-time snapshot of a session, safe to read from
// any goroutine.
type Status struct {
	SessionID        string               `json:"session_id"`
	State            domain.TrainingState `json:"state"`
	Episode          int                  `json:"episode"` // episodes completed
	TotalEpisodes    int                  `json:"total_episodes"`
	MatchIndex       int                  `json:"match_index"` // position within the running episode
	Step             int64                `json:"step"`
	Epsilon          float64              `json:"epsilon"`
	BufferLen        int                  `json:"buffer_len"`
	WinRate          float64              `json:"win_rate"`
	ROI              float64              `json:"roi"`
	EntryRate        float64              `json:"entry_rate"`
	LastCheckpointID string               `json:"last_checkpoint_id,omitempty"`
	StartedAtMs      int64                `json:"started_at_ms,omitempty"`
}

// Result summarizes a finished run.
type Result struct {
	SessionID        string
	State            domain.TrainingState
	Episodes         int // completed
	Steps            int64
	Epsilon          float64
	LastCheckpointID string
}

// Session owns one training run: the networks, the replay buffer, the
// policy, and the loop that drives them over the event window. The run
// loop is single-goroutine; Pause, Resume, Stop, and Status may be
// called concurrently from others.
type Session struct {
	cfg    *config.Config
	params Params
	deps   Deps
	log    *logger.Logger
	now    func() time.Time

	// Learning machinery, owned by the Run goroutine.
	rng       *rand.Rand
	tracker   *blocks.Tracker
	extractor *feature.Extractor
	online    *network.Network
	target    *network.Network
	pol       *policy.Policy
	buffer    *replay.Buffer
	rewards   shaper
	adaptive  *reward.AdaptiveShaper // nil when the curriculum is disabled

	stats   *domain.EpisodeStats
	history []feature.Outcome

	sessionID     string
	step          int64
	episode       int
	epsilon       float64
	totalEpisodes int
	saveInterval  int

	lastCheckpointID string
	droppedSeen      int64 // broker drops already reported

	// Control plane. mu guards state, stopRequested, and snap; cond
	// wakes a paused loop.
	mu            sync.Mutex
	cond          *sync.Cond
	state         domain.TrainingState
	stopRequested bool
	snap          Status
}

// NewSession assembles a session from configuration. All randomness
// flows from the configured seed, so two sessions built from equal
// inputs make identical decisions. A resume checkpoint, when given,
// is validated and loaded here so a mismatch fails before any work.
func NewSession(cfg *config.Config, params Params, deps Deps) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("training: config is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("training: event provider is required")
	}
	if deps.Checkpoints == nil {
		return nil, fmt.Errorf("training: checkpoint store is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	rng := rand.New(rand.NewSource(cfg.Training.Seed))

	tracker := blocks.NewTracker(cfg.Blocks)
	extractor, err := feature.NewExtractor(cfg.Features, tracker)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	ncfg := cfg.Network
	ncfg.Inputs = extractor.Width()
	ncfg.Outputs = domain.ActionCount
	online, err := network.New(ncfg, rng)
	if err != nil {
		return nil, fmt.Errorf("build online network: %w", err)
	}
	target, err := network.New(ncfg, rng)
	if err != nil {
		return nil, fmt.Errorf("build target network: %w", err)
	}
	if err := target.SyncFrom(online); err != nil {
		return nil, fmt.Errorf("sync target network: %w", err)
	}

	buffer, err := replay.NewBuffer(cfg.Training.BufferCapacity)
	if err != nil {
		return nil, fmt.Errorf("build replay buffer: %w", err)
	}

	pol := policy.New(online, policy.Config{MinConfidence: cfg.Training.MinConfidence}, rng)

	s := &Session{
		cfg:           cfg,
		params:        params,
		deps:          deps,
		log:           deps.Logger,
		now:           deps.Now,
		rng:           rng,
		tracker:       tracker,
		extractor:     extractor,
		online:        online,
		target:        target,
		pol:           pol,
		buffer:        buffer,
		stats:         domain.NewEpisodeStats(cfg.Training.InitialBankroll),
		epsilon:       cfg.Training.EpsilonStart,
		totalEpisodes: cfg.Training.Episodes,
		saveInterval:  cfg.Training.SaveInterval,
		state:         domain.StateIdle,
	}
	s.cond = sync.NewCond(&s.mu)
	if params.Episodes > 0 {
		s.totalEpisodes = params.Episodes
	}
	if params.SaveInterval > 0 {
		s.saveInterval = params.SaveInterval
	}

	if cfg.Adaptive.Enabled {
		s.adaptive = reward.NewAdaptiveShaper(cfg.Reward, cfg.Adaptive)
		s.rewards = s.adaptive
	} else {
		s.rewards = reward.NewShaper(cfg.Reward)
	}

	s.sessionID = idhash.ComputeSessionID(s.now().UnixMilli(), cfg.Training.Seed)

	if params.Resume != nil {
		if err := s.restore(params.Resume); err != nil {
			return nil, err
		}
	}

	s.snap = Status{
		SessionID:        s.sessionID,
		State:            domain.StateIdle,
		Episode:          s.episode,
		TotalEpisodes:    s.totalEpisodes,
		Step:             s.step,
		Epsilon:          s.epsilon,
		LastCheckpointID: s.lastCheckpointID,
	}
	return s, nil
}

// SessionID returns the deterministic session identifier.
func (s *Session) SessionID() string {
	return s.sessionID
}

// Status returns a snapshot of the session. The snapshot is updated at
// event boundaries, so it trails the loop by at most one decision.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Pause suspends the loop at the next event boundary. Only a training
// session can be paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == domain.StateTraining:
		s.setStateLocked(domain.StatePaused)
		s.log.Info("training paused", logger.String("session_id", s.sessionID))
		return nil
	case s.state.IsTerminal():
		return ErrFinished
	default:
		return ErrNotTraining
	}
}

// Resume wakes a paused loop. Buffer, counters, and exploration state
// carry on exactly where Pause left them.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == domain.StatePaused:
		s.setStateLocked(domain.StateTraining)
		s.cond.Broadcast()
		s.log.Info("training resumed", logger.String("session_id", s.sessionID))
		return nil
	case s.state.IsTerminal():
		return ErrFinished
	default:
		return ErrNotPaused
	}
}

// Stop requests a graceful halt. The loop finishes the in-flight
// decision, persists a final checkpoint, and exits. Stopping a paused
// session works; stopping an idle or finished one is an error.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == domain.StateTraining || s.state == domain.StatePaused:
		s.stopRequested = true
		s.cond.Broadcast()
		s.log.Info("training stop requested", logger.String("session_id", s.sessionID))
		return nil
	case s.state.IsTerminal():
		return ErrFinished
	default:
		return ErrNotTraining
	}
}

// Run executes the training loop until it completes all episodes, a
// stop is requested, or the context is canceled. It is synchronous and
// must be called at most once.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	// A canceled context must also wake a paused loop.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-watchDone:
		}
	}()

	events, err := s.deps.Events.EventsByRange(ctx, s.params.Window.StartMs, s.params.Window.EndMs)
	if err != nil {
		s.finish(domain.StateStopped)
		return nil, fmt.Errorf("load training window: %w", err)
	}
	if len(events) == 0 {
		s.finish(domain.StateStopped)
		return nil, ErrNoEvents
	}

	s.log.Info("training session started",
		logger.String("session_id", s.sessionID),
		logger.Int("events", len(events)),
		logger.Int("episodes", s.totalEpisodes),
		logger.Int("start_episode", s.episode),
		logger.Float64("epsilon", s.epsilon),
		logger.Int("feature_width", s.extractor.Width()))

	total := s.totalEpisodes
	for ep := s.episode; ep < total; ep++ {
		halted, err := s.runEpisode(ctx, ep, events)
		if err != nil {
			s.finish(domain.StateStopped)
			return s.result(domain.StateStopped), err
		}
		if halted {
			s.finish(domain.StateStopped)
			s.saveFinalCheckpoint()
			s.log.Info("training stopped",
				logger.String("session_id", s.sessionID),
				logger.Int("episodes_completed", s.episode),
				logger.Int64("steps", s.step))
			return s.result(domain.StateStopped), ctx.Err()
		}

		s.episode = ep + 1
		s.decayEpsilon()
		observability.RecordEpisodeCompleted(s.episode)

		if si := s.saveInterval; si > 0 && s.episode%si == 0 && s.episode < total {
			s.saveCheckpoint(ctx)
		}
	}

	s.finish(domain.StateCompleted)
	s.saveFinalCheckpoint()
	s.log.Info("training completed",
		logger.String("session_id", s.sessionID),
		logger.Int("episodes", s.episode),
		logger.Int64("steps", s.step),
		logger.Float64("epsilon", s.epsilon))
	return s.result(domain.StateCompleted), nil
}

// begin moves idle to training; any other state rejects the run.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateIdle {
		return ErrAlreadyStarted
	}
	s.setStateLocked(domain.StateTraining)
	s.snap.StartedAtMs = s.now().UnixMilli()
	return nil
}

func (s *Session) finish(state domain.TrainingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
	s.updateSnapLocked(s.snap.MatchIndex)
}

// gate blocks while the session is paused and reports whether the loop
// should halt. It also refreshes the status snapshot, so callers see
// progress advance at event granularity.
func (s *Session) gate(ctx context.Context, matchIndex int) (halt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateSnapLocked(matchIndex)
	for s.state == domain.StatePaused && !s.stopRequested && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.stopRequested || ctx.Err() != nil
}

func (s *Session) setStateLocked(state domain.TrainingState) {
	s.state = state
	s.snap.State = state
}

// updateSnapLocked copies the loop-owned counters into the shared
// snapshot. Callers hold mu.
func (s *Session) updateSnapLocked(matchIndex int) {
	s.snap.Episode = s.episode
	s.snap.MatchIndex = matchIndex
	s.snap.Step = s.step
	s.snap.Epsilon = s.epsilon
	s.snap.BufferLen = s.buffer.Len()
	s.snap.WinRate = s.stats.WinRate()
	s.snap.ROI = s.stats.ROI()
	s.snap.EntryRate = s.stats.EntryRate()
	s.snap.LastCheckpointID = s.lastCheckpointID
}

func (s *Session) decayEpsilon() {
	s.epsilon *= s.cfg.Training.EpsilonDecay
	if s.epsilon < s.cfg.Training.EpsilonMin {
		s.epsilon = s.cfg.Training.EpsilonMin
	}
}

func (s *Session) result(state domain.TrainingState) *Result {
	return &Result{
		SessionID:        s.sessionID,
		State:            state,
		Episodes:         s.episode,
		Steps:            s.step,
		Epsilon:          s.epsilon,
		LastCheckpointID: s.lastCheckpointID,
	}
}

// saveFinalCheckpoint persists the terminal snapshot on its own
// deadline: the caller's context may already be canceled, and the
// final parameters are the whole point of the run.
func (s *Session) saveFinalCheckpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.saveCheckpoint(ctx)
}
