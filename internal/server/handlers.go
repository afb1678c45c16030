package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/idhash"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/inference"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// resumeLatest in a start request loads the newest checkpoint across
// all sessions instead of a specific id.
const resumeLatest = "latest"

type errorResponse struct {
	Error string `json:"error"`
}

// startRequest carries the run parameters: the event window, optional
// episode and checkpoint-cadence overrides, and an optional checkpoint
// to resume from.
type startRequest struct {
	StartMs      int64  `json:"start_ms"`
	EndMs        int64  `json:"end_ms"`
	Episodes     int    `json:"episodes,omitempty"`
	SaveInterval int    `json:"save_interval,omitempty"`
	Resume       string `json:"resume,omitempty"` // "latest" or a checkpoint id
}

type statusResponse struct {
	training.Status
	LastError string `json:"last_error,omitempty"`
}

// predictRequest is one unsettled event to score.
type predictRequest struct {
	EventID   string             `json:"event_id,omitempty"`
	League    string             `json:"league,omitempty"`
	HomeTeam  string             `json:"home_team,omitempty"`
	AwayTeam  string             `json:"away_team,omitempty"`
	KickoffMs int64              `json:"kickoff_ms"`
	Odds      map[string]float64 `json:"odds"`
}

func (s *Server) handleStart(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if req.EndMs < req.StartMs {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "end_ms must not precede start_ms"})
	}

	params := training.Params{
		Window:       training.Window{StartMs: req.StartMs, EndMs: req.EndMs},
		Episodes:     req.Episodes,
		SaveInterval: req.SaveInterval,
	}

	if req.Resume != "" {
		cp, err := s.resolveResume(c, req.Resume)
		if err != nil {
			return s.commandError(c, err)
		}
		params.Resume = cp
	}

	session, err := s.deps.Manager.Start(params)
	if err != nil {
		return s.commandError(c, err)
	}

	s.log.Info("training start accepted",
		logger.String("session_id", session.SessionID()),
		logger.Int64("start_ms", req.StartMs),
		logger.Int64("end_ms", req.EndMs))
	return c.JSON(http.StatusAccepted, statusResponse{Status: session.Status()})
}

func (s *Server) resolveResume(c echo.Context, ref string) (*domain.Checkpoint, error) {
	ctx := c.Request().Context()
	if ref == resumeLatest {
		return s.deps.Checkpoints.GetLatestAny(ctx)
	}
	return s.deps.Checkpoints.GetByID(ctx, ref)
}

func (s *Server) handlePause(c echo.Context) error {
	if err := s.deps.Manager.Pause(); err != nil {
		return s.commandError(c, err)
	}
	return s.currentStatus(c)
}

func (s *Server) handleResume(c echo.Context) error {
	if err := s.deps.Manager.Resume(); err != nil {
		return s.commandError(c, err)
	}
	return s.currentStatus(c)
}

func (s *Server) handleStop(c echo.Context) error {
	if err := s.deps.Manager.Stop(); err != nil {
		return s.commandError(c, err)
	}
	return s.currentStatus(c)
}

func (s *Server) handleStatus(c echo.Context) error {
	return s.currentStatus(c)
}

func (s *Server) currentStatus(c echo.Context) error {
	st, _ := s.deps.Manager.Status()
	resp := statusResponse{Status: st}
	if err := s.deps.Manager.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// handlePredict scores one event against the newest checkpoint in the
// store. It never touches the live training networks.
func (s *Server) handlePredict(c echo.Context) error {
	var req predictRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if len(req.Odds) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "odds are required"})
	}

	cp, err := s.deps.Checkpoints.GetLatestAny(c.Request().Context())
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no checkpoint available yet"})
	}
	if err != nil {
		s.log.Error("load latest checkpoint", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checkpoint lookup failed"})
	}

	pred, err := s.predictorFor(cp)
	if err != nil {
		if errors.Is(err, inference.ErrIncompatibleCheckpoint) {
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		}
		s.log.Error("build predictor", logger.String("checkpoint_id", cp.CheckpointID), logger.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "predictor unavailable"})
	}

	ev := &domain.MatchEvent{
		EventID:   req.EventID,
		League:    req.League,
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		KickoffMs: req.KickoffMs,
		Odds:      req.Odds,
	}
	if ev.EventID == "" {
		ev.EventID = idhash.ComputeEventID(ev.League, ev.HomeTeam, ev.AwayTeam, ev.KickoffMs)
	}

	return c.JSON(http.StatusOK, pred.Predict(ev))
}

// predictorFor returns the cached predictor when it already serves the
// given checkpoint, otherwise rebuilds it.
func (s *Server) predictorFor(cp *domain.Checkpoint) (*inference.Predictor, error) {
	s.predMu.Lock()
	defer s.predMu.Unlock()

	if s.pred != nil && s.pred.CheckpointID() == cp.CheckpointID {
		return s.pred, nil
	}
	pred, err := inference.FromCheckpoint(s.cfg, cp)
	if err != nil {
		return nil, err
	}
	s.pred = pred
	s.log.Info("predictor loaded",
		logger.String("checkpoint_id", cp.CheckpointID),
		logger.String("session_id", cp.SessionID),
		logger.Int64("step", cp.Step))
	return pred, nil
}

// commandError translates session and storage errors into status codes:
// lifecycle misuse maps to 409, unknown resume targets to 404, and an
// incompatible resume checkpoint to 400.
func (s *Server) commandError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, training.ErrAlreadyStarted),
		errors.Is(err, training.ErrNoSession),
		errors.Is(err, training.ErrNotTraining),
		errors.Is(err, training.ErrNotPaused),
		errors.Is(err, training.ErrFinished):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, training.ErrShapeMismatch):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "checkpoint not found"})
	default:
		s.log.Error("training command failed", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
