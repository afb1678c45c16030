// Package server exposes the training control surface over HTTP:
// lifecycle commands and status for the single training session,
// single-event prediction from the latest checkpoint, a websocket
// progress stream, Prometheus metrics, and a health probe.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/inference"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/observability"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/progress"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// Deps wires the handlers to the rest of the system. Manager and
// Checkpoints are required; Broker may be nil, which disables the
// progress stream.
type Deps struct {
	Manager     *training.Manager
	Checkpoints storage.CheckpointStore
	Broker      *progress.Broker
	Logger      *logger.Logger
}

// Server is the HTTP control surface.
type Server struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Logger
	echo *echo.Echo

	// Predictor for /api/predict, rebuilt whenever the latest
	// checkpoint changes.
	predMu sync.Mutex
	pred   *inference.Predictor
}

// New assembles the server and registers all routes.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("server: training manager is required")
	}
	if deps.Checkpoints == nil {
		return nil, fmt.Errorf("server: checkpoint store is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(s.requestLogger)

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	api := e.Group("/api")
	api.POST("/training/start", s.handleStart)
	api.POST("/training/pause", s.handlePause)
	api.POST("/training/resume", s.handleResume)
	api.POST("/training/stop", s.handleStop)
	api.GET("/training/status", s.handleStatus)
	api.POST("/predict", s.handlePredict)
	api.GET("/progress/ws", s.handleProgressWS)

	s.echo = e
	return s, nil
}

// Handler returns the routing tree; tests serve requests through it
// directly.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured port and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.echo.Server.ReadTimeout = s.cfg.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.Server.WriteTimeout
	s.log.Info("http server listening", logger.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests, bounded by the context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Debug("http request",
			logger.String("method", c.Request().Method),
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", c.Response().Status),
			logger.Duration("elapsed", time.Since(start)))
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
