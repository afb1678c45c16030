package training

import (
	"context"
	"errors"
	"sync"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/config"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/pkg/logger"
)

// Manager owns at most one live session and runs it on a background
// goroutine, which is what the HTTP control surface needs: start
// returns immediately, commands address the current session, and a
// finished session stays inspectable until the next start.
type Manager struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Logger

	mu      sync.Mutex
	current *Session
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewManager creates a manager. Sessions it starts share the given
// configuration and dependencies.
func NewManager(cfg *config.Config, deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{cfg: cfg, deps: deps, log: log}
}

// Start builds a session and launches its run loop. It fails with
// ErrAlreadyStarted while a previous session is still live.
func (m *Manager) Start(params Params) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Status().State.IsTerminal() {
		return nil, ErrAlreadyStarted
	}

	session, err := NewSession(m.cfg, params, m.deps)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.current = session
	m.cancel = cancel
	m.done = done
	m.lastErr = nil

	go func() {
		defer close(done)
		_, err := session.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error("training run ended with error",
				logger.String("session_id", session.SessionID()),
				logger.Error(err))
		}
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
	}()

	return session, nil
}

// Session returns the current session, live or finished, or nil when
// none was started.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastError returns the error the most recent run exited with.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Pause suspends the current session.
func (m *Manager) Pause() error {
	s := m.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Pause()
}

// Resume wakes the current session.
func (m *Manager) Resume() error {
	s := m.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Resume()
}

// Stop gracefully halts the current session. It returns once the stop
// is accepted; the loop drains asynchronously.
func (m *Manager) Stop() error {
	s := m.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Stop()
}

// Status reports the current session's snapshot. ok is false when no
// session was ever started.
func (m *Manager) Status() (Status, bool) {
	s := m.Session()
	if s == nil {
		return Status{State: domain.StateIdle}, false
	}
	return s.Status(), true
}

// Shutdown stops any live session and waits for its goroutine to drain,
// bounded by the context. Safe to call with no session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	session := m.current
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if session == nil {
		return nil
	}
	if !session.Status().State.IsTerminal() {
		// Prefer the graceful path; fall back to hard cancel below.
		if err := session.Stop(); err != nil && cancel != nil {
			cancel()
		}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}
