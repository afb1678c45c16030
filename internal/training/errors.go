package training

import "errors"

// Control-surface errors. Handlers map these to client-fault responses;
// anything else is a server fault.
var (
	// ErrAlreadyStarted is returned when Run is called on a session that
	// already left the idle state, or Start on a manager with a live run.
	ErrAlreadyStarted = errors.New("training: session already started")

	// ErrNoSession is returned by manager commands when no session has
	// been started.
	ErrNoSession = errors.New("training: no session")

	// ErrNotTraining rejects a pause sent while the loop is not running.
	ErrNotTraining = errors.New("training: session is not training")

	// ErrNotPaused rejects a resume sent while the loop is not paused.
	ErrNotPaused = errors.New("training: session is not paused")

	// ErrFinished rejects commands sent after the session reached a
	// terminal state.
	ErrFinished = errors.New("training: session already finished")

	// ErrNoEvents is returned when the configured window holds nothing
	// to train on.
	ErrNoEvents = errors.New("training: no events in window")

	// ErrShapeMismatch is returned when a checkpoint disagrees with the
	// configured network shape or feature schema. Distinct from a
	// missing checkpoint: this one exists but cannot be loaded here.
	ErrShapeMismatch = errors.New("training: checkpoint does not fit the configured network")
)
