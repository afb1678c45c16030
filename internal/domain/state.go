package domain

// TrainingState represents the lifecycle state of a training session.
type TrainingState string

const (
	StateIdle      TrainingState = "IDLE"
	StateTraining  TrainingState = "TRAINING"
	StatePaused    TrainingState = "PAUSED"
	StateStopped   TrainingState = "STOPPED"
	StateCompleted TrainingState = "COMPLETED"
)

// String returns the string representation of the state.
func (s TrainingState) String() string {
	return string(s)
}

// IsTerminal reports whether the session has finished, either by request
// or by running out of episodes.
func (s TrainingState) IsTerminal() bool {
	return s == StateStopped || s == StateCompleted
}
