package domain

import "fmt"

// Action is the discrete decision emitted for one match event: stay out
// entirely, or enter at one of three stake sizes.
type Action int

const (
	ActionSkip Action = iota
	ActionStake1
	ActionStake2
	ActionStake3
)

// ActionCount is the width of the policy output layer.
const ActionCount = 4

var actionNames = [ActionCount]string{"SKIP", "STAKE_1", "STAKE_2", "STAKE_3"}

// Name returns the wire name of the action.
func (a Action) Name() string {
	if a < 0 || int(a) >= ActionCount {
		return fmt.Sprintf("UNKNOWN_%d", int(a))
	}
	return actionNames[a]
}

// IsValid checks if the action is within the defined range.
func (a Action) IsValid() bool {
	return a >= 0 && int(a) < ActionCount
}

// IsEntry reports whether the action places a bet.
func (a Action) IsEntry() bool {
	return a > ActionSkip && a.IsValid()
}

// StakeUnits returns the stake in base units: 0 for skip, 1..3 for the
// staking actions.
func (a Action) StakeUnits() float64 {
	if !a.IsEntry() {
		return 0
	}
	return float64(a)
}

// ParseAction maps a wire name back to an Action.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return ActionSkip, fmt.Errorf("unknown action name %q", name)
}
