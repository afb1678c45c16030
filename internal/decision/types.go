// Package decision turns an evaluation report into a GO/NO-GO
// deployment verdict: a checklist of criteria the holdout replay must
// clear, plus hard triggers that veto deployment on their own.
package decision

// Decision is the final GO/NO-GO verdict.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Thresholds parameterizes the gate. All profit figures are in stake
// units, matching the evaluation report.
type Thresholds struct {
	// GO criteria.
	MinWinRate   float64 // holdout win rate floor
	MinEntries   int     // minimum sample size for the verdict to mean anything
	MaxDrawdown  float64 // peak-to-trough ceiling, stake units
	MinEntryRate float64 // gate-activity sanity: the policy must bet sometimes
	MaxEntryRate float64 // and must not bet on everything

	// NO-GO triggers.
	HardWinRateFloor     float64 // below this the model is worse than blind
	MaxConsecutiveLosses int
}

// DefaultThresholds returns the standard deployment bar: a win-focused
// model that enters selectively, stays profitable, and never rides a
// deep losing streak.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWinRate:           0.55,
		MinEntries:           30,
		MaxDrawdown:          20,
		MinEntryRate:         0.05,
		MaxEntryRate:         0.95,
		HardWinRateFloor:     0.45,
		MaxConsecutiveLosses: 8,
	}
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// DecisionResult contains the final verdict with the full checklist.
type DecisionResult struct {
	Decision     Decision          `json:"decision"`
	SessionID    string            `json:"session_id"`
	CheckpointID string            `json:"checkpoint_id"`
	GOCriteria   []CriterionResult `json:"go_criteria"`
	NOGOChecks   []CriterionResult `json:"nogo_checks"`
}
