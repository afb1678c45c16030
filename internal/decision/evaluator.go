package decision

import (
	"fmt"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
)

// Evaluator applies the deployment thresholds to evaluation reports.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator over the given thresholds.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate produces the verdict for one holdout report.
// GO requires ALL criteria to pass and NO trigger to fire.
func (e *Evaluator) Evaluate(report *evaluation.Report) *DecisionResult {
	goCriteria := e.evaluateGOCriteria(report)
	nogoChecks := e.evaluateNOGOTriggers(report)

	allGOPass := true
	for _, c := range goCriteria {
		if !c.Pass {
			allGOPass = false
			break
		}
	}

	anyTriggered := false
	for _, c := range nogoChecks {
		if !c.Pass { // Pass=false means triggered
			anyTriggered = true
			break
		}
	}

	verdict := DecisionGO
	if !allGOPass || anyTriggered {
		verdict = DecisionNOGO
	}

	return &DecisionResult{
		Decision:     verdict,
		SessionID:    report.SessionID,
		CheckpointID: report.CheckpointID,
		GOCriteria:   goCriteria,
		NOGOChecks:   nogoChecks,
	}
}

func (e *Evaluator) evaluateGOCriteria(report *evaluation.Report) []CriterionResult {
	t := e.thresholds
	criteria := make([]CriterionResult, 5)

	criteria[0] = CriterionResult{
		Name:      "Holdout win rate",
		Threshold: fmt.Sprintf(">= %.0f%%", t.MinWinRate*100),
		Actual:    fmt.Sprintf("%.2f%%", report.WinRate*100),
		Pass:      report.WinRate >= t.MinWinRate,
	}

	criteria[1] = CriterionResult{
		Name:      "Positive return",
		Threshold: "ROI > 0",
		Actual:    fmt.Sprintf("ROI=%.4f, NetProfit=%.2f", report.ROI, report.NetProfit),
		Pass:      report.ROI > 0,
	}

	criteria[2] = CriterionResult{
		Name:      "Sample size",
		Threshold: fmt.Sprintf(">= %d entries", t.MinEntries),
		Actual:    fmt.Sprintf("%d entries over %d events", report.Entries, report.Events),
		Pass:      report.Entries >= t.MinEntries,
	}

	criteria[3] = CriterionResult{
		Name:      "Drawdown ceiling",
		Threshold: fmt.Sprintf("<= %.1f units", t.MaxDrawdown),
		Actual:    fmt.Sprintf("%.2f units", report.MaxDrawdown),
		Pass:      report.MaxDrawdown <= t.MaxDrawdown,
	}

	// A policy that bets on everything has learned nothing about
	// selectivity; one that never bets gives no evidence at all.
	criteria[4] = CriterionResult{
		Name:      "Entry rate sanity",
		Threshold: fmt.Sprintf("%.0f%%..%.0f%%", t.MinEntryRate*100, t.MaxEntryRate*100),
		Actual:    fmt.Sprintf("%.2f%% (%d gated)", report.EntryRate*100, report.Gated),
		Pass:      report.EntryRate >= t.MinEntryRate && report.EntryRate <= t.MaxEntryRate,
	}

	return criteria
}

// evaluateNOGOTriggers evaluates the hard vetoes.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(report *evaluation.Report) []CriterionResult {
	t := e.thresholds
	checks := make([]CriterionResult, 4)

	triggered := report.NetProfit < 0
	checks[0] = CriterionResult{
		Name:      "Losing money",
		Threshold: "NetProfit < 0",
		Actual:    fmt.Sprintf("%.2f units", report.NetProfit),
		Pass:      !triggered,
	}

	triggered = report.WinRate < t.HardWinRateFloor && report.Entries > 0
	checks[1] = CriterionResult{
		Name:      "Win rate collapse",
		Threshold: fmt.Sprintf("< %.0f%%", t.HardWinRateFloor*100),
		Actual:    fmt.Sprintf("%.2f%%", report.WinRate*100),
		Pass:      !triggered,
	}

	triggered = report.MaxConsecutiveLosses > t.MaxConsecutiveLosses
	checks[2] = CriterionResult{
		Name:      "Losing streak",
		Threshold: fmt.Sprintf("> %d consecutive reds", t.MaxConsecutiveLosses),
		Actual:    fmt.Sprintf("%d", report.MaxConsecutiveLosses),
		Pass:      !triggered,
	}

	triggered = report.Entries == 0
	checks[3] = CriterionResult{
		Name:      "No entries",
		Threshold: "Entries == 0",
		Actual:    fmt.Sprintf("%d entries, %d skips", report.Entries, report.Skips),
		Pass:      !triggered,
	}

	return checks
}
