package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
)

// RenderMarkdown renders an evaluation report as a Markdown document.
func RenderMarkdown(r *evaluation.Report) string {
	var sb strings.Builder

	sb.WriteString("# Evaluation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", msTime(r.GeneratedAtMs)))
	sb.WriteString(fmt.Sprintf("Session: `%s`  \n", r.SessionID))
	sb.WriteString(fmt.Sprintf("Checkpoint: `%s`  \n", r.CheckpointID))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n", msTime(r.WindowStartMs), msTime(r.WindowEndMs)))

	sb.WriteString("## Decisions\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Events | %d |\n", r.Events))
	sb.WriteString(fmt.Sprintf("| Skips | %d |\n", r.Skips))
	sb.WriteString(fmt.Sprintf("| Entries | %d |\n", r.Entries))
	sb.WriteString(fmt.Sprintf("| Greens | %d |\n", r.Greens))
	sb.WriteString(fmt.Sprintf("| Reds | %d |\n", r.Reds))
	sb.WriteString(fmt.Sprintf("| Gate overrides | %d |\n", r.Gated))
	sb.WriteString(fmt.Sprintf("| Win rate | %.4f |\n", r.WinRate))
	sb.WriteString(fmt.Sprintf("| Entry rate | %.4f |\n", r.EntryRate))
	sb.WriteString("\n")

	sb.WriteString("## Money Flow\n\n")
	sb.WriteString("| Metric | Units |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total staked | %.4f |\n", r.TotalStaked))
	sb.WriteString(fmt.Sprintf("| Net profit | %.4f |\n", r.NetProfit))
	sb.WriteString(fmt.Sprintf("| ROI | %.4f |\n", r.ROI))
	sb.WriteString(fmt.Sprintf("| Final bankroll | %.4f |\n", r.FinalBankroll))
	sb.WriteString("\n")

	sb.WriteString("## Risk\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Max drawdown | %.4f |\n", r.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max consecutive losses | %d |\n", r.MaxConsecutiveLosses))
	sb.WriteString("\n")

	sb.WriteString("## Profit Distribution\n\n")
	sb.WriteString("| Mean | Median | P10 | P90 | Stddev |\n")
	sb.WriteString("|------|--------|-----|-----|--------|\n")
	sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.4f | %.4f |\n",
		r.ProfitMean, r.ProfitMedian, r.ProfitP10, r.ProfitP90, r.ProfitStddev))
	sb.WriteString("\n")

	sb.WriteString("## Confidence Buckets\n\n")
	if len(r.ConfidenceBuckets) > 0 {
		sb.WriteString("| Bucket | Range | Entries | Greens | Win Rate |\n")
		sb.WriteString("|--------|-------|---------|--------|----------|\n")
		for _, b := range r.ConfidenceBuckets {
			sb.WriteString(fmt.Sprintf("| %s | [%.2f, %.2f) | %d | %d | %.4f |\n",
				b.Label, b.Low, b.High, b.Entries, b.Greens, b.WinRate))
		}
	} else {
		sb.WriteString("No entries recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Actions\n\n")
	if len(r.Actions) > 0 {
		sb.WriteString("| Action | Decisions | Greens | Reds | Staked | Profit |\n")
		sb.WriteString("|--------|-----------|--------|------|--------|--------|\n")
		for _, a := range r.Actions {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.4f |\n",
				a.Action, a.Decisions, a.Greens, a.Reds, a.Staked, a.Profit))
		}
	} else {
		sb.WriteString("No decisions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func msTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
