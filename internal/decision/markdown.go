package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a DecisionResult as a Markdown document.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	sb.WriteString("# Deployment Gate\n\n")
	sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", result.Decision))
	if result.SessionID != "" {
		sb.WriteString(fmt.Sprintf("Session: `%s`  \n", result.SessionID))
	}
	if result.CheckpointID != "" {
		sb.WriteString(fmt.Sprintf("Checkpoint: `%s`\n", result.CheckpointID))
	}
	sb.WriteString("\n")

	sb.WriteString("## GO Criteria\n\n")
	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	goPassed := 0
	for i, c := range result.GOCriteria {
		passStr := "PASS"
		if c.Pass {
			goPassed++
		} else {
			passStr = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, passStr))
	}
	sb.WriteString(fmt.Sprintf("\nGO Criteria: %d/%d passed\n\n", goPassed, len(result.GOCriteria)))

	sb.WriteString("## NO-GO Triggers\n\n")
	sb.WriteString("| # | Trigger | Condition | Actual | Status |\n")
	sb.WriteString("|---|---------|-----------|--------|--------|\n")
	nogoTriggered := 0
	for i, c := range result.NOGOChecks {
		statusStr := "NOT TRIGGERED"
		if !c.Pass { // Pass=false means triggered
			statusStr = "TRIGGERED"
			nogoTriggered++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, statusStr))
	}
	sb.WriteString(fmt.Sprintf("\nNO-GO Triggers: %d/%d triggered\n\n", nogoTriggered, len(result.NOGOChecks)))

	sb.WriteString("## Summary\n\n")
	if result.Decision == DecisionGO {
		sb.WriteString("All GO criteria passed and no NO-GO triggers fired.\n")
	} else {
		sb.WriteString("Decision is NO-GO due to:\n")
		for _, c := range result.GOCriteria {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- GO criterion failed: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
		for _, c := range result.NOGOChecks {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- NO-GO trigger fired: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
	}

	return sb.String()
}
