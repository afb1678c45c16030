package reporting

import (
	"fmt"
	"strings"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
)

// RenderSummaryCSV renders the headline metrics as a single-row CSV.
func RenderSummaryCSV(r *evaluation.Report) string {
	var sb strings.Builder

	sb.WriteString("session_id,checkpoint_id,window_start_ms,window_end_ms,")
	sb.WriteString("events,skips,entries,greens,reds,gated,win_rate,entry_rate,")
	sb.WriteString("total_staked,net_profit,roi,final_bankroll,max_drawdown,max_consecutive_losses,")
	sb.WriteString("profit_mean,profit_median,profit_p10,profit_p90,profit_stddev\n")

	sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%.6f,%.6f,%.6f,%.6f,%.6f\n",
		r.SessionID,
		r.CheckpointID,
		r.WindowStartMs,
		r.WindowEndMs,
		r.Events,
		r.Skips,
		r.Entries,
		r.Greens,
		r.Reds,
		r.Gated,
		r.WinRate,
		r.EntryRate,
		r.TotalStaked,
		r.NetProfit,
		r.ROI,
		r.FinalBankroll,
		r.MaxDrawdown,
		r.MaxConsecutiveLosses,
		r.ProfitMean,
		r.ProfitMedian,
		r.ProfitP10,
		r.ProfitP90,
		r.ProfitStddev,
	))

	return sb.String()
}

// RenderActionsCSV renders per-action usage as CSV, one row per action.
func RenderActionsCSV(rows []evaluation.ActionLine) string {
	var sb strings.Builder

	sb.WriteString("action,decisions,greens,reds,staked,profit\n")
	for _, a := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.6f,%.6f\n",
			a.Action, a.Decisions, a.Greens, a.Reds, a.Staked, a.Profit))
	}

	return sb.String()
}

// RenderBucketsCSV renders the confidence bucket breakdown as CSV.
func RenderBucketsCSV(rows []evaluation.ConfidenceBucket) string {
	var sb strings.Builder

	sb.WriteString("bucket,low,high,entries,greens,win_rate\n")
	for _, b := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.4f,%.4f,%d,%d,%.6f\n",
			b.Label, b.Low, b.High, b.Entries, b.Greens, b.WinRate))
	}

	return sb.String()
}
