package evaluation

// Report is the outcome of replaying a checkpoint greedily over a
// holdout window. All profit figures are in stake units.
type Report struct {
	SessionID     string `json:"session_id"`
	CheckpointID  string `json:"checkpoint_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`

	WindowStartMs int64 `json:"window_start_ms"`
	WindowEndMs   int64 `json:"window_end_ms"`

	// Decision counts.
	Events  int `json:"events"`
	Skips   int `json:"skips"`
	Entries int `json:"entries"`
	Greens  int `json:"greens"`
	Reds    int `json:"reds"`
	Gated   int `json:"gated"` // entries the confidence gate overrode

	// Headline rates.
	WinRate   float64 `json:"win_rate"`
	EntryRate float64 `json:"entry_rate"`

	// Money flow.
	TotalStaked   float64 `json:"total_staked"`
	NetProfit     float64 `json:"net_profit"`
	ROI           float64 `json:"roi"`
	FinalBankroll float64 `json:"final_bankroll"`

	// Risk shape, over per-entry profits in replay order.
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	// Per-entry profit distribution.
	ProfitMean   float64 `json:"profit_mean"`
	ProfitMedian float64 `json:"profit_median"`
	ProfitP10    float64 `json:"profit_p10"`
	ProfitP90    float64 `json:"profit_p90"`
	ProfitStddev float64 `json:"profit_stddev"`

	// Where the confidence mass sits. Buckets follow the shaping
	// thresholds, so the table reads against the reward design.
	ConfidenceBuckets []ConfidenceBucket `json:"confidence_buckets"`

	// Per-action usage.
	Actions []ActionLine `json:"actions"`
}

// ConfidenceBucket summarizes the entries whose confidence fell inside
// [Low, High).
type ConfidenceBucket struct {
	Label   string  `json:"label"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	Entries int     `json:"entries"`
	Greens  int     `json:"greens"`
	WinRate float64 `json:"win_rate"`
}

// ActionLine summarizes one action's usage across the window.
type ActionLine struct {
	Action    string  `json:"action"`
	Decisions int     `json:"decisions"`
	Greens    int     `json:"greens"`
	Reds      int     `json:"reds"`
	Staked    float64 `json:"staked"`
	Profit    float64 `json:"profit"`
}
