package domain

// ProgressUpdate is one point on the training progress feed.
type ProgressUpdate struct {
	SessionID   string  `json:"session_id"`
	Episode     int     `json:"episode"`
	MatchIndex  int     `json:"match_index"` // position within the episode
	Epsilon     float64 `json:"epsilon"`
	WinRate     float64 `json:"running_win_rate"`
	ROI         float64 `json:"running_roi"`
	EntryRate   float64 `json:"running_entry_rate"`
	TimestampMs int64   `json:"timestamp_ms"`
}
