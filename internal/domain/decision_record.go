package domain

// DecisionRecord is the telemetry row written for every decision taken
// during training or evaluation.
// Corresponds to decision_log table in ClickHouse.
type DecisionRecord struct {
	SessionID   string  // training or evaluation session
	EventID     string  // match event decided on
	DecidedAtMs int64   // Unix timestamp in milliseconds
	Episode     int     // episode number at decision time
	MatchIndex  int     // position within the episode
	Action      string  // SKIP | STAKE_1 | STAKE_2 | STAKE_3
	Confidence  float64 // estimated value of the chosen action
	Explored    bool    // action came from the exploration branch
	Gated       bool    // confidence gate overrode an entry to SKIP
	Price       float64 // decimal odds of the bet market
	Outcome     string  // GREEN | RED | SKIP
	Reward      float64 // shaped reward granted
	Epsilon     float64 // exploration rate at decision time
}
