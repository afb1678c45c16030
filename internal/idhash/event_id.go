package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(league|home_team|away_team|kickoff_ms)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	league string,
	homeTeam string,
	awayTeam string,
	kickoffMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		league,
		homeTeam,
		awayTeam,
		kickoffMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
