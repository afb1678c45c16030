package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeCheckpointID computes a deterministic checkpoint_id using SHA256.
// Formula: SHA256(session_id|step|created_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeCheckpointID(
	sessionID string,
	step int64,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		sessionID,
		step,
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSessionID computes a deterministic session_id using SHA256.
// Formula: SHA256(started_at_ms|seed)
// Returns the first 16 hex characters, enough to key a session.
func ComputeSessionID(startedAtMs int64, seed int64) string {
	data := fmt.Sprintf("%d|%d", startedAtMs, seed)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
