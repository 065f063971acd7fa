package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeResultID computes a deterministic optimization result ID using SHA256.
// Formula: SHA256(config_id|combination_index|combination_key)
// Returns hex-encoded hash (64 characters).
func ComputeResultID(configID string, combinationIndex int, combinationKey string) string {
	data := fmt.Sprintf("%s|%d|%s", configID, combinationIndex, combinationKey)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
