package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeCandidateID computes a deterministic candidate_id using SHA256.
// Formula: SHA256(network|exchange|pair_address|token_address)
// Returns hex-encoded hash (64 characters).
//
// The same pair rediscovered after a restart hashes to the same ID, which is
// what lets the rejection store suppress re-evaluation.
func ComputeCandidateID(
	network string,
	exchange string,
	pairAddress string,
	tokenAddress string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		network,
		exchange,
		pairAddress,
		tokenAddress,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
