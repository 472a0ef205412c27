package domain

import "time"

// Candidate is a newly listed trading pair discovered by a network watcher.
// Candidates are immutable and consumed exactly once by the security gate;
// they are only persisted if they become a Position or a recorded rejection.
type Candidate struct {
	ID           string // deterministic hash, see idhash
	Network      string
	Exchange     string
	PairAddress  string
	TokenAddress string
	DiscoveredAt time.Time
}

// SecurityAssessment holds the raw on-chain facts the gate decides on.
// Computed once per candidate; liquidity changes block to block, so
// assessments are never cached across candidates.
type SecurityAssessment struct {
	// LiquidityAmount is pool liquidity in the network's native quote
	// currency (BNB, ETH, ...).
	LiquidityAmount float64
	LiquidityLocked bool
	LockPlatform    string // "unicrypt", "pinksale", ... empty when unlocked
	BuyTaxPct       float64
	SellTaxPct      float64
	// SellSimulationOK is false when a simulated minimal sell reverts,
	// which marks the token as a honeypot.
	SellSimulationOK bool
}
