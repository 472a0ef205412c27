package domain

import "time"

// PositionStatus is the lifecycle state of a position.
// PENDING exists only between gate pass and buy confirmation; a failed buy
// discards the position without persisting it.
type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
)

// Close reason codes.
const (
	CloseReasonTimeout         = "TIMEOUT"
	CloseReasonStopLoss        = "STOP_LOSS"
	CloseReasonTrailingStop    = "TRAILING_STOP"
	CloseReasonTakeProfitFinal = "TAKE_PROFIT_FINAL"
)

// Tier is one rung of a take-profit ladder: at Multiplier times the entry
// price, SellFraction of the remaining quantity is realized.
type Tier struct {
	Multiplier   float64 `yaml:"multiplier"`
	SellFraction float64 `yaml:"sell_fraction"`
}

// Position is an open or closed trade in one token on one network.
// Exactly one position engine owns and mutates a position while it is OPEN.
type Position struct {
	ID       string
	Token    string
	Network  string
	Exchange string
	Pair     string

	// Entry facts, fixed at fill time and never revised.
	EntryPrice             float64
	Quantity               float64 // remaining token quantity
	CostBasis              float64 // quote currency spent on entry
	LiquidityLockedAtEntry bool

	// TiersClaimed holds the multiplier thresholds already realized,
	// in ascending order.
	TiersClaimed []float64
	MaxPriceSeen float64

	Status      PositionStatus
	OpenedAt    time.Time
	ClosedAt    *time.Time
	CloseReason string
}

// TierClaimed reports whether the given multiplier has been realized.
func (p *Position) TierClaimed(multiplier float64) bool {
	for _, m := range p.TiersClaimed {
		if m == multiplier {
			return true
		}
	}
	return false
}

// ClaimTier marks a multiplier as realized.
func (p *Position) ClaimTier(multiplier float64) {
	if !p.TierClaimed(multiplier) {
		p.TiersClaimed = append(p.TiersClaimed, multiplier)
	}
}
