package domain

import "time"

// PriceSample is one poll-time price observation for an open position.
// Samples are archived for offline analysis and never read on the hot path.
type PriceSample struct {
	PositionID string
	Token      string
	Network    string
	Price      float64
	ObservedAt time.Time
}
