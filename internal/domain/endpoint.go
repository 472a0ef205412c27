package domain

import "time"

// EndpointState describes selection eligibility of an RPC endpoint.
type EndpointState string

const (
	EndpointActive      EndpointState = "ACTIVE"
	EndpointCoolingDown EndpointState = "COOLING_DOWN"
	EndpointBanned      EndpointState = "BANNED"
)

// Outcome is the result of one remote call through an endpoint.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeTimeout Outcome = "TIMEOUT"
	OutcomeError   Outcome = "ERROR"
)

// Endpoint is one remote RPC endpoint for a network. Endpoints are created
// at network configuration time and never deleted; a banned endpoint stays
// in the pool until explicitly reset.
type Endpoint struct {
	Network string
	URL     string

	// Score is the reliability score in [0, ScoreCeiling]. It recovers
	// toward the ceiling on success and decays on failure.
	Score               float64
	ConsecutiveFailures int
	State               EndpointState
	CooldownUntil       time.Time
}

// Available reports whether the endpoint may be selected at time now.
// A cooling-down endpoint becomes eligible again once its cooldown elapses
// (probe on next use, no background timer).
func (e *Endpoint) Available(now time.Time) bool {
	switch e.State {
	case EndpointActive:
		return true
	case EndpointCoolingDown:
		return !now.Before(e.CooldownUntil)
	default:
		return false
	}
}
