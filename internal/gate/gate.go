// Package gate decides whether a discovered candidate is safe to trade.
// Evaluation is a pure function of the assessment and the policy; rejections
// are terminal for a candidate, the same pair is never re-evaluated.
package gate

import (
	"fmt"

	"github.com/azmshoh/sniper-bot/internal/domain"
)

// Verdict is the gate outcome for one candidate.
type Verdict string

const (
	VerdictAccept Verdict = "ACCEPT"
	VerdictReject Verdict = "REJECT"
)

// Reject reason codes. Persisted with the candidate rejection.
const (
	ReasonInsufficientLiquidity = "INSUFFICIENT_LIQUIDITY"
	ReasonHoneypot              = "HONEYPOT"
	ReasonTaxTooHigh            = "TAX_TOO_HIGH"
	ReasonAssessmentUnavailable = "ASSESSMENT_UNAVAILABLE"
	ReasonBlacklisted           = "BLACKLISTED"
)

// Policy holds the thresholds a candidate must clear.
type Policy struct {
	MinLiquidity  float64
	MaxBuyTaxPct  float64
	MaxSellTaxPct float64
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Decision is the gate result with its per-criterion breakdown.
// Liquidity lock status does not gate; it is carried forward to sizing.
type Decision struct {
	Verdict    Verdict
	Reason     string // first failing criterion's reason code, empty on accept
	Criteria   []CriterionResult
	Assessment *domain.SecurityAssessment
}

// Evaluate applies the policy to an assessment. A nil assessment means the
// collaborator could not produce one; the candidate is rejected, not retried.
func Evaluate(a *domain.SecurityAssessment, p Policy) *Decision {
	if a == nil {
		return &Decision{
			Verdict: VerdictReject,
			Reason:  ReasonAssessmentUnavailable,
			Criteria: []CriterionResult{{
				Name:      "Assessment available",
				Threshold: "assessment produced",
				Actual:    "unavailable",
				Pass:      false,
			}},
		}
	}

	criteria := []CriterionResult{
		{
			Name:      "Liquidity",
			Threshold: fmt.Sprintf(">= %.4f", p.MinLiquidity),
			Actual:    fmt.Sprintf("%.4f", a.LiquidityAmount),
			Pass:      a.LiquidityAmount >= p.MinLiquidity,
		},
		{
			Name:      "Sell simulation",
			Threshold: "sell path must succeed",
			Actual:    fmt.Sprintf("ok=%t", a.SellSimulationOK),
			Pass:      a.SellSimulationOK,
		},
		{
			Name:      "Buy tax",
			Threshold: fmt.Sprintf("<= %.1f%%", p.MaxBuyTaxPct),
			Actual:    fmt.Sprintf("%.1f%%", a.BuyTaxPct),
			Pass:      a.BuyTaxPct <= p.MaxBuyTaxPct,
		},
		{
			Name:      "Sell tax",
			Threshold: fmt.Sprintf("<= %.1f%%", p.MaxSellTaxPct),
			Actual:    fmt.Sprintf("%.1f%%", a.SellTaxPct),
			Pass:      a.SellTaxPct <= p.MaxSellTaxPct,
		},
	}

	reasons := []string{
		ReasonInsufficientLiquidity,
		ReasonHoneypot,
		ReasonTaxTooHigh,
		ReasonTaxTooHigh,
	}

	decision := &Decision{
		Verdict:    VerdictAccept,
		Criteria:   criteria,
		Assessment: a,
	}
	for i, c := range criteria {
		if !c.Pass {
			decision.Verdict = VerdictReject
			decision.Reason = reasons[i]
			break
		}
	}
	return decision
}
