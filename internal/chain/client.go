// Package chain defines the collaborator interface between the trading core
// and a concrete blockchain backend. The core never speaks RPC directly; it
// asks a Client, and the Client is responsible for endpoint selection, retry
// and outcome reporting.
package chain

import (
	"context"
	"errors"

	"github.com/azmshoh/sniper-bot/internal/domain"
)

// ErrExecution indicates a buy or sell failed after the client exhausted its
// own retry budget. It does not close a position; the engine retries on the
// next poll tick.
var ErrExecution = errors.New("trade execution failed")

// ErrAssessmentFailed indicates a security assessment could not be produced.
// The candidate is rejected, not retried.
var ErrAssessmentFailed = errors.New("security assessment failed")

// PairEvent is one new-pair creation observed on a factory contract.
type PairEvent struct {
	PairAddress  string
	TokenAddress string
	Block        uint64
}

// TradeRequest identifies the market a price fetch or trade targets.
type TradeRequest struct {
	Network  string
	Exchange string
	Pair     string
	Token    string
}

// Fill is the confirmed result of a buy or sell.
type Fill struct {
	Quantity    float64 // token quantity bought or sold
	Price       float64 // effective fill price in quote currency per token
	QuoteAmount float64 // quote currency spent (buy) or received (sell)
}

// Client is the chain collaborator. Implementations route every call through
// the endpoint pool and report the outcome back to it.
type Client interface {
	// DiscoverNewPairs returns pair-creation events after sinceBlock and the
	// new cursor position. An empty slice with an advanced cursor is normal.
	DiscoverNewPairs(ctx context.Context, network, exchange string, sinceBlock uint64) ([]PairEvent, uint64, error)

	// Assess computes a security assessment for a candidate. One round of
	// calls per candidate; assessments are never cached across candidates.
	Assess(ctx context.Context, c *domain.Candidate) (*domain.SecurityAssessment, error)

	// CurrentPrice returns the token price in quote currency.
	CurrentPrice(ctx context.Context, req TradeRequest) (float64, error)

	// Buy spends quoteAmount of quote currency on the token.
	// Fails with ErrExecution after exhausting retries.
	Buy(ctx context.Context, req TradeRequest, quoteAmount float64) (*Fill, error)

	// Sell sells quantity tokens for quote currency.
	// Fails with ErrExecution after exhausting retries.
	Sell(ctx context.Context, req TradeRequest, quantity float64) (*Fill, error)

	// WalletBalance returns the spendable quote-currency balance on a network.
	WalletBalance(ctx context.Context, network string) (float64, error)
}
