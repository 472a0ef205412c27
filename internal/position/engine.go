// Package position runs the per-position trading state machine: one engine
// goroutine owns one position from fill to close, polling the price on a
// fixed interval and walking the exit rules in precedence order.
package position

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/observability"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// Options configures an Engine.
type Options struct {
	Chain   chain.Client
	Store   storage.PositionStore
	Samples storage.PriceSampleStore // optional price archive
	Trading *config.TradingConfig

	// Interval overrides the configured poll interval. Zero uses
	// Trading.PollInterval().
	Interval time.Duration

	// OnClose runs after the engine persisted a terminal close and is
	// about to retire. Optional.
	OnClose func(*domain.Position)

	Logger *log.Logger
}

// Engine owns exactly one position while it is OPEN. Nothing else mutates
// the position; the orchestrator only reads it through the store.
type Engine struct {
	pos  *domain.Position
	req  chain.TradeRequest
	opts Options

	interval time.Duration
	logger   *log.Logger
}

// NewEngine attaches an engine to an OPEN position. Used directly for
// startup recovery; new entries go through Enter.
func NewEngine(opts Options, p *domain.Position) *Engine {
	interval := opts.Interval
	if interval <= 0 {
		interval = opts.Trading.PollInterval()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		pos: p,
		req: chain.TradeRequest{
			Network:  p.Network,
			Exchange: p.Exchange,
			Pair:     p.Pair,
			Token:    p.Token,
		},
		opts:     opts,
		interval: interval,
		logger:   logger,
	}
}

// Enter sizes and executes the entry buy for an accepted candidate and
// returns the resulting OPEN position. A failed buy discards the position;
// nothing is persisted.
func Enter(ctx context.Context, cl chain.Client, cfg *config.TradingConfig, cand *domain.Candidate, a *domain.SecurityAssessment) (*domain.Position, error) {
	quote, err := entrySize(ctx, cl, cfg, cand.Network, a.LiquidityLocked)
	if err != nil {
		return nil, err
	}

	req := chain.TradeRequest{
		Network:  cand.Network,
		Exchange: cand.Exchange,
		Pair:     cand.PairAddress,
		Token:    cand.TokenAddress,
	}
	fill, err := cl.Buy(ctx, req, quote)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &domain.Position{
		ID:                     uuid.NewString(),
		Token:                  cand.TokenAddress,
		Network:                cand.Network,
		Exchange:               cand.Exchange,
		Pair:                   cand.PairAddress,
		EntryPrice:             fill.Price,
		Quantity:               fill.Quantity,
		CostBasis:              fill.QuoteAmount,
		LiquidityLockedAtEntry: a.LiquidityLocked,
		TiersClaimed:           []float64{},
		MaxPriceSeen:           fill.Price,
		Status:                 domain.PositionOpen,
		OpenedAt:               now,
	}, nil
}

// Position returns the engine's position.
func (e *Engine) Position() *domain.Position {
	return e.pos
}

// Run polls until the position closes or the context is canceled. A poll in
// flight finishes before cancellation takes effect.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.poll(ctx) {
				if e.opts.OnClose != nil {
					e.opts.OnClose(e.pos)
				}
				return
			}
		}
	}
}

// poll runs one price check and the exit rules. Returns true when the
// position reached its terminal state.
func (e *Engine) poll(ctx context.Context) bool {
	cfg := e.opts.Trading
	p := e.pos

	price, err := e.opts.Chain.CurrentPrice(ctx, e.req)
	if err != nil {
		e.logger.Printf("[position %s] price fetch failed, retrying next tick: %v", p.ID, err)
		return false
	}

	e.archiveSample(ctx, price)

	dirty := false
	if price > p.MaxPriceSeen {
		p.MaxPriceSeen = price
		dirty = true
	}

	now := time.Now().UTC()

	// Exit rules in precedence order; first match wins per poll.

	// 1. Timeout: held too long without ever printing the multiple.
	if now.Sub(p.OpenedAt) > cfg.TimeoutWindow() && p.MaxPriceSeen < p.EntryPrice*cfg.TimeoutMultiple {
		return e.closeAll(ctx, domain.CloseReasonTimeout)
	}

	// 2. Stop-loss against entry.
	if price <= p.EntryPrice*(1-cfg.StopLossFraction) {
		return e.closeAll(ctx, domain.CloseReasonStopLoss)
	}

	// 3. Trailing stop against the peak, armed once a tier was claimed.
	if len(p.TiersClaimed) > 0 && price <= p.MaxPriceSeen*(1-cfg.TrailingStopFraction) {
		return e.closeAll(ctx, domain.CloseReasonTrailingStop)
	}

	// 4. Take-profit ladder, catching up every tier the price has passed.
	ladder := cfg.Ladder(p.LiquidityLockedAtEntry)
	for i, tier := range ladder {
		if p.TierClaimed(tier.Multiplier) {
			continue
		}
		if price < p.EntryPrice*tier.Multiplier {
			break
		}

		final := i == len(ladder)-1
		sellQty := p.Quantity * tier.SellFraction
		if final {
			sellQty = p.Quantity
		}

		fill, err := e.opts.Chain.Sell(ctx, e.req, sellQty)
		if err != nil {
			// Open exposure stays; the next tick retries this tier.
			e.logger.Printf("[position %s] tier %.0fx sell failed, retrying next tick: %v",
				p.ID, tier.Multiplier, err)
			e.persist(ctx)
			return false
		}

		p.Quantity -= fill.Quantity
		p.ClaimTier(tier.Multiplier)
		observability.RecordSell(p.Network, "TIER")
		e.logger.Printf("[position %s] claimed %.0fx tier, sold %.6f, %.6f remaining",
			p.ID, tier.Multiplier, fill.Quantity, p.Quantity)

		if final || p.Quantity <= 0 {
			return e.finalize(ctx, domain.CloseReasonTakeProfitFinal)
		}

		// A crash between tiers must not replay an already-filled sell, so
		// each claim is persisted before the next rung is attempted.
		e.persist(ctx)
		dirty = false
	}

	if dirty {
		e.persist(ctx)
	}
	return false
}

// closeAll sells the entire remaining quantity and finalizes. A failed sell
// keeps the position open for the next tick.
func (e *Engine) closeAll(ctx context.Context, reason string) bool {
	p := e.pos

	if p.Quantity > 0 {
		fill, err := e.opts.Chain.Sell(ctx, e.req, p.Quantity)
		if err != nil {
			e.logger.Printf("[position %s] %s sell failed, retrying next tick: %v", p.ID, reason, err)
			return false
		}
		p.Quantity -= fill.Quantity
		observability.RecordSell(p.Network, reason)
	}

	return e.finalize(ctx, reason)
}

// finalize records the terminal state. The tokens are already sold, so a
// persist failure is logged but cannot reopen the position.
func (e *Engine) finalize(ctx context.Context, reason string) bool {
	p := e.pos
	now := time.Now().UTC()

	p.Status = domain.PositionClosed
	p.ClosedAt = &now
	p.CloseReason = reason

	if err := e.opts.Store.Update(ctx, p); err != nil {
		e.logger.Printf("[position %s] persist close: %v", p.ID, err)
	}
	e.logger.Printf("[position %s] closed: %s token=%s network=%s", p.ID, reason, p.Token, p.Network)
	return true
}

// persist saves mutable position state mid-flight.
func (e *Engine) persist(ctx context.Context) {
	if err := e.opts.Store.Update(ctx, e.pos); err != nil {
		e.logger.Printf("[position %s] persist: %v", e.pos.ID, err)
	}
}

// archiveSample appends to the price archive. Best effort.
func (e *Engine) archiveSample(ctx context.Context, price float64) {
	if e.opts.Samples == nil {
		return
	}
	sample := &domain.PriceSample{
		PositionID: e.pos.ID,
		Token:      e.pos.Token,
		Network:    e.pos.Network,
		Price:      price,
		ObservedAt: time.Now().UTC(),
	}
	if err := e.opts.Samples.InsertBulk(ctx, []*domain.PriceSample{sample}); err != nil {
		e.logger.Printf("[position %s] archive sample: %v", e.pos.ID, err)
	}
}
