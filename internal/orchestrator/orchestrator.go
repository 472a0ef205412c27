// Package orchestrator owns the discovery-to-exit pipeline: the set of
// per-network watchers, the set of live position engines, startup recovery
// of open positions, and coordinated shutdown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/gate"
	"github.com/azmshoh/sniper-bot/internal/observability"
	"github.com/azmshoh/sniper-bot/internal/position"
	"github.com/azmshoh/sniper-bot/internal/storage"
	"github.com/azmshoh/sniper-bot/internal/watcher"
)

// RecoveryError means persisted open positions could not be read at startup.
// The process must not start trading blind on top of unknown exposure.
type RecoveryError struct {
	Err error
}

func (e *RecoveryError) Error() string { return fmt.Sprintf("startup recovery: %v", e.Err) }
func (e *RecoveryError) Unwrap() error { return e.Err }

// Options for creating an Orchestrator.
type Options struct {
	Config *config.Config
	Chain  chain.Client

	Positions  storage.PositionStore
	Rejections storage.RejectionStore
	Samples    storage.PriceSampleStore // optional price archive

	// Test overrides; zero uses the configured intervals.
	WatcherInterval   time.Duration
	EngineInterval    time.Duration
	StabilityInterval time.Duration

	Logger *log.Logger
}

// Orchestrator runs one watcher per configured (network, exchange) and one
// engine per open position.
type Orchestrator struct {
	opts   Options
	logger *log.Logger

	wg sync.WaitGroup

	mu       sync.Mutex
	engines  map[string]*position.Engine // keyed by position ID
	claimed  map[string]struct{}         // network|token with a live or pending position
	watchers map[string]*watcher.Watcher // keyed by network|exchange
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		opts:     opts,
		logger:   logger,
		engines:  make(map[string]*position.Engine),
		claimed:  make(map[string]struct{}),
		watchers: make(map[string]*watcher.Watcher),
	}
}

func tokenKey(network, token string) string { return network + "|" + token }

// Run recovers open positions, starts every watcher, and blocks until the
// context is canceled and all watchers and engines have stopped. Watchers
// and engines finish their current iteration; in-flight buys and sells
// complete rather than being aborted mid-transaction.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.recover(ctx); err != nil {
		return err
	}
	o.startWatchers(ctx)

	<-ctx.Done()
	o.logger.Printf("[orchestrator] shutdown requested, draining watchers and engines")
	o.wg.Wait()
	o.logger.Printf("[orchestrator] stopped")
	return nil
}

// recover re-attaches an engine to every persisted OPEN position. A restart
// must never abandon an open exposure and must never re-buy one.
func (o *Orchestrator) recover(ctx context.Context) error {
	open, err := o.opts.Positions.LoadOpen(ctx)
	if err != nil {
		return &RecoveryError{Err: err}
	}

	for _, p := range open {
		o.logger.Printf("[orchestrator] recovered open position %s token=%s network=%s tiers=%v max=%.6g",
			p.ID, p.Token, p.Network, p.TiersClaimed, p.MaxPriceSeen)
		o.attachEngine(ctx, p)
	}
	o.logger.Printf("[orchestrator] recovery complete, %d open positions", len(open))
	return nil
}

func (o *Orchestrator) startWatchers(ctx context.Context) {
	for network, netCfg := range o.opts.Config.Networks {
		for exchange := range netCfg.Exchanges {
			w := watcher.New(watcher.Options{
				Network:  network,
				Exchange: exchange,
				Chain:    o.opts.Chain,
				Policy: gate.Policy{
					MinLiquidity:  netCfg.MinLiquidity,
					MaxBuyTaxPct:  o.opts.Config.Trading.MaxBuyTaxPct,
					MaxSellTaxPct: o.opts.Config.Trading.MaxSellTaxPct,
				},
				Trading:           &o.opts.Config.Trading,
				Rejections:        o.opts.Rejections,
				OnAccept:          o.OpenPosition,
				Interval:          o.watcherInterval(),
				DedupeWindow:      o.opts.Config.Watcher.DedupeWindow,
				StabilityInterval: o.opts.StabilityInterval,
				Logger:            o.logger,
			})

			o.mu.Lock()
			o.watchers[network+"|"+exchange] = w
			o.mu.Unlock()

			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				w.Run(ctx)
			}()
		}
	}
}

// HandlePairEvent routes an externally sourced pair event (websocket push)
// to the matching watcher. Unknown routes are dropped.
func (o *Orchestrator) HandlePairEvent(ctx context.Context, network, exchange string, ev chain.PairEvent) {
	o.mu.Lock()
	w := o.watchers[network+"|"+exchange]
	o.mu.Unlock()
	if w == nil {
		return
	}
	w.HandleEvent(ctx, ev)
}

// OpenPosition executes the entry for an accepted candidate and starts its
// engine. At most one non-closed position may exist per (network, token);
// a duplicate accept is dropped.
func (o *Orchestrator) OpenPosition(ctx context.Context, cand *domain.Candidate, a *domain.SecurityAssessment) {
	key := tokenKey(cand.Network, cand.TokenAddress)

	o.mu.Lock()
	if _, ok := o.claimed[key]; ok {
		o.mu.Unlock()
		o.logger.Printf("[orchestrator] position already open for token=%s network=%s, skipping",
			cand.TokenAddress, cand.Network)
		return
	}
	o.claimed[key] = struct{}{}
	o.mu.Unlock()

	// Claimed only in memory so far; release the slot on any failure path.
	if _, err := o.opts.Positions.GetOpenByToken(ctx, cand.Network, cand.TokenAddress); err == nil {
		o.releaseClaim(key)
		o.logger.Printf("[orchestrator] persisted position already open for token=%s network=%s, skipping",
			cand.TokenAddress, cand.Network)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		o.releaseClaim(key)
		o.logger.Printf("[orchestrator] open-position lookup failed for token=%s: %v", cand.TokenAddress, err)
		return
	}

	p, err := position.Enter(ctx, o.opts.Chain, &o.opts.Config.Trading, cand, a)
	if err != nil {
		o.releaseClaim(key)
		o.logger.Printf("[orchestrator] entry buy failed for token=%s network=%s: %v",
			cand.TokenAddress, cand.Network, err)
		return
	}
	observability.RecordBuy(p.Network)

	if err := o.opts.Positions.SaveOpen(ctx, p); err != nil {
		// The tokens are bought; keep managing the exposure in memory and
		// surface the persistence failure loudly.
		o.logger.Printf("[orchestrator] persist open position %s failed: %v", p.ID, err)
	}

	o.logger.Printf("[orchestrator] opened position %s token=%s network=%s entry=%.6g qty=%.6g cost=%.6g",
		p.ID, p.Token, p.Network, p.EntryPrice, p.Quantity, p.CostBasis)
	o.attachEngine(ctx, p)
}

// attachEngine starts the poll loop for an open position. The claimed slot
// is held until the engine closes the position.
func (o *Orchestrator) attachEngine(ctx context.Context, p *domain.Position) {
	key := tokenKey(p.Network, p.Token)

	o.mu.Lock()
	o.claimed[key] = struct{}{}
	o.mu.Unlock()

	eng := position.NewEngine(position.Options{
		Chain:    o.opts.Chain,
		Store:    o.opts.Positions,
		Samples:  o.opts.Samples,
		Trading:  &o.opts.Config.Trading,
		Interval: o.opts.EngineInterval,
		Logger:   o.logger,
		OnClose: func(closed *domain.Position) {
			o.detachEngine(closed)
		},
	}, p)

	o.mu.Lock()
	o.engines[p.ID] = eng
	observability.UpdateOpenPositions(len(o.engines))
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		eng.Run(ctx)
	}()
}

func (o *Orchestrator) detachEngine(p *domain.Position) {
	o.mu.Lock()
	delete(o.engines, p.ID)
	delete(o.claimed, tokenKey(p.Network, p.Token))
	observability.UpdateOpenPositions(len(o.engines))
	o.mu.Unlock()
}

func (o *Orchestrator) releaseClaim(key string) {
	o.mu.Lock()
	delete(o.claimed, key)
	o.mu.Unlock()
}

// OpenCount returns the number of live engines.
func (o *Orchestrator) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.engines)
}

func (o *Orchestrator) watcherInterval() time.Duration {
	if o.opts.WatcherInterval > 0 {
		return o.opts.WatcherInterval
	}
	return o.opts.Config.Watcher.PollInterval()
}
