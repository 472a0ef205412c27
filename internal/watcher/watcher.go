// Package watcher discovers newly created trading pairs on one network and
// exchange, screens them through the security gate, and hands accepted
// candidates to the orchestrator. A watcher never terminates on error; a
// dead watcher is a silent coverage gap.
package watcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/gate"
	"github.com/azmshoh/sniper-bot/internal/idhash"
	"github.com/azmshoh/sniper-bot/internal/observability"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

const (
	defaultDedupeWindow      = 4096
	defaultStabilityInterval = 2 * time.Second
)

// AcceptFunc receives a candidate that cleared the gate together with its
// final assessment. Called synchronously from the watcher loop.
type AcceptFunc func(ctx context.Context, c *domain.Candidate, a *domain.SecurityAssessment)

// Options configures a Watcher.
type Options struct {
	Network  string
	Exchange string

	Chain      chain.Client
	Policy     gate.Policy
	Trading    *config.TradingConfig
	Rejections storage.RejectionStore
	OnAccept   AcceptFunc

	// Interval overrides the configured discovery poll interval.
	Interval time.Duration

	// DedupeWindow bounds the seen-pair set; oldest entries evict first.
	DedupeWindow int

	// StabilityInterval is the wait between consecutive stability-window
	// assessments. Negative disables the wait (tests).
	StabilityInterval time.Duration

	Logger *log.Logger
}

// Watcher polls one (network, exchange) for pair creations. Operations on
// one watcher are strictly sequential; mu serializes the poll loop with
// externally pushed events.
type Watcher struct {
	opts   Options
	logger *log.Logger

	mu     sync.Mutex
	cursor uint64

	// Bounded FIFO dedupe of pair addresses already emitted.
	seen      map[string]struct{}
	seenOrder []string
}

// New creates a watcher. The discovery cursor starts at zero; the first poll
// anchors it to the current chain head.
func New(opts Options) *Watcher {
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = defaultDedupeWindow
	}
	if opts.StabilityInterval == 0 {
		opts.StabilityInterval = defaultStabilityInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		opts:   opts,
		logger: logger,
		seen:   make(map[string]struct{}, opts.DedupeWindow),
	}
}

// Run polls until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	interval := w.opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Printf("[watcher %s/%s] started, poll interval %s", w.opts.Network, w.opts.Exchange, interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("[watcher %s/%s] stopped", w.opts.Network, w.opts.Exchange)
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one discovery pass. Exported so a push source (websocket logs)
// and tests can drive the same path without the ticker.
func (w *Watcher) Poll(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	events, cursor, err := w.opts.Chain.DiscoverNewPairs(ctx, w.opts.Network, w.opts.Exchange, w.cursor)
	if err != nil {
		// The chain client already burned its retry budget; log and try
		// again on the next tick with the cursor unchanged.
		w.logger.Printf("[watcher %s/%s] discovery failed: %v", w.opts.Network, w.opts.Exchange, err)
		return
	}
	w.cursor = cursor

	for _, ev := range events {
		if w.markSeen(ev.PairAddress) {
			continue
		}
		w.handlePair(ctx, ev)
	}
}

// HandleEvent feeds one externally sourced pair event (websocket push)
// through the same dedupe and gating path as polled events.
func (w *Watcher) HandleEvent(ctx context.Context, ev chain.PairEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ev.Block > w.cursor {
		w.cursor = ev.Block
	}
	if w.markSeen(ev.PairAddress) {
		return
	}
	w.handlePair(ctx, ev)
}

// markSeen records a pair address, evicting the oldest entry beyond the
// window. Returns true when the pair was already seen.
func (w *Watcher) markSeen(pair string) bool {
	if _, ok := w.seen[pair]; ok {
		return true
	}
	w.seen[pair] = struct{}{}
	w.seenOrder = append(w.seenOrder, pair)
	if len(w.seenOrder) > w.opts.DedupeWindow {
		oldest := w.seenOrder[0]
		w.seenOrder = w.seenOrder[1:]
		delete(w.seen, oldest)
	}
	return false
}

func (w *Watcher) handlePair(ctx context.Context, ev chain.PairEvent) {
	observability.RecordPairDiscovered(w.opts.Network)

	cand := &domain.Candidate{
		ID:           idhash.ComputeCandidateID(w.opts.Network, w.opts.Exchange, ev.PairAddress, ev.TokenAddress),
		Network:      w.opts.Network,
		Exchange:     w.opts.Exchange,
		PairAddress:  ev.PairAddress,
		TokenAddress: ev.TokenAddress,
		DiscoveredAt: time.Now().UTC(),
	}

	if w.opts.Trading.Blacklisted(cand.TokenAddress) {
		w.reject(ctx, cand, gate.ReasonBlacklisted)
		return
	}

	assessment, decision := w.evaluateStable(ctx, cand)
	if decision == nil {
		// Shutdown interrupted the stability window. No verdict was
		// reached, so nothing is persisted; the pair can resurface on a
		// later run.
		return
	}
	if decision.Verdict != gate.VerdictAccept {
		w.reject(ctx, cand, decision.Reason)
		return
	}

	observability.RecordCandidateAccepted(w.opts.Network)
	w.logger.Printf("[watcher %s/%s] accepted candidate token=%s pair=%s liquidity=%.2f locked=%t",
		w.opts.Network, w.opts.Exchange, cand.TokenAddress, cand.PairAddress,
		assessment.LiquidityAmount, assessment.LiquidityLocked)

	if w.opts.OnAccept != nil {
		w.opts.OnAccept(ctx, cand, assessment)
	}
}

// evaluateStable requires StableChecks consecutive passing evaluations
// before accepting; a freshly seeded pool can report healthy liquidity for
// one block and rug the next. The first failing decision rejects. A nil
// decision means the context was canceled before a verdict was reached.
func (w *Watcher) evaluateStable(ctx context.Context, cand *domain.Candidate) (*domain.SecurityAssessment, *gate.Decision) {
	checks := w.opts.Trading.StableChecks
	if checks <= 0 {
		checks = 1
	}

	var (
		assessment *domain.SecurityAssessment
		decision   *gate.Decision
	)
	for i := 0; i < checks; i++ {
		if i > 0 && w.opts.StabilityInterval > 0 {
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(w.opts.StabilityInterval):
			}
		}

		a, err := w.opts.Chain.Assess(ctx, cand)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			w.logger.Printf("[watcher %s/%s] assessment failed for %s: %v",
				w.opts.Network, w.opts.Exchange, cand.TokenAddress, err)
			return nil, gate.Evaluate(nil, w.opts.Policy)
		}

		decision = gate.Evaluate(a, w.opts.Policy)
		if decision.Verdict != gate.VerdictAccept {
			return a, decision
		}
		assessment = a
	}
	return assessment, decision
}

// reject persists the terminal rejection. A duplicate key means the pair
// was already rejected on a previous run; that is not an error.
func (w *Watcher) reject(ctx context.Context, cand *domain.Candidate, reason string) {
	observability.RecordCandidateRejected(w.opts.Network, reason)
	w.logger.Printf("[watcher %s/%s] rejected candidate token=%s pair=%s reason=%s",
		w.opts.Network, w.opts.Exchange, cand.TokenAddress, cand.PairAddress, reason)

	if w.opts.Rejections == nil {
		return
	}
	if err := w.opts.Rejections.SaveCandidateRejection(ctx, cand, reason); err != nil &&
		!errors.Is(err, storage.ErrDuplicateKey) {
		w.logger.Printf("[watcher %s/%s] persist rejection: %v", w.opts.Network, w.opts.Exchange, err)
	}
}
