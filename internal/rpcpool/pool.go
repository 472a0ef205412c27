// Package rpcpool tracks per-network RPC endpoint reliability and selects
// the healthiest endpoint for each remote call. Score-weighted selection
// avoids herding every retry onto the endpoint that just failed, while
// bounded cooldown avoids permanently discarding one that had a transient
// outage.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// ErrNoEndpointAvailable is returned by Acquire when every endpoint for a
// network is banned or cooling down.
var ErrNoEndpointAvailable = errors.New("no endpoint available")

// Score bounds.
const (
	scoreCeiling = 1.0
	scoreInitial = 0.5
	// seedScore is the initial score for endpoints that worked during the
	// previous run, so they are probed first after a restart.
	seedScore = 0.8
)

// Options configures a Pool.
type Options struct {
	// FailureThreshold is the consecutive-failure count that moves an
	// endpoint from ACTIVE to COOLING_DOWN.
	FailureThreshold int
	// CooldownBase is the first cooldown duration; each further failure
	// streak doubles it up to CooldownMax.
	CooldownBase time.Duration
	CooldownMax  time.Duration
	// ScoreGain controls how fast the score recovers toward the ceiling.
	ScoreGain float64
	// ScoreDecay is the multiplicative penalty applied on failure.
	ScoreDecay float64
	// RatePerSecond limits calls per endpoint so a hot retry loop cannot
	// hammer a single provider.
	RatePerSecond float64

	// Store receives endpoint outcomes for persistence. Optional.
	Store  storage.EndpointStore
	Logger *log.Logger
}

// Pool is the shared endpoint registry. All watchers and engines for a
// network route their calls through the same pool instance.
type Pool struct {
	opts Options

	mu        sync.Mutex
	endpoints map[string][]*entry // by network, insertion order preserved

	logger *log.Logger
}

type entry struct {
	ep      *domain.Endpoint
	limiter *rate.Limiter
}

// New creates an empty pool.
func New(opts Options) *Pool {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.CooldownBase <= 0 {
		opts.CooldownBase = 5 * time.Second
	}
	if opts.CooldownMax <= 0 {
		opts.CooldownMax = 5 * time.Minute
	}
	if opts.ScoreGain <= 0 {
		opts.ScoreGain = 0.2
	}
	if opts.ScoreDecay <= 0 {
		opts.ScoreDecay = 0.5
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		opts:      opts,
		endpoints: make(map[string][]*entry),
		logger:    logger,
	}
}

// AddNetwork registers the endpoints of a network. URLs in working are
// seeded with a higher initial score so the previous run's healthy
// endpoints are preferred after a restart.
func (p *Pool) AddNetwork(network string, urls []string, working []string) {
	workingSet := make(map[string]bool, len(working))
	for _, u := range working {
		workingSet[u] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, url := range urls {
		score := scoreInitial
		if workingSet[url] {
			score = seedScore
		}
		p.endpoints[network] = append(p.endpoints[network], &entry{
			ep: &domain.Endpoint{
				Network: network,
				URL:     url,
				Score:   score,
				State:   domain.EndpointActive,
			},
			limiter: rate.NewLimiter(rate.Limit(p.opts.RatePerSecond), int(p.opts.RatePerSecond)+1),
		})
	}
}

// Acquire returns the available endpoint with the highest reliability score
// for the network, waiting on its rate limiter before handing it out.
// Cooling-down endpoints whose cooldown has elapsed are re-activated here
// (probe on next use).
func (p *Pool) Acquire(ctx context.Context, network string) (*domain.Endpoint, error) {
	p.mu.Lock()
	entries, ok := p.endpoints[network]
	if !ok || len(entries) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("network %q: %w", network, ErrNoEndpointAvailable)
	}

	now := time.Now()
	var best *entry
	for _, e := range entries {
		if !e.ep.Available(now) {
			continue
		}
		if best == nil || e.ep.Score > best.ep.Score {
			best = e
		}
	}
	if best != nil && best.ep.State == domain.EndpointCoolingDown {
		// Cooldown elapsed and the endpoint won selection: the call it is
		// handed to is its probe. Unselected entries keep their state.
		best.ep.State = domain.EndpointActive
	}
	p.mu.Unlock()

	if best == nil {
		return nil, fmt.Errorf("network %q: %w", network, ErrNoEndpointAvailable)
	}

	if err := best.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return best.ep, nil
}

// Report records the outcome of one call through the endpoint and adjusts
// its reliability state.
func (p *Pool) Report(ep *domain.Endpoint, outcome domain.Outcome) {
	p.mu.Lock()
	switch outcome {
	case domain.OutcomeSuccess:
		ep.Score += (scoreCeiling - ep.Score) * p.opts.ScoreGain
		ep.ConsecutiveFailures = 0
		if ep.State == domain.EndpointCoolingDown {
			ep.State = domain.EndpointActive
		}
	case domain.OutcomeTimeout, domain.OutcomeError:
		ep.Score *= p.opts.ScoreDecay
		ep.ConsecutiveFailures++
		if ep.State == domain.EndpointActive && ep.ConsecutiveFailures >= p.opts.FailureThreshold {
			cooldown := p.cooldownFor(ep.ConsecutiveFailures)
			ep.State = domain.EndpointCoolingDown
			ep.CooldownUntil = time.Now().Add(cooldown)
			p.logger.Printf("endpoint %s (%s) cooling down for %v after %d consecutive failures",
				ep.URL, ep.Network, cooldown, ep.ConsecutiveFailures)
		}
	}
	p.mu.Unlock()

	if p.opts.Store != nil {
		if err := p.opts.Store.RecordOutcome(context.Background(), ep.Network, ep.URL, outcome, time.Now()); err != nil {
			p.logger.Printf("record endpoint outcome %s: %v", ep.URL, err)
		}
	}
}

// cooldownFor computes the exponential cooldown for a failure streak.
// Caller holds the pool lock.
func (p *Pool) cooldownFor(failures int) time.Duration {
	cooldown := p.opts.CooldownBase
	for i := p.opts.FailureThreshold; i < failures; i++ {
		cooldown *= 2
		if cooldown >= p.opts.CooldownMax {
			return p.opts.CooldownMax
		}
	}
	if cooldown > p.opts.CooldownMax {
		cooldown = p.opts.CooldownMax
	}
	return cooldown
}

// Escalate bans an endpoint. Called when a whole-network retry budget was
// exhausted and this endpoint kept failing; a banned endpoint is excluded
// from selection until Reset. A ban requires the consecutive-failure
// threshold to have been crossed: below it the endpoint keeps the cooldown
// path, so a short retry budget cannot permanently ban a network's only
// endpoint.
func (p *Pool) Escalate(ep *domain.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ep.State == domain.EndpointBanned {
		return
	}
	if ep.ConsecutiveFailures < p.opts.FailureThreshold {
		return
	}
	ep.State = domain.EndpointBanned
	p.logger.Printf("endpoint %s (%s) banned after %d consecutive failures",
		ep.URL, ep.Network, ep.ConsecutiveFailures)
}

// Reset re-activates every banned endpoint of a network.
func (p *Pool) Reset(network string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.endpoints[network] {
		if e.ep.State == domain.EndpointBanned {
			e.ep.State = domain.EndpointActive
			e.ep.ConsecutiveFailures = 0
			e.ep.Score = scoreInitial
		}
	}
}

// ActiveCount returns the number of currently selectable endpoints for a
// network. Used by observability gauges.
func (p *Pool) ActiveCount(network string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var n int
	for _, e := range p.endpoints[network] {
		if e.ep.Available(now) {
			n++
		}
	}
	return n
}
