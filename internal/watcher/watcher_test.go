package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/chain/stub"
	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/gate"
	"github.com/azmshoh/sniper-bot/internal/storage/memory"
)

const (
	testNetwork  = "bsc"
	testExchange = "pancakeswap"
	testPair     = "0x0000000000000000000000000000000000000001"
	testToken    = "0x0000000000000000000000000000000000000002"
)

type accepted struct {
	cand *domain.Candidate
	a    *domain.SecurityAssessment
}

type acceptRecorder struct {
	mu    sync.Mutex
	calls []accepted
}

func (r *acceptRecorder) accept(_ context.Context, c *domain.Candidate, a *domain.SecurityAssessment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, accepted{cand: c, a: a})
}

func (r *acceptRecorder) all() []accepted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]accepted(nil), r.calls...)
}

func goodAssessment() *domain.SecurityAssessment {
	return &domain.SecurityAssessment{
		LiquidityAmount:  25000,
		LiquidityLocked:  true,
		LockPlatform:     "Unicrypt",
		BuyTaxPct:        2,
		SellTaxPct:       3,
		SellSimulationOK: true,
	}
}

func testWatcher(t *testing.T, cl *stub.Client) (*Watcher, *acceptRecorder, *memory.RejectionStore) {
	t.Helper()

	rec := &acceptRecorder{}
	rejections := memory.NewRejectionStore()

	trading := &config.TradingConfig{
		StableChecks: 1,
	}
	w := New(Options{
		Network:  testNetwork,
		Exchange: testExchange,
		Chain:    cl,
		Policy: gate.Policy{
			MinLiquidity:  10000,
			MaxBuyTaxPct:  10,
			MaxSellTaxPct: 10,
		},
		Trading:           trading,
		Rejections:        rejections,
		OnAccept:          rec.accept,
		StabilityInterval: -1,
	})
	return w, rec, rejections
}

func TestPollAcceptsGoodCandidate(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, _ := testWatcher(t, cl)
	w.Poll(context.Background())

	calls := rec.all()
	require.Len(t, calls, 1)
	assert.Equal(t, testNetwork, calls[0].cand.Network)
	assert.Equal(t, testExchange, calls[0].cand.Exchange)
	assert.Equal(t, testPair, calls[0].cand.PairAddress)
	assert.Equal(t, testToken, calls[0].cand.TokenAddress)
	assert.NotEmpty(t, calls[0].cand.ID)
	assert.True(t, calls[0].a.LiquidityLocked)
	assert.Equal(t, uint64(100), w.cursor)
}

func TestPollDeduplicatesPairs(t *testing.T) {
	cl := stub.NewClient()
	ev := chain.PairEvent{PairAddress: testPair, TokenAddress: testToken, Block: 100}
	cl.QueuePairs(testNetwork, testExchange, ev)
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, _ := testWatcher(t, cl)
	w.Poll(context.Background())

	// Same pair surfaces again in a later poll.
	cl.QueuePairs(testNetwork, testExchange, ev)
	w.Poll(context.Background())

	assert.Len(t, rec.all(), 1)
}

func TestDedupeWindowEvictsOldest(t *testing.T) {
	w := New(Options{
		Network:      testNetwork,
		Exchange:     testExchange,
		DedupeWindow: 2,
	})

	assert.False(t, w.markSeen("a"))
	assert.False(t, w.markSeen("b"))
	assert.False(t, w.markSeen("c")) // evicts "a"
	assert.False(t, w.markSeen("a"))
	assert.True(t, w.markSeen("c"))
}

func TestPollRejectsAndPersists(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	a := goodAssessment()
	a.SellSimulationOK = false
	cl.SetAssessment(testToken, a)

	w, rec, rejections := testWatcher(t, cl)
	w.Poll(context.Background())

	assert.Empty(t, rec.all())
	saved := rejections.All()
	require.Len(t, saved, 1)
	assert.Equal(t, gate.ReasonHoneypot, saved[0].Reason)
	assert.Equal(t, testToken, saved[0].Candidate.TokenAddress)
}

func TestPollRejectsBlacklistedToken(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, rejections := testWatcher(t, cl)
	w.opts.Trading.Blacklist = []string{testToken}
	w.Poll(context.Background())

	assert.Empty(t, rec.all())
	saved := rejections.All()
	require.Len(t, saved, 1)
	assert.Equal(t, gate.ReasonBlacklisted, saved[0].Reason)
}

func TestPollRejectsOnAssessmentError(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	cl.SetAssessError(testToken, errors.New("rpc trouble"))

	w, rec, rejections := testWatcher(t, cl)
	w.Poll(context.Background())

	assert.Empty(t, rec.all())
	saved := rejections.All()
	require.Len(t, saved, 1)
	assert.Equal(t, gate.ReasonAssessmentUnavailable, saved[0].Reason)
}

func TestStableChecksRequireConsecutivePasses(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	// Liquidity looks fine on the first read and collapses on the second.
	low := goodAssessment()
	low.LiquidityAmount = 100
	cl.QueueAssessments(testToken, goodAssessment(), low)

	w, rec, rejections := testWatcher(t, cl)
	w.opts.Trading.StableChecks = 3
	w.Poll(context.Background())

	assert.Empty(t, rec.all())
	saved := rejections.All()
	require.Len(t, saved, 1)
	assert.Equal(t, gate.ReasonInsufficientLiquidity, saved[0].Reason)
}

func TestShutdownDuringStabilityWindowDropsCandidate(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, rejections := testWatcher(t, cl)
	w.opts.Trading.StableChecks = 2
	w.opts.StabilityInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Poll(ctx)

	// No verdict was reached, so nothing is recorded either way; the pair
	// gets a fresh look on the next run.
	assert.Empty(t, rec.all())
	assert.Empty(t, rejections.All())
}

func TestStableChecksPassWithSteadyLiquidity(t *testing.T) {
	cl := stub.NewClient()
	cl.QueuePairs(testNetwork, testExchange, chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 100,
	})
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, _ := testWatcher(t, cl)
	w.opts.Trading.StableChecks = 3
	w.Poll(context.Background())

	assert.Len(t, rec.all(), 1)
}

func TestHandleEventAdvancesCursor(t *testing.T) {
	cl := stub.NewClient()
	cl.SetAssessment(testToken, goodAssessment())

	w, rec, _ := testWatcher(t, cl)
	w.HandleEvent(context.Background(), chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 42,
	})

	assert.Len(t, rec.all(), 1)
	assert.Equal(t, uint64(42), w.cursor)

	// Replay of the same event is a no-op.
	w.HandleEvent(context.Background(), chain.PairEvent{
		PairAddress: testPair, TokenAddress: testToken, Block: 43,
	})
	assert.Len(t, rec.all(), 1)
}

func TestCandidateIDDeterministicAcrossRuns(t *testing.T) {
	cl := stub.NewClient()
	ev := chain.PairEvent{PairAddress: testPair, TokenAddress: testToken, Block: 100}
	cl.QueuePairs(testNetwork, testExchange, ev)
	a := goodAssessment()
	a.BuyTaxPct = 50
	cl.SetAssessment(testToken, a)

	w1, _, rejections := testWatcher(t, cl)
	w1.Poll(context.Background())
	require.Len(t, rejections.All(), 1)
	firstID := rejections.All()[0].Candidate.ID

	// A fresh watcher (process restart) rediscovers the same pair; the
	// rejection store sees the same ID and reports the duplicate, which
	// the watcher tolerates.
	cl2 := stub.NewClient()
	cl2.QueuePairs(testNetwork, testExchange, ev)
	cl2.SetAssessment(testToken, a)

	rec2 := &acceptRecorder{}
	w2 := New(Options{
		Network:           testNetwork,
		Exchange:          testExchange,
		Chain:             cl2,
		Policy:            gate.Policy{MinLiquidity: 10000, MaxBuyTaxPct: 10, MaxSellTaxPct: 10},
		Trading:           &config.TradingConfig{StableChecks: 1},
		Rejections:        rejections, // shared store, hits the duplicate path
		OnAccept:          rec2.accept,
		StabilityInterval: -1,
	})
	w2.Poll(context.Background())

	assert.Empty(t, rec2.all())
	require.Len(t, rejections.All(), 1)
	assert.Equal(t, firstID, rejections.All()[0].Candidate.ID)
}
