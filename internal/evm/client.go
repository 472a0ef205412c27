package evm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/config"
	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/observability"
	"github.com/azmshoh/sniper-bot/internal/retry"
	"github.com/azmshoh/sniper-bot/internal/rpcpool"
)

const (
	// quoteDecimals is the decimals of every supported quote currency
	// (BNB, ETH, MATIC all use 18).
	quoteDecimals = 18

	// slippageBps is the tolerated slippage on swaps, in basis points.
	slippageBps = 1000

	// ammFeeAllowance is the round-trip AMM fee (2 x 0.3%) excluded from
	// the tax estimate.
	ammFeeAllowance = 0.006

	// taxProbeWei is the quote amount used to probe taxes (0.01 units).
	taxProbeWei = 1e16

	swapDeadline        = 2 * time.Minute
	receiptPollInterval = 2 * time.Second
	receiptTimeout      = 2 * time.Minute
)

// Burn sinks and well-known liquidity locker contracts. LP supply held by
// any of these counts as locked.
var (
	burnAddresses = []string{
		"0x000000000000000000000000000000000000dead",
		"0x0000000000000000000000000000000000000000",
	}
	knownLockers = map[string]string{
		"0x663a5c229c09b049e36dcc11a9b0d4a8eb9db214": "Unicrypt",
		"0x407993575c91ce7643a4d4ccacc9a98c36ee1bbe": "PinkLock",
		"0xe2fe530c047f2d85298b07d9333c05737f1435fb": "Team Finance",
	}
)

// Options configures Client.
type Options struct {
	Pool     *rpcpool.Pool
	Networks map[string]config.NetworkConfig
	Retry    config.RetryConfig
	// Wallet is the account the node signs transactions for.
	Wallet  string
	Timeout time.Duration
	Logger  *log.Logger
}

// Client implements chain.Client over EVM JSON-RPC.
type Client struct {
	pool     *rpcpool.Pool
	networks map[string]config.NetworkConfig
	retryCfg config.RetryConfig
	wallet   string
	timeout  time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	rpcs     map[string]*RPCClient // by endpoint URL
	decimals map[string]int        // by network|token
}

// NewClient creates an EVM chain client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		pool:     opts.Pool,
		networks: opts.Networks,
		retryCfg: opts.Retry,
		wallet:   opts.Wallet,
		timeout:  opts.Timeout,
		logger:   logger,
		rpcs:     make(map[string]*RPCClient),
		decimals: make(map[string]int),
	}
}

var _ chain.Client = (*Client)(nil)

// rpcFor returns the cached transport for an endpoint URL.
func (c *Client) rpcFor(url string) *RPCClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	rpc, ok := c.rpcs[url]
	if !ok {
		rpc = NewRPCClient(url, WithTimeout(c.timeout))
		c.rpcs[url] = rpc
	}
	return rpc
}

// call runs one JSON-RPC method with endpoint failover under a retry budget.
// Each attempt acquires the currently healthiest endpoint, so consecutive
// attempts naturally move away from a failing provider. If every attempt
// landed on the same endpoint and all failed, that endpoint is escalated to
// BANNED.
func (c *Client) call(ctx context.Context, network, method string, params []interface{}, result interface{}) error {
	budget := retry.NewBudget(c.retryCfg.MaxAttempts, c.retryCfg.Backoff(), c.retryCfg.BackoffMax())

	var lastErr error
	var lastEp *domain.Endpoint
	sameEndpoint := true

	for budget.Next(ctx) {
		ep, err := c.pool.Acquire(ctx, network)
		if err != nil {
			return err
		}
		if lastEp != nil && ep.URL != lastEp.URL {
			sameEndpoint = false
		}

		start := time.Now()
		err = c.rpcFor(ep.URL).Call(ctx, method, params, result)
		observability.RecordRPCLatency(method, time.Since(start).Seconds())

		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// The node answered; the call itself reverted or is invalid.
			// The endpoint is healthy and another one will not help.
			c.pool.Report(ep, domain.OutcomeSuccess)
			observability.RecordEndpointOutcome(network, string(domain.OutcomeSuccess))
			return err
		}

		outcome := outcomeOf(err)
		c.pool.Report(ep, outcome)
		observability.RecordEndpointOutcome(network, string(outcome))
		observability.UpdateActiveEndpoints(network, c.pool.ActiveCount(network))

		if err == nil {
			return nil
		}
		lastErr = err
		lastEp = ep
		c.logger.Printf("[evm] %s via %s: %v", method, ep.URL, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if lastEp != nil && sameEndpoint {
		c.pool.Escalate(lastEp)
	}
	return fmt.Errorf("%s on %s: retry budget exhausted: %w", method, network, lastErr)
}

// ethCall performs a read-only contract call.
func (c *Client) ethCall(ctx context.Context, network, to, data string) (string, error) {
	var out string
	msg := callMsg{To: to, Data: "0x" + strings.TrimPrefix(data, "0x")}
	err := c.call(ctx, network, "eth_call", []interface{}{msg, "latest"}, &out)
	return out, err
}

func (c *Client) exchange(network, exchange string) (config.ExchangeConfig, error) {
	n, ok := c.networks[network]
	if !ok {
		return config.ExchangeConfig{}, fmt.Errorf("unknown network %q", network)
	}
	ex, ok := n.Exchanges[exchange]
	if !ok {
		return config.ExchangeConfig{}, fmt.Errorf("unknown exchange %q on %q", exchange, network)
	}
	return ex, nil
}

// DiscoverNewPairs scans factory PairCreated logs since the cursor. A zero
// cursor starts at the chain head: the bot snipes fresh pairs, it does not
// backfill history.
func (c *Client) DiscoverNewPairs(ctx context.Context, network, exchange string, sinceBlock uint64) ([]chain.PairEvent, uint64, error) {
	ex, err := c.exchange(network, exchange)
	if err != nil {
		return nil, sinceBlock, err
	}

	var latestHex string
	if err := c.call(ctx, network, "eth_blockNumber", nil, &latestHex); err != nil {
		return nil, sinceBlock, err
	}
	latest, err := hexUint64(latestHex)
	if err != nil {
		return nil, sinceBlock, err
	}

	if sinceBlock == 0 {
		return nil, latest, nil
	}
	if latest <= sinceBlock {
		return nil, sinceBlock, nil
	}

	filter := logFilter{
		FromBlock: hexQuantity(sinceBlock + 1),
		ToBlock:   hexQuantity(latest),
		Address:   ex.Factory,
		Topics:    []string{TopicPairCreated},
	}
	var logs []Log
	if err := c.call(ctx, network, "eth_getLogs", []interface{}{filter}, &logs); err != nil {
		return nil, sinceBlock, err
	}

	return PairEventsFromLogs(logs, ex.WrappedToken), latest, nil
}

// PairEventsFromLogs decodes PairCreated logs, keeping only pairs where one
// side is the quote currency.
func PairEventsFromLogs(logs []Log, wrappedToken string) []chain.PairEvent {
	wrapped := strings.ToLower(wrappedToken)

	var events []chain.PairEvent
	for _, lg := range logs {
		if lg.Removed || len(lg.Topics) < 3 {
			continue
		}
		pair, err := wordAddress(lg.Data, 0)
		if err != nil {
			continue
		}

		token0 := topicAddress(lg.Topics[1])
		token1 := topicAddress(lg.Topics[2])
		var token string
		switch wrapped {
		case token0:
			token = token1
		case token1:
			token = token0
		default:
			// No quote-currency side; not tradable through our router path.
			continue
		}

		block, err := hexUint64(lg.BlockNumber)
		if err != nil {
			continue
		}
		events = append(events, chain.PairEvent{
			PairAddress:  pair,
			TokenAddress: token,
			Block:        block,
		})
	}
	return events
}

// Assess computes liquidity, lock status, tax estimate and the sell
// simulation for one candidate. Any failure wraps chain.ErrAssessmentFailed.
func (c *Client) Assess(ctx context.Context, cand *domain.Candidate) (*domain.SecurityAssessment, error) {
	ex, err := c.exchange(cand.Network, cand.Exchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrAssessmentFailed, err)
	}

	liquidity, err := c.quoteReserve(ctx, cand.Network, cand.PairAddress, ex.WrappedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: reserves: %v", chain.ErrAssessmentFailed, err)
	}

	locked, platform := c.liquidityLock(ctx, cand.Network, cand.PairAddress)

	buyTax, sellTax, roundTripOK, err := c.estimateTaxes(ctx, cand.Network, ex, cand.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: taxes: %v", chain.ErrAssessmentFailed, err)
	}

	sellOK := roundTripOK && c.transferProbe(ctx, cand.Network, cand.PairAddress, cand.TokenAddress)

	return &domain.SecurityAssessment{
		LiquidityAmount:  liquidity,
		LiquidityLocked:  locked,
		LockPlatform:     platform,
		BuyTaxPct:        buyTax,
		SellTaxPct:       sellTax,
		SellSimulationOK: sellOK,
	}, nil
}

// quoteReserve returns the pair's quote-currency reserve.
func (c *Client) quoteReserve(ctx context.Context, network, pair, wrappedToken string) (float64, error) {
	out, err := c.ethCall(ctx, network, pair, selGetReserves)
	if err != nil {
		return 0, err
	}
	reserve0, err := wordBigInt(out, 0)
	if err != nil {
		return 0, err
	}
	reserve1, err := wordBigInt(out, 1)
	if err != nil {
		return 0, err
	}

	t0Out, err := c.ethCall(ctx, network, pair, selToken0)
	if err != nil {
		return 0, err
	}
	token0, err := wordAddress(t0Out, 0)
	if err != nil {
		return 0, err
	}

	reserve := reserve1
	if strings.EqualFold(token0, wrappedToken) {
		reserve = reserve0
	}
	return unitsToFloat(reserve, quoteDecimals), nil
}

// liquidityLock checks how much LP supply sits in burn sinks or known locker
// contracts. Held share of 50% or more counts as locked. Best effort: a
// failed holder lookup just skips that holder.
func (c *Client) liquidityLock(ctx context.Context, network, pair string) (bool, string) {
	out, err := c.ethCall(ctx, network, pair, selTotalSupply)
	if err != nil {
		return false, ""
	}
	supply, err := wordBigInt(out, 0)
	if err != nil || supply.Sign() == 0 {
		return false, ""
	}

	lockedTotal := new(big.Int)
	bestName := ""
	bestBalance := new(big.Int)

	checkHolder := func(addr, name string) {
		balOut, err := c.ethCall(ctx, network, pair, encodeCall(selBalanceOf, addressWord(addr)))
		if err != nil {
			return
		}
		bal, err := wordBigInt(balOut, 0)
		if err != nil || bal.Sign() == 0 {
			return
		}
		lockedTotal.Add(lockedTotal, bal)
		if bal.Cmp(bestBalance) > 0 {
			bestBalance = bal
			bestName = name
		}
	}

	for _, addr := range burnAddresses {
		checkHolder(addr, "Burned")
	}
	for addr, name := range knownLockers {
		checkHolder(addr, name)
	}

	// locked iff lockedTotal / supply >= 0.5
	locked := new(big.Int).Mul(lockedTotal, big.NewInt(2)).Cmp(supply) >= 0
	if !locked {
		return false, ""
	}
	return true, bestName
}

// estimateTaxes probes a small quote round trip through the router. Loss
// beyond the AMM fee is attributed to token taxes, split evenly between buy
// and sell. A reverting sell leg means the sell path is broken.
func (c *Client) estimateTaxes(ctx context.Context, network string, ex config.ExchangeConfig, token string) (buyTax, sellTax float64, sellOK bool, err error) {
	probe := big.NewInt(taxProbeWei)

	tokensOut, err := c.amountsOut(ctx, network, ex.Router, probe, []string{ex.WrappedToken, token})
	if err != nil {
		return 0, 0, false, err
	}
	if tokensOut.Sign() == 0 {
		return 0, 0, false, fmt.Errorf("zero buy quote")
	}

	quoteBack, err := c.amountsOut(ctx, network, ex.Router, tokensOut, []string{token, ex.WrappedToken})
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// Sell leg reverts on-chain; treat as honeypot, not an
			// assessment failure.
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}

	loss := 1 - unitsToFloat(quoteBack, quoteDecimals)/unitsToFloat(probe, quoteDecimals)
	taxTotal := (loss - ammFeeAllowance) * 100
	if taxTotal < 0 {
		taxTotal = 0
	}
	return taxTotal / 2, taxTotal / 2, true, nil
}

// transferProbe simulates a minimal token transfer out of the pair, which
// holds a balance and needs no allowance. Honeypots that block transfers for
// unprivileged holders revert or return false here.
func (c *Client) transferProbe(ctx context.Context, network, pair, token string) bool {
	msg := callMsg{From: pair, To: token, Data: "0x" + encodeTransfer(c.wallet, big.NewInt(1))}

	var out string
	if err := c.call(ctx, network, "eth_call", []interface{}{msg, "latest"}, &out); err != nil {
		return false
	}
	// Tokens returning no data on success are accepted, like ERC-20 allows.
	if strings.TrimPrefix(out, "0x") == "" {
		return true
	}
	v, err := wordBigInt(out, 0)
	return err == nil && v.Sign() != 0
}

// amountsOut runs router getAmountsOut and returns the final path amount.
func (c *Client) amountsOut(ctx context.Context, network, router string, amountIn *big.Int, path []string) (*big.Int, error) {
	out, err := c.ethCall(ctx, network, router, encodeGetAmountsOut(amountIn, path))
	if err != nil {
		return nil, err
	}
	n, err := wordBigInt(out, 1)
	if err != nil {
		return nil, err
	}
	if !n.IsInt64() || n.Int64() == 0 {
		return nil, fmt.Errorf("empty amounts array")
	}
	return wordBigInt(out, 2+int(n.Int64())-1)
}

// tokenDecimals reads and caches a token's decimals.
func (c *Client) tokenDecimals(ctx context.Context, network, token string) (int, error) {
	key := network + "|" + strings.ToLower(token)

	c.mu.Lock()
	if d, ok := c.decimals[key]; ok {
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	out, err := c.ethCall(ctx, network, token, selDecimals)
	if err != nil {
		return 0, err
	}
	v, err := wordBigInt(out, 0)
	if err != nil {
		return 0, err
	}
	d := int(v.Int64())

	c.mu.Lock()
	c.decimals[key] = d
	c.mu.Unlock()
	return d, nil
}

// CurrentPrice quotes one whole token in quote currency via the router.
func (c *Client) CurrentPrice(ctx context.Context, req chain.TradeRequest) (float64, error) {
	ex, err := c.exchange(req.Network, req.Exchange)
	if err != nil {
		return 0, err
	}
	dec, err := c.tokenDecimals(ctx, req.Network, req.Token)
	if err != nil {
		return 0, err
	}

	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
	out, err := c.amountsOut(ctx, req.Network, ex.Router, oneToken, []string{req.Token, ex.WrappedToken})
	if err != nil {
		return 0, err
	}
	return unitsToFloat(out, quoteDecimals), nil
}

// WalletBalance returns the wallet's quote-currency balance.
func (c *Client) WalletBalance(ctx context.Context, network string) (float64, error) {
	var out string
	if err := c.call(ctx, network, "eth_getBalance", []interface{}{c.wallet, "latest"}, &out); err != nil {
		return 0, err
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(out, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("parse balance %q", out)
	}
	return unitsToFloat(v, quoteDecimals), nil
}

// Buy swaps quoteAmount of quote currency into the token and measures the
// filled quantity from the wallet's token balance delta, so transfer taxes
// are already reflected in the returned fill.
func (c *Client) Buy(ctx context.Context, req chain.TradeRequest, quoteAmount float64) (*chain.Fill, error) {
	ex, err := c.exchange(req.Network, req.Exchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrExecution, err)
	}
	dec, err := c.tokenDecimals(ctx, req.Network, req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: decimals: %v", chain.ErrExecution, err)
	}

	quoteUnits := floatToUnits(quoteAmount, quoteDecimals)
	path := []string{ex.WrappedToken, req.Token}

	expected, err := c.amountsOut(ctx, req.Network, ex.Router, quoteUnits, path)
	if err != nil {
		return nil, fmt.Errorf("%w: buy quote: %v", chain.ErrExecution, err)
	}
	minOut := applySlippage(expected)

	before, err := c.tokenBalance(ctx, req.Network, req.Token, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", chain.ErrExecution, err)
	}

	deadline := time.Now().Add(swapDeadline).Unix()
	tx := sendTxMsg{
		From:  c.wallet,
		To:    ex.Router,
		Value: "0x" + quoteUnits.Text(16),
		Data:  "0x" + encodeSwapETHForTokens(minOut, path, c.wallet, deadline),
	}
	if err := c.sendAndConfirm(ctx, req.Network, tx); err != nil {
		return nil, fmt.Errorf("%w: buy: %v", chain.ErrExecution, err)
	}

	after, err := c.tokenBalance(ctx, req.Network, req.Token, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", chain.ErrExecution, err)
	}

	delta := new(big.Int).Sub(after, before)
	quantity := unitsToFloat(delta, dec)
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: buy confirmed but no tokens received", chain.ErrExecution)
	}

	return &chain.Fill{
		Quantity:    quantity,
		Price:       quoteAmount / quantity,
		QuoteAmount: quoteAmount,
	}, nil
}

// Sell approves the router and swaps quantity tokens back to quote currency.
func (c *Client) Sell(ctx context.Context, req chain.TradeRequest, quantity float64) (*chain.Fill, error) {
	ex, err := c.exchange(req.Network, req.Exchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrExecution, err)
	}
	dec, err := c.tokenDecimals(ctx, req.Network, req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: decimals: %v", chain.ErrExecution, err)
	}

	units := floatToUnits(quantity, dec)
	path := []string{req.Token, ex.WrappedToken}

	expected, err := c.amountsOut(ctx, req.Network, ex.Router, units, path)
	if err != nil {
		return nil, fmt.Errorf("%w: sell quote: %v", chain.ErrExecution, err)
	}
	minOut := applySlippage(expected)

	approveTx := sendTxMsg{
		From: c.wallet,
		To:   req.Token,
		Data: "0x" + encodeApprove(ex.Router, units),
	}
	if err := c.sendAndConfirm(ctx, req.Network, approveTx); err != nil {
		return nil, fmt.Errorf("%w: approve: %v", chain.ErrExecution, err)
	}

	deadline := time.Now().Add(swapDeadline).Unix()
	swapTx := sendTxMsg{
		From: c.wallet,
		To:   ex.Router,
		Data: "0x" + encodeSwapTokensForETH(units, minOut, path, c.wallet, deadline),
	}
	if err := c.sendAndConfirm(ctx, req.Network, swapTx); err != nil {
		return nil, fmt.Errorf("%w: sell: %v", chain.ErrExecution, err)
	}

	quoteOut := unitsToFloat(expected, quoteDecimals)
	return &chain.Fill{
		Quantity:    quantity,
		Price:       quoteOut / quantity,
		QuoteAmount: quoteOut,
	}, nil
}

// tokenBalance reads an ERC-20 balance as raw units.
func (c *Client) tokenBalance(ctx context.Context, network, token, holder string) (*big.Int, error) {
	out, err := c.ethCall(ctx, network, token, encodeCall(selBalanceOf, addressWord(holder)))
	if err != nil {
		return nil, err
	}
	return wordBigInt(out, 0)
}

// sendAndConfirm submits a transaction and polls for a successful receipt.
func (c *Client) sendAndConfirm(ctx context.Context, network string, tx sendTxMsg) error {
	var txHash string
	if err := c.call(ctx, network, "eth_sendTransaction", []interface{}{tx}, &txHash); err != nil {
		return err
	}

	deadline := time.Now().Add(receiptTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(receiptPollInterval):
		}

		var receipt *txReceipt
		if err := c.call(ctx, network, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
			c.logger.Printf("[evm] receipt %s: %v", txHash, err)
		} else if receipt != nil {
			if receipt.Status == "0x1" {
				return nil
			}
			return fmt.Errorf("transaction %s reverted", txHash)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("transaction %s not confirmed after %v", txHash, receiptTimeout)
		}
	}
}

// applySlippage reduces an expected amount by the slippage tolerance.
func applySlippage(expected *big.Int) *big.Int {
	out := new(big.Int).Mul(expected, big.NewInt(10000-slippageBps))
	return out.Div(out, big.NewInt(10000))
}
