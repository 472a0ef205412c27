// Package stub provides a scriptable in-memory chain.Client for tests.
package stub

import (
	"context"
	"sync"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/domain"
)

// Client implements chain.Client for testing. Scripts are keyed by token
// address; price scripts are consumed one value per call so a test can lay
// out an exact price path.
type Client struct {
	mu sync.Mutex

	pairQueues   map[string][]chain.PairEvent // keyed by network|exchange
	assessments  map[string]*domain.SecurityAssessment
	assessQueues map[string][]*domain.SecurityAssessment
	assessErrs   map[string]error
	prices       map[string][]float64
	priceErrs    map[string]error
	buyErrs      map[string]error
	sellErrs     map[string]error
	balances     map[string]float64

	buys  []TradeCall
	sells []TradeCall
}

// TradeCall records one Buy or Sell invocation.
type TradeCall struct {
	Req    chain.TradeRequest
	Amount float64 // quote amount for buys, token quantity for sells
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		pairQueues:   make(map[string][]chain.PairEvent),
		assessments:  make(map[string]*domain.SecurityAssessment),
		assessQueues: make(map[string][]*domain.SecurityAssessment),
		assessErrs:   make(map[string]error),
		prices:       make(map[string][]float64),
		priceErrs:    make(map[string]error),
		buyErrs:      make(map[string]error),
		sellErrs:     make(map[string]error),
		balances:     make(map[string]float64),
	}
}

var _ chain.Client = (*Client)(nil)

func pairKey(network, exchange string) string { return network + "|" + exchange }

// QueuePairs schedules pair events to be returned by the next
// DiscoverNewPairs call for the given network and exchange.
func (c *Client) QueuePairs(network, exchange string, events ...chain.PairEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pairKey(network, exchange)
	c.pairQueues[key] = append(c.pairQueues[key], events...)
}

// SetAssessment scripts the assessment returned for a token.
func (c *Client) SetAssessment(token string, a *domain.SecurityAssessment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessments[token] = a
}

// QueueAssessments schedules assessments for a token, consumed one per
// Assess call. The last assessment repeats once the queue drains. Takes
// precedence over SetAssessment.
func (c *Client) QueueAssessments(token string, assessments ...*domain.SecurityAssessment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessQueues[token] = append(c.assessQueues[token], assessments...)
}

// SetAssessError scripts an assessment failure for a token.
func (c *Client) SetAssessError(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessErrs[token] = err
}

// QueuePrices schedules prices for a token, consumed one per CurrentPrice
// call. The last price repeats once the queue drains.
func (c *Client) QueuePrices(token string, prices ...float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[token] = append(c.prices[token], prices...)
}

// SetPriceError scripts a price-fetch failure for a token.
func (c *Client) SetPriceError(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priceErrs[token] = err
}

// SetBuyError scripts a buy failure for a token. Pass nil to clear.
func (c *Client) SetBuyError(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.buyErrs, token)
		return
	}
	c.buyErrs[token] = err
}

// SetSellError scripts a sell failure for a token. Pass nil to clear.
func (c *Client) SetSellError(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.sellErrs, token)
		return
	}
	c.sellErrs[token] = err
}

// SetBalance scripts the wallet balance for a network.
func (c *Client) SetBalance(network string, balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[network] = balance
}

// Buys returns all recorded buy calls.
func (c *Client) Buys() []TradeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TradeCall(nil), c.buys...)
}

// Sells returns all recorded sell calls.
func (c *Client) Sells() []TradeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TradeCall(nil), c.sells...)
}

// DiscoverNewPairs drains the scripted pair queue.
func (c *Client) DiscoverNewPairs(_ context.Context, network, exchange string, sinceBlock uint64) ([]chain.PairEvent, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pairKey(network, exchange)
	events := c.pairQueues[key]
	c.pairQueues[key] = nil

	cursor := sinceBlock
	for _, ev := range events {
		if ev.Block > cursor {
			cursor = ev.Block
		}
	}
	return events, cursor, nil
}

// Assess returns the scripted assessment for the candidate's token.
func (c *Client) Assess(_ context.Context, cand *domain.Candidate) (*domain.SecurityAssessment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.assessErrs[cand.TokenAddress]; ok {
		return nil, err
	}
	if queue := c.assessQueues[cand.TokenAddress]; len(queue) > 0 {
		a := queue[0]
		if len(queue) > 1 {
			c.assessQueues[cand.TokenAddress] = queue[1:]
		}
		copied := *a
		return &copied, nil
	}
	if a, ok := c.assessments[cand.TokenAddress]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, chain.ErrAssessmentFailed
}

// CurrentPrice consumes the next scripted price for the token.
func (c *Client) CurrentPrice(_ context.Context, req chain.TradeRequest) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.priceErrs[req.Token]; ok {
		return 0, err
	}
	queue := c.prices[req.Token]
	if len(queue) == 0 {
		return 0, chain.ErrExecution
	}
	price := queue[0]
	if len(queue) > 1 {
		c.prices[req.Token] = queue[1:]
	}
	return price, nil
}

// Buy fills at the token's current scripted price.
func (c *Client) Buy(_ context.Context, req chain.TradeRequest, quoteAmount float64) (*chain.Fill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.buyErrs[req.Token]; ok {
		return nil, err
	}
	queue := c.prices[req.Token]
	if len(queue) == 0 {
		return nil, chain.ErrExecution
	}
	price := queue[0]

	c.buys = append(c.buys, TradeCall{Req: req, Amount: quoteAmount})
	return &chain.Fill{
		Quantity:    quoteAmount / price,
		Price:       price,
		QuoteAmount: quoteAmount,
	}, nil
}

// Sell fills at the token's current scripted price.
func (c *Client) Sell(_ context.Context, req chain.TradeRequest, quantity float64) (*chain.Fill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.sellErrs[req.Token]; ok {
		return nil, err
	}
	queue := c.prices[req.Token]
	if len(queue) == 0 {
		return nil, chain.ErrExecution
	}
	price := queue[0]

	c.sells = append(c.sells, TradeCall{Req: req, Amount: quantity})
	return &chain.Fill{
		Quantity:    quantity,
		Price:       price,
		QuoteAmount: quantity * price,
	}, nil
}

// WalletBalance returns the scripted balance, zero if unset.
func (c *Client) WalletBalance(_ context.Context, network string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[network], nil
}
