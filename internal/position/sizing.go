package position

import (
	"context"
	"fmt"

	"github.com/azmshoh/sniper-bot/internal/chain"
	"github.com/azmshoh/sniper-bot/internal/config"
)

// entrySize computes the quote-currency amount to spend on entry. Locked
// liquidity risks a percentage of the wallet; unlocked liquidity risks only
// the fixed amount.
func entrySize(ctx context.Context, cl chain.Client, cfg *config.TradingConfig, network string, liquidityLocked bool) (float64, error) {
	if !liquidityLocked {
		return cfg.FixedQuoteAmount, nil
	}

	balance, err := cl.WalletBalance(ctx, network)
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	size := balance * cfg.BalancePercent / 100
	if size <= 0 {
		return 0, fmt.Errorf("wallet balance %.6f leaves nothing to trade", balance)
	}
	return size, nil
}
