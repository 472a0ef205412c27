package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

func testPosition(id, network, token string, openedAt time.Time) *domain.Position {
	return &domain.Position{
		ID:                     id,
		Token:                  token,
		Network:                network,
		Exchange:               "uniswap_v2",
		Pair:                   "0xPair" + id,
		EntryPrice:             0.0001,
		Quantity:               5000,
		CostBasis:              0.5,
		LiquidityLockedAtEntry: true,
		TiersClaimed:           []float64{},
		MaxPriceSeen:           0.0001,
		Status:                 domain.PositionOpen,
		OpenedAt:               openedAt,
	}
}

func TestPositionStore_SaveAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	opened := time.Now().UTC().Truncate(time.Millisecond)
	p := testPosition("pos-001", "ethereum", "0xToken1", opened)

	err := store.SaveOpen(ctx, p)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)

	assert.Equal(t, p.ID, retrieved.ID)
	assert.Equal(t, p.Token, retrieved.Token)
	assert.Equal(t, p.Network, retrieved.Network)
	assert.Equal(t, p.Exchange, retrieved.Exchange)
	assert.Equal(t, p.Pair, retrieved.Pair)
	assert.Equal(t, p.EntryPrice, retrieved.EntryPrice)
	assert.Equal(t, p.Quantity, retrieved.Quantity)
	assert.Equal(t, p.CostBasis, retrieved.CostBasis)
	assert.True(t, retrieved.LiquidityLockedAtEntry)
	assert.Empty(t, retrieved.TiersClaimed)
	assert.Equal(t, domain.PositionOpen, retrieved.Status)
	assert.True(t, opened.Equal(retrieved.OpenedAt.Truncate(time.Millisecond)))
	assert.Nil(t, retrieved.ClosedAt)
}

func TestPositionStore_SaveDuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-dup", "ethereum", "0xToken1", time.Now().UTC())
	require.NoError(t, store.SaveOpen(ctx, p))

	again := testPosition("pos-dup", "ethereum", "0xToken2", time.Now().UTC())
	err := store.SaveOpen(ctx, again)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_SecondOpenPositionSameToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	first := testPosition("pos-a", "ethereum", "0xToken1", time.Now().UTC())
	require.NoError(t, store.SaveOpen(ctx, first))

	// Partial unique index rejects a second live position for the token.
	second := testPosition("pos-b", "ethereum", "0xToken1", time.Now().UTC())
	err := store.SaveOpen(ctx, second)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Closing the first frees the slot.
	now := time.Now().UTC()
	first.Status = domain.PositionClosed
	first.ClosedAt = &now
	first.CloseReason = domain.CloseReasonStopLoss
	require.NoError(t, store.Update(ctx, first))

	require.NoError(t, store.SaveOpen(ctx, second))
}

func TestPositionStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-upd", "bsc", "0xToken1", time.Now().UTC())
	require.NoError(t, store.SaveOpen(ctx, p))

	p.Quantity = 2500
	p.TiersClaimed = []float64{3, 10}
	p.MaxPriceSeen = 0.0012
	require.NoError(t, store.Update(ctx, p))

	retrieved, err := store.GetByID(ctx, "pos-upd")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, retrieved.Quantity)
	assert.Equal(t, []float64{3, 10}, retrieved.TiersClaimed)
	assert.Equal(t, 0.0012, retrieved.MaxPriceSeen)
}

func TestPositionStore_UpdateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-missing", "ethereum", "0xToken1", time.Now().UTC())
	err := store.Update(ctx, p)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_GetOpenByToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := testPosition("pos-open", "ethereum", "0xToken1", time.Now().UTC())
	require.NoError(t, store.SaveOpen(ctx, p))

	retrieved, err := store.GetOpenByToken(ctx, "ethereum", "0xToken1")
	require.NoError(t, err)
	assert.Equal(t, "pos-open", retrieved.ID)

	// Same token on another network is a different slot.
	_, err = store.GetOpenByToken(ctx, "bsc", "0xToken1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Closed positions don't count as open.
	now := time.Now().UTC()
	p.Status = domain.PositionClosed
	p.ClosedAt = &now
	p.CloseReason = domain.CloseReasonTimeout
	require.NoError(t, store.Update(ctx, p))

	_, err = store.GetOpenByToken(ctx, "ethereum", "0xToken1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_LoadOpenOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	newest := testPosition("pos-3", "ethereum", "0xToken3", base)
	oldest := testPosition("pos-1", "ethereum", "0xToken1", base.Add(-2*time.Minute))
	middle := testPosition("pos-2", "bsc", "0xToken2", base.Add(-time.Minute))

	require.NoError(t, store.SaveOpen(ctx, newest))
	require.NoError(t, store.SaveOpen(ctx, oldest))
	require.NoError(t, store.SaveOpen(ctx, middle))

	now := time.Now().UTC()
	closed := testPosition("pos-4", "ethereum", "0xToken4", base.Add(-3*time.Minute))
	closed.Status = domain.PositionClosed
	closed.ClosedAt = &now
	closed.CloseReason = domain.CloseReasonTakeProfitFinal
	require.NoError(t, store.SaveOpen(ctx, closed))

	open, err := store.LoadOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "pos-1", open[0].ID)
	assert.Equal(t, "pos-2", open[1].ID)
	assert.Equal(t, "pos-3", open[2].ID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "pos-3", all[0].ID)
	assert.Equal(t, "pos-4", all[3].ID)
}
