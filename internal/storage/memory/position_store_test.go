package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

func testPosition(id, token string, status domain.PositionStatus) *domain.Position {
	return &domain.Position{
		ID:         id,
		Token:      token,
		Network:    "bsc",
		Exchange:   "pancakeswap",
		Pair:       "0xpair-" + token,
		EntryPrice: 0.001,
		Quantity:   1000,
		CostBasis:  1,
		Status:     status,
		OpenedAt:   time.Now(),
	}
}

func TestPositionStore_SaveAndGet(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := testPosition("pos-1", "0xtoken", domain.PositionOpen)
	require.NoError(t, s.SaveOpen(ctx, p))
	require.ErrorIs(t, s.SaveOpen(ctx, p), storage.ErrDuplicateKey)

	got, err := s.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	require.Equal(t, "0xtoken", got.Token)

	_, err = s.GetByID(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_UpdateRequiresExisting(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := testPosition("pos-1", "0xtoken", domain.PositionOpen)
	require.ErrorIs(t, s.Update(ctx, p), storage.ErrNotFound)

	require.NoError(t, s.SaveOpen(ctx, p))
	p.ClaimTier(3)
	p.MaxPriceSeen = 0.005
	require.NoError(t, s.Update(ctx, p))

	got, err := s.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	require.Equal(t, []float64{3}, got.TiersClaimed)
	require.Equal(t, 0.005, got.MaxPriceSeen)
}

func TestPositionStore_ReturnsCopies(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := testPosition("pos-1", "0xtoken", domain.PositionOpen)
	require.NoError(t, s.SaveOpen(ctx, p))

	got, err := s.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	got.Quantity = 0
	got.TiersClaimed = append(got.TiersClaimed, 3)

	again, err := s.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	require.Equal(t, 1000.0, again.Quantity)
	require.Empty(t, again.TiersClaimed)
}

func TestPositionStore_LoadOpenSkipsClosed(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	open := testPosition("pos-1", "0xaaa", domain.PositionOpen)
	open.OpenedAt = time.Now().Add(-time.Hour)
	closed := testPosition("pos-2", "0xbbb", domain.PositionClosed)
	later := testPosition("pos-3", "0xccc", domain.PositionOpen)

	require.NoError(t, s.SaveOpen(ctx, open))
	require.NoError(t, s.SaveOpen(ctx, closed))
	require.NoError(t, s.SaveOpen(ctx, later))

	got, err := s.LoadOpen(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by opened_at ASC.
	require.Equal(t, "pos-1", got[0].ID)
	require.Equal(t, "pos-3", got[1].ID)
}

func TestPositionStore_GetOpenByToken(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	closed := testPosition("pos-1", "0xtoken", domain.PositionClosed)
	require.NoError(t, s.SaveOpen(ctx, closed))

	// A closed position does not block a new one.
	_, err := s.GetOpenByToken(ctx, "bsc", "0xtoken")
	require.ErrorIs(t, err, storage.ErrNotFound)

	open := testPosition("pos-2", "0xtoken", domain.PositionOpen)
	require.NoError(t, s.SaveOpen(ctx, open))

	got, err := s.GetOpenByToken(ctx, "bsc", "0xtoken")
	require.NoError(t, err)
	require.Equal(t, "pos-2", got.ID)

	// Different network does not match.
	_, err = s.GetOpenByToken(ctx, "ethereum", "0xtoken")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
