package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azmshoh/sniper-bot/internal/domain"
)

func TestEndpointStore_RecordAndWorkingURLs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEndpointStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.RecordOutcome(ctx, "ethereum", "https://rpc-a.example", domain.OutcomeSuccess, base.Add(-2*time.Minute)))
	require.NoError(t, store.RecordOutcome(ctx, "ethereum", "https://rpc-b.example", domain.OutcomeSuccess, base))
	require.NoError(t, store.RecordOutcome(ctx, "ethereum", "https://rpc-c.example", domain.OutcomeError, base))
	require.NoError(t, store.RecordOutcome(ctx, "bsc", "https://rpc-d.example", domain.OutcomeSuccess, base))

	urls, err := store.WorkingURLs(ctx, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://rpc-b.example", "https://rpc-a.example"}, urls)
}

func TestEndpointStore_LatestOutcomeWins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEndpointStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	url := "https://rpc-a.example"

	require.NoError(t, store.RecordOutcome(ctx, "ethereum", url, domain.OutcomeSuccess, base.Add(-time.Minute)))
	require.NoError(t, store.RecordOutcome(ctx, "ethereum", url, domain.OutcomeTimeout, base))

	urls, err := store.WorkingURLs(ctx, "ethereum")
	require.NoError(t, err)
	assert.Empty(t, urls)

	// An out-of-order report older than the stored row is ignored.
	require.NoError(t, store.RecordOutcome(ctx, "ethereum", url, domain.OutcomeSuccess, base.Add(-30*time.Second)))

	urls, err = store.WorkingURLs(ctx, "ethereum")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestEndpointStore_WorkingURLsEmptyNetwork(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEndpointStore(pool)
	ctx := context.Background()

	urls, err := store.WorkingURLs(ctx, "ethereum")
	require.NoError(t, err)
	assert.Empty(t, urls)
}
