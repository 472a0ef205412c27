package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

func TestEndpointStore_WorkingURLs(t *testing.T) {
	s := NewEndpointStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://a", domain.OutcomeSuccess, base))
	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://b", domain.OutcomeError, base))
	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://c", domain.OutcomeSuccess, base.Add(time.Minute)))

	urls, err := s.WorkingURLs(ctx, "bsc")
	require.NoError(t, err)
	require.Equal(t, []string{"https://c", "https://a"}, urls)
}

func TestEndpointStore_LatestOutcomeWins(t *testing.T) {
	s := NewEndpointStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://a", domain.OutcomeSuccess, base))
	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://a", domain.OutcomeTimeout, base.Add(time.Second)))

	urls, err := s.WorkingURLs(ctx, "bsc")
	require.NoError(t, err)
	require.Empty(t, urls)

	// An out-of-order older record does not overwrite a newer one.
	require.NoError(t, s.RecordOutcome(ctx, "bsc", "https://a", domain.OutcomeSuccess, base.Add(-time.Hour)))
	urls, err = s.WorkingURLs(ctx, "bsc")
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestRejectionStore_Save(t *testing.T) {
	s := NewRejectionStore()
	ctx := context.Background()

	c := &domain.Candidate{
		ID:           "cand-1",
		Network:      "bsc",
		Exchange:     "pancakeswap",
		PairAddress:  "0xpair",
		TokenAddress: "0xtoken",
		DiscoveredAt: time.Now(),
	}
	require.NoError(t, s.SaveCandidateRejection(ctx, c, "HONEYPOT"))
	require.ErrorIs(t, s.SaveCandidateRejection(ctx, c, "HONEYPOT"), storage.ErrDuplicateKey)

	all := s.All()
	require.Len(t, all, 1)
	require.Equal(t, "HONEYPOT", all[0].Reason)
	require.Equal(t, "cand-1", all[0].Candidate.ID)
}
