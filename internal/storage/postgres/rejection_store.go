package postgres

import (
	"context"
	"fmt"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// RejectionStore implements storage.RejectionStore using PostgreSQL.
type RejectionStore struct {
	pool *Pool
}

// NewRejectionStore creates a new RejectionStore.
func NewRejectionStore(pool *Pool) *RejectionStore {
	return &RejectionStore{pool: pool}
}

var _ storage.RejectionStore = (*RejectionStore)(nil)

// SaveCandidateRejection records a candidate that failed the security gate
// together with the reason. A candidate is rejected at most once; repeat
// rejections of the same candidate are duplicates.
func (s *RejectionStore) SaveCandidateRejection(ctx context.Context, c *domain.Candidate, reason string) error {
	query := `
		INSERT INTO candidate_rejections (
			candidate_id, network, exchange, pair_address, token_address,
			discovered_at, reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.Network, c.Exchange, c.PairAddress, c.TokenAddress,
		c.DiscoveredAt, reason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate rejection: %w", err)
	}
	return nil
}
