package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// EndpointStore implements storage.EndpointStore using PostgreSQL. It keeps
// the latest observed outcome per (network, url) so the next run can seed
// its pool with endpoints that were recently healthy.
type EndpointStore struct {
	pool *Pool
}

// NewEndpointStore creates a new EndpointStore.
func NewEndpointStore(pool *Pool) *EndpointStore {
	return &EndpointStore{pool: pool}
}

var _ storage.EndpointStore = (*EndpointStore)(nil)

// RecordOutcome upserts the latest outcome for an endpoint. Out-of-order
// reports older than the stored row are ignored.
func (s *EndpointStore) RecordOutcome(ctx context.Context, network, url string, outcome domain.Outcome, at time.Time) error {
	query := `
		INSERT INTO endpoint_outcomes (network, url, outcome, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, url) DO UPDATE
		SET outcome = EXCLUDED.outcome, observed_at = EXCLUDED.observed_at
		WHERE endpoint_outcomes.observed_at <= EXCLUDED.observed_at
	`

	_, err := s.pool.Exec(ctx, query, network, url, string(outcome), at)
	if err != nil {
		return fmt.Errorf("record endpoint outcome: %w", err)
	}
	return nil
}

// WorkingURLs returns URLs whose latest recorded outcome was SUCCESS,
// most recently observed first.
func (s *EndpointStore) WorkingURLs(ctx context.Context, network string) ([]string, error) {
	query := `
		SELECT url
		FROM endpoint_outcomes
		WHERE network = $1 AND outcome = 'SUCCESS'
		ORDER BY observed_at DESC, url ASC
	`

	rows, err := s.pool.Query(ctx, query, network)
	if err != nil {
		return nil, fmt.Errorf("query working urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan working url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate working urls: %w", err)
	}
	return urls, nil
}
