package clickhouse

import (
	"context"
	"fmt"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
// The archive is append-only; MergeTree handles volume better than the
// transactional store would.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertBulk appends samples in a single batch.
func (s *PriceSampleStore) InsertBulk(ctx context.Context, samples []*domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_samples (
			position_id, token, network, price, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			sample.PositionID, sample.Token, sample.Network,
			sample.Price, sample.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPositionID retrieves all samples for a position, oldest first.
func (s *PriceSampleStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.PriceSample, error) {
	query := `
		SELECT position_id, token, network, price, observed_at
		FROM price_samples
		WHERE position_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position id: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceSample
	for rows.Next() {
		var sample domain.PriceSample
		err := rows.Scan(
			&sample.PositionID, &sample.Token, &sample.Network,
			&sample.Price, &sample.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price sample: %w", err)
		}
		result = append(result, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price samples: %w", err)
	}
	return result, nil
}
