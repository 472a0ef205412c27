package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	id, token, network, exchange, pair,
	entry_price, quantity, cost_basis, liquidity_locked_at_entry,
	tiers_claimed, max_price_seen, status, opened_at, closed_at, close_reason
`

// SaveOpen persists a freshly opened position. The partial unique index on
// (network, token) WHERE status != 'CLOSED' enforces the single open
// position invariant at the storage layer too.
func (s *PositionStore) SaveOpen(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Token, p.Network, p.Exchange, p.Pair,
		p.EntryPrice, p.Quantity, p.CostBasis, p.LiquidityLockedAtEntry,
		p.TiersClaimed, p.MaxPriceSeen, string(p.Status), p.OpenedAt, p.ClosedAt, p.CloseReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update persists the current state of a position.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	query := `
		UPDATE positions
		SET quantity = $2, tiers_claimed = $3, max_price_seen = $4,
		    status = $5, closed_at = $6, close_reason = $7
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Quantity, p.TiersClaimed, p.MaxPriceSeen,
		string(p.Status), p.ClosedAt, p.CloseReason,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpenByToken retrieves the non-closed position for a token on a network.
func (s *PositionStore) GetOpenByToken(ctx context.Context, network, token string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE network = $1 AND token = $2 AND status != 'CLOSED'
	`

	row := s.pool.QueryRow(ctx, query, network, token)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position by token: %w", err)
	}
	return p, nil
}

// LoadOpen retrieves all OPEN positions ordered by opened_at ASC.
func (s *PositionStore) LoadOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'OPEN'
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// List retrieves all positions ordered by opened_at DESC.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY opened_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// scanPosition scans a single position row.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status string
	var openedAt time.Time
	var closedAt *time.Time

	err := row.Scan(
		&p.ID, &p.Token, &p.Network, &p.Exchange, &p.Pair,
		&p.EntryPrice, &p.Quantity, &p.CostBasis, &p.LiquidityLockedAtEntry,
		&p.TiersClaimed, &p.MaxPriceSeen, &status, &openedAt, &closedAt, &p.CloseReason,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	p.OpenedAt = openedAt
	p.ClosedAt = closedAt
	return &p, nil
}

// scanPositions scans all position rows.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}
