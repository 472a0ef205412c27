package storage

import (
	"context"
	"time"

	"github.com/azmshoh/sniper-bot/internal/domain"
)

// PositionStore provides access to positions storage.
type PositionStore interface {
	// SaveOpen persists a freshly opened position. Returns ErrDuplicateKey
	// if the position ID already exists.
	SaveOpen(ctx context.Context, p *domain.Position) error

	// Update persists the current state of a position (tiers claimed,
	// max price seen, remaining quantity, terminal close). Returns
	// ErrNotFound if the position was never saved.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetOpenByToken retrieves the non-closed position for a token on a
	// network, if any. Returns ErrNotFound when there is none.
	GetOpenByToken(ctx context.Context, network, token string) (*domain.Position, error)

	// LoadOpen retrieves all positions with status OPEN, ordered by
	// opened_at ASC. Used for startup recovery.
	LoadOpen(ctx context.Context) ([]*domain.Position, error)

	// List retrieves all positions ordered by opened_at DESC.
	List(ctx context.Context) ([]*domain.Position, error)
}

// RejectionStore records security-gate rejections.
type RejectionStore interface {
	// SaveCandidateRejection records that a candidate was rejected and why.
	// Rejections are terminal; the same pair is never re-evaluated.
	SaveCandidateRejection(ctx context.Context, c *domain.Candidate, reason string) error
}

// EndpointStore records per-endpoint call outcomes so the next start can
// prioritize recently working endpoints.
type EndpointStore interface {
	// RecordOutcome persists one call outcome for an endpoint.
	RecordOutcome(ctx context.Context, network, url string, outcome domain.Outcome, at time.Time) error

	// WorkingURLs returns endpoint URLs whose most recent recorded outcome
	// was SUCCESS, most recent first.
	WorkingURLs(ctx context.Context, network string) ([]string, error)
}

// PriceSampleStore archives poll-time price samples for offline analysis.
type PriceSampleStore interface {
	// InsertBulk appends samples. The archive is append-only.
	InsertBulk(ctx context.Context, samples []*domain.PriceSample) error
}
