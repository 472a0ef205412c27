package memory

import (
	"context"
	"sync"
	"time"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

// Rejection is a recorded gate rejection.
type Rejection struct {
	Candidate  domain.Candidate
	Reason     string
	RecordedAt time.Time
}

// RejectionStore is an in-memory implementation of storage.RejectionStore.
type RejectionStore struct {
	mu         sync.RWMutex
	byID       map[string]struct{}
	rejections []Rejection
}

// NewRejectionStore creates a new in-memory rejection store.
func NewRejectionStore() *RejectionStore {
	return &RejectionStore{byID: make(map[string]struct{})}
}

var _ storage.RejectionStore = (*RejectionStore)(nil)

// SaveCandidateRejection records a terminal gate rejection. Returns
// ErrDuplicateKey when the candidate was already rejected.
func (s *RejectionStore) SaveCandidateRejection(_ context.Context, c *domain.Candidate, reason string) error {
	if c == nil || c.ID == "" || reason == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return storage.ErrDuplicateKey
	}
	s.byID[c.ID] = struct{}{}
	s.rejections = append(s.rejections, Rejection{
		Candidate:  *c,
		Reason:     reason,
		RecordedAt: time.Now(),
	})
	return nil
}

// All returns every recorded rejection. Test helper.
func (s *RejectionStore) All() []Rejection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rejection(nil), s.rejections...)
}
