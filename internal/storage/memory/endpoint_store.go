package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage"
)

type endpointRecord struct {
	outcome domain.Outcome
	at      time.Time
}

// EndpointStore is an in-memory implementation of storage.EndpointStore.
// It keeps only the latest outcome per (network, url).
type EndpointStore struct {
	mu   sync.RWMutex
	data map[string]map[string]endpointRecord // network -> url -> latest
}

// NewEndpointStore creates a new in-memory endpoint store.
func NewEndpointStore() *EndpointStore {
	return &EndpointStore{data: make(map[string]map[string]endpointRecord)}
}

var _ storage.EndpointStore = (*EndpointStore)(nil)

// RecordOutcome persists one call outcome for an endpoint.
func (s *EndpointStore) RecordOutcome(_ context.Context, network, url string, outcome domain.Outcome, at time.Time) error {
	if network == "" || url == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byURL, ok := s.data[network]
	if !ok {
		byURL = make(map[string]endpointRecord)
		s.data[network] = byURL
	}
	if prev, ok := byURL[url]; !ok || !at.Before(prev.at) {
		byURL[url] = endpointRecord{outcome: outcome, at: at}
	}
	return nil
}

// WorkingURLs returns the URLs whose latest recorded outcome was SUCCESS,
// most recent first.
func (s *EndpointStore) WorkingURLs(_ context.Context, network string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type urlAt struct {
		url string
		at  time.Time
	}
	var working []urlAt
	for url, rec := range s.data[network] {
		if rec.outcome == domain.OutcomeSuccess {
			working = append(working, urlAt{url: url, at: rec.at})
		}
	}
	sort.Slice(working, func(i, j int) bool {
		return working[i].at.After(working[j].at)
	})

	urls := make([]string, len(working))
	for i, w := range working {
		urls[i] = w.url
	}
	return urls, nil
}
