// Package memory implements the domain store interfaces in process memory.
// It backs the "memory" storage driver for local runs and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ListingStore implements domain.ListingStore in memory.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]domain.Listing
	failErr  error
	upserts  int
	deletes  int
}

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{listings: make(map[string]domain.Listing)}
}

// FailWith makes every later call return err until cleared with nil.
func (s *ListingStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// LoadAll returns every stored listing ordered by end time.
func (s *ListingStore) LoadAll(ctx context.Context) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([]domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

// Upsert stores a copy of l.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.listings[l.ID] = l.Clone()
	s.upserts++
	return nil
}

// Delete removes id. Deleting an unknown id is not an error.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	delete(s.listings, id)
	s.deletes++
	return nil
}

// Get returns the stored copy of id, if any.
func (s *ListingStore) Get(id string) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	return l.Clone(), ok
}

// Counts reports how many upserts and deletes succeeded.
func (s *ListingStore) Counts() (upserts, deletes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts, s.deletes
}

// Compile-time interface check.
var _ domain.ListingStore = (*ListingStore)(nil)
