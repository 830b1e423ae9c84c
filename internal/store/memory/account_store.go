package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AccountStore implements domain.AccountStore in memory.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	pending  []domain.PendingItem
	nextID   int64
	failErr  error
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*domain.Account)}
}

// FailWith makes every later call return err until cleared with nil.
func (s *AccountStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *AccountStore) account(actorID string) *domain.Account {
	a, ok := s.accounts[actorID]
	if !ok {
		a = &domain.Account{ActorID: actorID}
		s.accounts[actorID] = a
	}
	a.UpdatedAt = time.Now().UTC()
	return a
}

func (s *AccountStore) Get(ctx context.Context, actorID string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return domain.Account{}, s.failErr
	}
	a, ok := s.accounts[actorID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return *a, nil
}

func (s *AccountStore) Debit(ctx context.Context, actorID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	a, ok := s.accounts[actorID]
	if !ok || a.Balance < amount {
		return fmt.Errorf("memory: debit %s: %w", actorID, domain.ErrInsufficientFunds)
	}
	a.Balance -= amount
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *AccountStore) Credit(ctx context.Context, actorID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.account(actorID).Balance += amount
	return nil
}

func (s *AccountStore) CreditPending(ctx context.Context, actorID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.account(actorID).PendingBalance += amount
	return nil
}

func (s *AccountStore) MergePending(ctx context.Context, actorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	a := s.account(actorID)
	merged := a.PendingBalance
	a.Balance += merged
	a.PendingBalance = 0
	return merged, nil
}

func (s *AccountStore) QueueItem(ctx context.Context, actorID string, item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.nextID++
	s.pending = append(s.pending, domain.PendingItem{
		ID:        s.nextID,
		ActorID:   actorID,
		Item:      append([]byte(nil), item...),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *AccountStore) ListPendingItems(ctx context.Context, actorID string) ([]domain.PendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []domain.PendingItem
	for _, p := range s.pending {
		if p.ActorID == actorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *AccountStore) DeletePendingItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *AccountStore) RestorePendingItem(ctx context.Context, p domain.PendingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.pending = append(s.pending, p)
	sort.Slice(s.pending, func(i, j int) bool { return s.pending[i].ID < s.pending[j].ID })
	return nil
}

// Total returns balance plus pending balance, summed over the given actors.
func (s *AccountStore) Total(actorIDs ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, id := range actorIDs {
		if a, ok := s.accounts[id]; ok {
			sum += a.Balance + a.PendingBalance
		}
	}
	return sum
}

// Compile-time interface check.
var _ domain.AccountStore = (*AccountStore)(nil)
