package contract

import (
	"context"
	"sync"
	"time"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
)

// InMemoryStore keeps contracts in a map. Used by tests and by local
// development when no Postgres URL is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	contracts map[id.ContractID]*Contract
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contracts: make(map[id.ContractID]*Contract)}
}

func (s *InMemoryStore) Create(_ context.Context, contract *Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contracts[contract.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *contract
	s.contracts[contract.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, contractID id.ContractID) (*Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contract, ok := s.contracts[contractID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *contract
	return &clone, nil
}

// FindByIDForUpdate matches FindByID: exclusivity comes from the transaction
// runner's per-contract shard lock, not from this store.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, contractID id.ContractID) (*Contract, error) {
	return s.FindByID(ctx, contractID)
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, contractID id.ContractID, status Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contract, ok := s.contracts[contractID]
	if !ok {
		return sentinel.ErrNotFound
	}
	contract.Status = status
	contract.UpdatedAt = updatedAt
	return nil
}
