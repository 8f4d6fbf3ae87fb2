package workflow

import (
	"context"
	"sync"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
)

// InMemoryStore keeps workflow records in a map for tests and local runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	workflows map[id.PropertyID]*Workflow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{workflows: make(map[id.PropertyID]*Workflow)}
}

func (s *InMemoryStore) FindByProperty(_ context.Context, propertyID id.PropertyID) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneWorkflow(w), nil
}

func (s *InMemoryStore) Save(_ context.Context, w *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.PropertyID] = cloneWorkflow(w)
	return nil
}

func cloneWorkflow(w *Workflow) *Workflow {
	clone := *w
	clone.Data.BiometricProgress = make(map[id.Role]RoleProgress, len(w.Data.BiometricProgress))
	for role, progress := range w.Data.BiometricProgress {
		clone.Data.BiometricProgress[role] = progress
	}
	return &clone
}
