package invitation

import (
	"context"
	"sort"
	"sync"
	"time"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
)

// InMemoryStore keeps invitations in a map for tests and local development.
// Create enforces the active-pair uniqueness under the store mutex, so
// concurrent invites for the same pair collapse to one row.
type InMemoryStore struct {
	mu          sync.RWMutex
	invitations map[id.InvitationID]*Invitation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{invitations: make(map[id.InvitationID]*Invitation)}
}

func (s *InMemoryStore) Create(_ context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invitations[inv.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.invitations {
		if existing.ContractID == inv.ContractID &&
			existing.InviteeEmail == inv.InviteeEmail &&
			existing.Active(inv.CreatedAt) {
			return sentinel.ErrConflict
		}
	}
	s.invitations[inv.ID] = cloneInvitation(inv)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, invitationID id.InvitationID) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneInvitation(inv), nil
}

func (s *InMemoryStore) FindActive(_ context.Context, contractID id.ContractID, email string, now time.Time) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations {
		if inv.ContractID == contractID && inv.InviteeEmail == email && inv.Active(now) {
			return cloneInvitation(inv), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByContract(_ context.Context, contractID id.ContractID) ([]*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Invitation
	for _, inv := range s.invitations {
		if inv.ContractID == contractID {
			out = append(out, cloneInvitation(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.invitations[inv.ID] = cloneInvitation(inv)
	return nil
}

func cloneInvitation(i *Invitation) *Invitation {
	clone := *i
	if i.AcceptedAt != nil {
		at := *i.AcceptedAt
		clone.AcceptedAt = &at
	}
	return &clone
}
