package verification

import (
	"context"
	"sync"
	"time"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *InMemoryStore) FindActiveByContractAndParty(_ context.Context, contractID id.ContractID, partyID id.UserID, now time.Time) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *Session
	for _, session := range s.sessions {
		if session.ContractID != contractID || session.PartyID != partyID {
			continue
		}
		if session.Terminal() || session.Expired(now) {
			continue
		}
		if newest == nil || session.CreatedAt.After(newest.CreatedAt) {
			newest = session
		}
	}
	if newest == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneSession(newest), nil
}

func (s *InMemoryStore) Update(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// cloneSession copies the session and everything it points at, so callers
// never share state with the store.
func cloneSession(s *Session) *Session {
	clone := *s
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		clone.CompletedAt = &at
	}
	if s.Analysis.FaceFront != nil {
		v := *s.Analysis.FaceFront
		clone.Analysis.FaceFront = &v
	}
	if s.Analysis.FaceSide != nil {
		v := *s.Analysis.FaceSide
		clone.Analysis.FaceSide = &v
	}
	if s.Analysis.Document != nil {
		v := *s.Analysis.Document
		clone.Analysis.Document = &v
	}
	if s.Analysis.Combined != nil {
		v := *s.Analysis.Combined
		clone.Analysis.Combined = &v
	}
	if s.Analysis.Voice != nil {
		v := *s.Analysis.Voice
		clone.Analysis.Voice = &v
	}
	return &clone
}
