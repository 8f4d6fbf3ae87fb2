package verification

import (
	"context"
	"time"

	id "firmo/pkg/domain"
)

// Store persists verification sessions.
//
// Errors: implementations return sentinel.ErrNotFound for missing rows and
// sentinel.ErrConflict for duplicate creates; services translate to domain
// errors.
type Store interface {
	Create(ctx context.Context, session *Session) error

	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)

	// FindActiveByContractAndParty returns the newest session for the pair
	// that is neither terminal nor past its validity window at now.
	// sentinel.ErrNotFound when no such session exists.
	FindActiveByContractAndParty(ctx context.Context, contractID id.ContractID, partyID id.UserID, now time.Time) (*Session, error)

	// Update writes the full mutable state of the session row.
	Update(ctx context.Context, session *Session) error
}
