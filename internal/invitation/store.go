package invitation

import (
	"context"
	"time"

	id "firmo/pkg/domain"
)

// Store persists invitations.
//
// Errors: implementations return sentinel.ErrNotFound for missing rows and
// sentinel.ErrConflict when a create collides with an existing active
// invitation for the same (contract, invitee email) pair.
type Store interface {
	// Create inserts the invitation. The active-pair uniqueness check and
	// the insert are atomic.
	Create(ctx context.Context, inv *Invitation) error

	FindByID(ctx context.Context, invitationID id.InvitationID) (*Invitation, error)

	// FindActive returns the invitation currently occupying the pair's
	// active slot. sentinel.ErrNotFound when none exists.
	FindActive(ctx context.Context, contractID id.ContractID, email string, now time.Time) (*Invitation, error)

	FindByContract(ctx context.Context, contractID id.ContractID) ([]*Invitation, error)

	// Update writes the full mutable state of the invitation row.
	Update(ctx context.Context, inv *Invitation) error
}
