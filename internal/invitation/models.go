// Package invitation manages verification invitations: when a completion
// hands the turn to the next party, that party gets a tokenized invitation
// to join the contract's biometric flow. At most one active invitation
// exists per (contract, invitee email) pair.
package invitation

import (
	"time"

	id "firmo/pkg/domain"
)

// Status is the lifecycle state of an invitation.
type Status string

const (
	// StatusPending means the invitation row exists but delivery has not
	// been confirmed yet.
	StatusPending Status = "pending"
	// StatusSent means the notifier accepted the invitation for delivery.
	StatusSent Status = "sent"
	// StatusAccepted means the invitee redeemed the token.
	StatusAccepted Status = "accepted"
	// StatusExpired means the validity window lapsed unredeemed.
	StatusExpired Status = "expired"
)

// InvitationTTL is how long an invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is one party's tokenized invite onto a contract. The token
// itself is returned exactly once at creation; only its bcrypt hash is
// stored.
type Invitation struct {
	ID           id.InvitationID
	ContractID   id.ContractID
	InviterID    id.UserID
	InviteeEmail string
	Role         id.Role
	Message      string

	TokenHash string
	Status    Status

	CreatedAt  time.Time
	ExpiresAt  time.Time
	AcceptedAt *time.Time
}

// NewInvitation creates a pending invitation with the default TTL.
func NewInvitation(contractID id.ContractID, inviterID id.UserID, email string, role id.Role, message, tokenHash string, now time.Time) *Invitation {
	return &Invitation{
		ID:           id.NewInvitationID(),
		ContractID:   contractID,
		InviterID:    inviterID,
		InviteeEmail: email,
		Role:         role,
		Message:      message,
		TokenHash:    tokenHash,
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(InvitationTTL),
	}
}

// Expired reports whether the validity window has passed.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Active reports whether the invitation still occupies the pair's active
// slot: redeemable, or at least undelivered but current.
func (i *Invitation) Active(now time.Time) bool {
	if i.Status != StatusPending && i.Status != StatusSent {
		return false
	}
	return !i.Expired(now)
}

// EffectiveStatus is what a read should report: an unredeemed invitation
// past its window reads as expired even if the row was never touched again.
func (i *Invitation) EffectiveStatus(now time.Time) Status {
	if i.Status == StatusAccepted {
		return i.Status
	}
	if i.Expired(now) {
		return StatusExpired
	}
	return i.Status
}
