package adapters

import (
	"context"

	"firmo/internal/invitation"
	"firmo/internal/verification/ports"
)

// InvitationAdapter implements ports.Invitations by calling the invitation
// service in-process. The plaintext token never crosses this boundary; it
// travels to the invitee through the invitation service's own notifier.
type InvitationAdapter struct {
	invitations *invitation.Service
}

// NewInvitationAdapter creates a new invitation adapter.
func NewInvitationAdapter(invitations *invitation.Service) ports.Invitations {
	return &InvitationAdapter{invitations: invitations}
}

// Invite creates (or resumes) the invitation for the pair. Creation is
// idempotent on the invitation side, so handing the same party the turn
// twice is harmless.
func (a *InvitationAdapter) Invite(ctx context.Context, req ports.InviteRequest) error {
	_, _, err := a.invitations.Create(ctx, invitation.CreateRequest{
		ContractID: req.ContractID,
		InviterID:  req.InviterID,
		Email:      req.Email,
		Role:       req.Role,
		Message:    req.Message,
	})
	return err
}
