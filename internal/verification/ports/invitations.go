package ports

import (
	"context"

	id "firmo/pkg/domain"
)

// Invitations lets the verification flow invite the next party onto the
// contract after a completion hands them the turn. Creation is idempotent
// per (contract, email) on the implementing side.
type Invitations interface {
	Invite(ctx context.Context, req InviteRequest) error
}

// InviteRequest carries everything the invitation service needs to create
// and send one invitation.
type InviteRequest struct {
	ContractID id.ContractID
	InviterID  id.UserID
	Email      string
	Role       id.Role
	Message    string
}
