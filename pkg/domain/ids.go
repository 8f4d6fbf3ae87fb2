package domain

import (
	"github.com/google/uuid"

	dErrors "firmo/pkg/domain-errors"
)

// Typed identifiers for the core aggregates. Each type wraps uuid.UUID so the
// compiler rejects cross-aggregate assignment; construct via the ParseXxxID
// functions at trust boundaries.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs.
type (
	// UserID identifies a platform user (a contract party or an operator).
	UserID uuid.UUID

	// ContractID identifies a rental contract.
	ContractID uuid.UUID

	// SessionID identifies a biometric verification session.
	SessionID uuid.UUID

	// PropertyID identifies the rental property a contract covers.
	PropertyID uuid.UUID

	// InvitationID identifies a verification invitation sent to a party.
	InvitationID uuid.UUID

	// WorkflowID identifies the signing workflow aggregate attached to a contract.
	WorkflowID uuid.UUID
)

// parseUUID enforces the shared ID invariant. All ParseXxxID functions
// delegate here so validation never diverges between ID types.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

// ParseContractID constructs a ContractID from external input.
func ParseContractID(s string) (ContractID, error) {
	u, err := parseUUID(s, "contract")
	return ContractID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	return SessionID(u), err
}

// ParsePropertyID constructs a PropertyID from external input.
func ParsePropertyID(s string) (PropertyID, error) {
	u, err := parseUUID(s, "property")
	return PropertyID(u), err
}

// ParseInvitationID constructs an InvitationID from external input.
func ParseInvitationID(s string) (InvitationID, error) {
	u, err := parseUUID(s, "invitation")
	return InvitationID(u), err
}

// ParseWorkflowID constructs a WorkflowID from external input.
func ParseWorkflowID(s string) (WorkflowID, error) {
	u, err := parseUUID(s, "workflow")
	return WorkflowID(u), err
}

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewContractID returns a fresh random ContractID.
func NewContractID() ContractID { return ContractID(uuid.New()) }

// NewSessionID returns a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewPropertyID returns a fresh random PropertyID.
func NewPropertyID() PropertyID { return PropertyID(uuid.New()) }

// NewInvitationID returns a fresh random InvitationID.
func NewInvitationID() InvitationID { return InvitationID(uuid.New()) }

// NewWorkflowID returns a fresh random WorkflowID.
func NewWorkflowID() WorkflowID { return WorkflowID(uuid.New()) }

func (u UserID) String() string       { return uuid.UUID(u).String() }
func (c ContractID) String() string   { return uuid.UUID(c).String() }
func (s SessionID) String() string    { return uuid.UUID(s).String() }
func (p PropertyID) String() string   { return uuid.UUID(p).String() }
func (i InvitationID) String() string { return uuid.UUID(i).String() }
func (w WorkflowID) String() string   { return uuid.UUID(w).String() }

func (u UserID) IsNil() bool       { return uuid.UUID(u) == uuid.Nil }
func (c ContractID) IsNil() bool   { return uuid.UUID(c) == uuid.Nil }
func (s SessionID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }
func (p PropertyID) IsNil() bool   { return uuid.UUID(p) == uuid.Nil }
func (i InvitationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (w WorkflowID) IsNil() bool   { return uuid.UUID(w) == uuid.Nil }
