package contract

import (
	"time"

	id "firmo/pkg/domain"
)

// Status is the lifecycle state of a rental contract. Transitions are
// restricted to the graph in fsm.go; the biometric phases in the middle of
// the graph are owned by the progression coordinator.
type Status string

const (
	StatusDraft                  Status = "draft"
	StatusPendingReview          Status = "pending_review"
	StatusReadyForAuthentication Status = "ready_for_authentication"
	StatusPendingAuthentication  Status = "pending_authentication"

	// Biometric phases. Exactly one party is "on turn" in each of these.
	StatusPendingTenantBiometric    Status = "pending_tenant_biometric"
	StatusPendingGuarantorBiometric Status = "pending_guarantor_biometric"
	StatusPendingLandlordBiometric  Status = "pending_landlord_biometric"

	// StatusAuthenticatedPendingSignature is the fail-safe landing state:
	// progression parks a contract here instead of leaving it stuck in a
	// biometric phase it can no longer leave.
	StatusAuthenticatedPendingSignature Status = "authenticated_pending_signature"

	StatusFullySigned Status = "fully_signed"
	StatusActive      Status = "active"
	StatusExpired     Status = "expired"
	StatusTerminated  Status = "terminated"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Contract is the aggregate root for a rental agreement between a landlord,
// a tenant, and an optional guarantor.
//
// Invariants:
//   - Status moves only along the transitions fsm.go permits
//   - At most one unexpired verification session exists per (contract, party);
//     enforced by the verification service, not by this model
//   - GuarantorID is the nil UUID when the contract has no guarantor
//   - Contracts are never deleted; terminal states end the lifecycle
type Contract struct {
	ID             id.ContractID `json:"id"`
	ContractNumber string        `json:"contract_number"`
	PropertyID     id.PropertyID `json:"property_id"`

	LandlordID  id.UserID `json:"landlord_id"`
	TenantID    id.UserID `json:"tenant_id"`
	GuarantorID id.UserID `json:"guarantor_id,omitempty"`

	// Contact emails are the invitation targets for parties that have not
	// engaged with the platform yet.
	LandlordEmail  string `json:"landlord_email"`
	TenantEmail    string `json:"tenant_email"`
	GuarantorEmail string `json:"guarantor_email,omitempty"`

	Status Status `json:"status"`

	// MonthlyRent is in minor currency units. Carried for document rendering;
	// opaque to the verification core.
	MonthlyRent int64  `json:"monthly_rent"`
	Currency    string `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGuarantor reports whether a guarantor signs this contract.
func (c *Contract) HasGuarantor() bool {
	return !c.GuarantorID.IsNil()
}

// ResolveRole maps a user to their role on this contract by explicit identity
// comparison against the three role fields. The boolean is false when the
// user holds no role.
func (c *Contract) ResolveRole(userID id.UserID) (id.Role, bool) {
	switch {
	case userID == c.TenantID:
		return id.RoleTenant, true
	case c.HasGuarantor() && userID == c.GuarantorID:
		return id.RoleGuarantor, true
	case userID == c.LandlordID:
		return id.RoleLandlord, true
	default:
		return "", false
	}
}

// PartyID returns the user holding the given role. The boolean is false for
// the guarantor role on a contract without a guarantor.
func (c *Contract) PartyID(role id.Role) (id.UserID, bool) {
	switch role {
	case id.RoleTenant:
		return c.TenantID, true
	case id.RoleGuarantor:
		if !c.HasGuarantor() {
			return id.UserID{}, false
		}
		return c.GuarantorID, true
	case id.RoleLandlord:
		return c.LandlordID, true
	default:
		return id.UserID{}, false
	}
}

// ContactEmail returns the invitation email for the given role.
func (c *Contract) ContactEmail(role id.Role) string {
	switch role {
	case id.RoleTenant:
		return c.TenantEmail
	case id.RoleGuarantor:
		return c.GuarantorEmail
	case id.RoleLandlord:
		return c.LandlordEmail
	default:
		return ""
	}
}
