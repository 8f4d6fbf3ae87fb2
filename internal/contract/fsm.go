package contract

import (
	"errors"

	id "firmo/pkg/domain"
)

// ErrInvalidTransition is returned when a status change would leave the
// defined transition graph.
var ErrInvalidTransition = errors.New("invalid contract status transition")

// CanTransition reports whether the status graph permits moving from one
// status to another. The graph is written out case by case so it stays
// enumerable; do not collapse branches.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPendingReview || to == StatusTerminated
	case StatusPendingReview:
		return to == StatusReadyForAuthentication || to == StatusDraft || to == StatusTerminated
	case StatusReadyForAuthentication:
		return to == StatusPendingAuthentication ||
			to == StatusPendingTenantBiometric ||
			to == StatusPendingGuarantorBiometric ||
			to == StatusPendingLandlordBiometric ||
			to == StatusAuthenticatedPendingSignature ||
			to == StatusActive ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusPendingAuthentication:
		return to == StatusPendingTenantBiometric ||
			to == StatusPendingGuarantorBiometric ||
			to == StatusPendingLandlordBiometric ||
			to == StatusAuthenticatedPendingSignature ||
			to == StatusActive ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusPendingTenantBiometric:
		return to == StatusPendingGuarantorBiometric ||
			to == StatusPendingLandlordBiometric ||
			to == StatusAuthenticatedPendingSignature ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusPendingGuarantorBiometric:
		return to == StatusPendingLandlordBiometric ||
			to == StatusAuthenticatedPendingSignature ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusPendingLandlordBiometric:
		return to == StatusActive ||
			to == StatusAuthenticatedPendingSignature ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusAuthenticatedPendingSignature:
		return to == StatusFullySigned ||
			to == StatusActive ||
			to == StatusExpired ||
			to == StatusTerminated
	case StatusFullySigned:
		return to == StatusActive || to == StatusExpired || to == StatusTerminated
	case StatusActive:
		return to == StatusExpired || to == StatusTerminated
	default:
		// Expired and terminated are terminal.
		return false
	}
}

// Transition validates and applies a status change.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// IsTerminal reports whether the status ends the contract lifecycle.
func IsTerminal(status Status) bool {
	switch status {
	case StatusExpired, StatusTerminated:
		return true
	default:
		return false
	}
}

// EligibleForVerification reports whether a party may start or resume a
// biometric verification session while the contract is in this status.
func EligibleForVerification(status Status) bool {
	switch status {
	case StatusReadyForAuthentication,
		StatusPendingAuthentication,
		StatusPendingTenantBiometric,
		StatusPendingGuarantorBiometric,
		StatusPendingLandlordBiometric:
		return true
	default:
		return false
	}
}

// RequiredRole names whose turn it is to verify in the given status. The
// pre-split statuses always name the tenant: verification order is fixed at
// tenant first regardless of guarantor presence. The boolean is false when
// the status is not a verification phase.
func RequiredRole(status Status, hasGuarantor bool) (id.Role, bool) {
	switch status {
	case StatusReadyForAuthentication, StatusPendingAuthentication, StatusPendingTenantBiometric:
		return id.RoleTenant, true
	case StatusPendingGuarantorBiometric:
		if !hasGuarantor {
			// A contract without a guarantor should never sit in this phase;
			// report the landlord so progression is not wedged.
			return id.RoleLandlord, true
		}
		return id.RoleGuarantor, true
	case StatusPendingLandlordBiometric:
		return id.RoleLandlord, true
	default:
		return "", false
	}
}
